package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lpm-router/internal/cli"
	"lpm-router/internal/config"
	"lpm-router/internal/dao"
	"lpm-router/internal/database"
	"lpm-router/internal/forwarding"
	"lpm-router/internal/logging"
	"lpm-router/internal/protocols"
	"lpm-router/internal/routing"
)

// portQueueLimit 每个输出端口最多缓存的数据包
const portQueueLimit = 1024

func main() {
	// 命令行参数
	var (
		configFile = flag.String("config", "config.json", "配置文件路径")
		help       = flag.Bool("help", false, "显示帮助信息")
	)
	flag.Parse()

	if *help {
		fmt.Println("LPM Router - IPv4 最长前缀匹配路由器")
		fmt.Println()
		fmt.Println("用法:")
		flag.PrintDefaults()
		return
	}

	// 加载配置文件
	configManager := config.NewConfigManager(*configFile)
	if err := configManager.LoadConfig(); err != nil {
		log.Fatalf("加载配置文件失败: %v", err)
	}
	cfg := configManager.GetConfig()

	// 初始化日志系统
	logger := logging.NewLogger(logging.ParseLogLevel(cfg.LogLevel), cfg.LogFile)
	logging.SetDefault(logger)
	defer func() {
		_ = logger.Close()
	}()

	logger.Info("LPM Router 启动中，配置文件: %s", *configFile)

	// 初始化路由表
	tableType, err := routing.ParseRouteTableType(cfg.TableType)
	if err != nil {
		logger.Fatal("%v", err)
	}
	inner, err := routing.NewTableByType(tableType, routing.Options{
		CacheDepth:      cfg.CacheDepth,
		CheckInvariants: cfg.CheckInvariants,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("创建路由表失败: %v", err)
	}
	// 转发、CLI和指标采集共享同一张表
	table := routing.NewSyncTable(inner)
	logger.Info("路由表类型: %s, 缓存深度: %d", tableType, cfg.CacheDepth)

	// 初始化输出端口和转发前端
	queues := forwarding.NewQueuePorts(cfg.Ports, portQueueLimit)
	ports := make([]forwarding.Port, len(queues))
	for i, q := range queues {
		ports[i] = q
	}
	forwarder := forwarding.NewForwarder(table, ports, logger)

	staticManager := protocols.NewStaticRouteManager(table, forwarder.Ports())
	staticManager.SetLogger(logger)

	// 配置文件中的静态路由
	if n, err := staticManager.LoadFromConfig(cfg.StaticRoutes); err != nil {
		logger.Error("加载静态路由失败（已加载 %d 条）: %v", n, err)
	} else {
		logger.Info("加载了 %d 条静态路由", n)
	}

	// 路由持久化
	var dbManager *database.Manager
	if cfg.Database.Enabled {
		dbConfig := database.GetDefaultConfig()
		dbConfig.FilePath = cfg.Database.FilePath
		dbManager = database.NewManager(dbConfig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := initStore(ctx, dbManager, staticManager)
		cancel()
		if err != nil {
			logger.Fatal("初始化路由数据库失败: %v", err)
		}
		logger.Info("路由数据库: %s", cfg.Database.FilePath)
	}

	// Prometheus 指标
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(forwarding.NewCollector(forwarder))

		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("指标服务监听 %s", cfg.Metrics.Listen)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("指标服务异常退出: %v", err)
			}
		}()
	}

	logger.Info("LPM Router 启动完成，当前路由 %d 条", table.Size())

	// 启动CLI
	commandLine := cli.NewCLI(forwarder, configManager, staticManager)
	go commandLine.Start()

	// 等待中断信号或CLI退出
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info("收到信号 %v", sig)
	case <-commandLine.GetExitChan():
	}

	logger.Info("正在关闭 LPM Router...")

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("关闭指标服务失败: %v", err)
		}
		cancel()
	}

	if dbManager != nil {
		if err := dbManager.Close(); err != nil {
			logger.Error("关闭数据库失败: %v", err)
		}
	}

	stats := forwarder.GetStats()
	logger.Info("转发统计: %s", stats)
	logger.Info("LPM Router 已关闭")
}

// initStore 连接数据库，建表并恢复上次保存的路由
func initStore(ctx context.Context, m *database.Manager, sm *protocols.StaticRouteManager) error {
	if err := m.Initialize(ctx); err != nil {
		return err
	}
	db := m.GetDatabase()
	if err := dao.Migrate(db); err != nil {
		return err
	}

	sm.SetStore(dao.NewRouteDAO(db))
	_, err := sm.LoadFromStore(ctx)
	return err
}
