package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/sugawarayuuta/sonnet"

	"lpm-router/internal/config"
	"lpm-router/internal/forwarding"
	"lpm-router/internal/packet"
	"lpm-router/internal/protocols"
	"lpm-router/internal/routing"
)

// CLI 命令行接口
type CLI struct {
	forwarder     *forwarding.Forwarder
	configManager *config.ConfigManager
	staticManager *protocols.StaticRouteManager
	out           io.Writer
	running       bool
	exitChan      chan bool
	rl            *readline.Instance
	historyFile   string
}

// NewCLI 创建CLI实例
func NewCLI(f *forwarding.Forwarder, cm *config.ConfigManager, sm *protocols.StaticRouteManager) *CLI {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}

	return &CLI{
		forwarder:     f,
		configManager: cm,
		staticManager: sm,
		out:           os.Stdout,
		exitChan:      make(chan bool, 1),
		historyFile:   filepath.Join(homeDir, ".lpm-router_history"),
	}
}

// SetOutput 设置命令输出目标
func (cli *CLI) SetOutput(w io.Writer) {
	cli.out = w
}

func (cli *CLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.out, format, args...)
}

func (cli *CLI) println(args ...interface{}) {
	fmt.Fprintln(cli.out, args...)
}

func (cli *CLI) table() routing.TableInterface {
	return cli.forwarder.Table()
}

// Start 启动CLI，阻塞直到exit或输入结束
func (cli *CLI) Start() {
	cli.running = true
	cli.println("LPM Router CLI 已启动")
	cli.println("输入 'help' 查看可用命令")

	cfg := &readline.Config{
		Prompt:          cli.configManager.GetConfig().Hostname + "> ",
		HistoryFile:     cli.historyFile,
		AutoComplete:    cli.createCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          cli.out,
	}

	var err error
	cli.rl, err = readline.NewEx(cfg)
	if err != nil {
		cli.printf("初始化CLI失败: %v\n", err)
		cli.Stop()
		return
	}
	defer func() {
		_ = cli.rl.Close()
	}()

	for cli.running {
		line, err := cli.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			} else if err == io.EOF {
				break
			}
			cli.printf("读取输入失败: %v\n", err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cli.processCommand(line)
	}
	cli.Stop()
}

// Stop 停止CLI
func (cli *CLI) Stop() {
	cli.running = false
	select {
	case cli.exitChan <- true:
	default:
	}
}

// GetExitChan 获取退出信号channel
func (cli *CLI) GetExitChan() <-chan bool {
	return cli.exitChan
}

// processCommand 处理命令
func (cli *CLI) processCommand(line string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return
	}

	command := parts[0]
	args := parts[1:]

	switch command {
	case "help":
		cli.showHelp()
	case "show":
		cli.handleShowCommand(args)
	case "route":
		cli.handleRouteCommand(args)
	case "lookup":
		cli.handleLookupCommand(args)
	case "packet":
		cli.handlePacketCommand(args)
	case "check":
		cli.handleCheckCommand()
	case "save":
		cli.handleSaveCommand()
	case "exit", "quit":
		cli.Stop()
	default:
		cli.printf("未知命令: %s\n", command)
		cli.println("输入 'help' 查看可用命令")
	}
}

// showHelp 显示帮助信息
func (cli *CLI) showHelp() {
	cli.println("可用命令:")
	cli.println("  help                                   - 显示帮助信息")
	cli.println("  show routes [json]                     - 显示路由表")
	cli.println("  show stats                             - 显示转发统计")
	cli.println("  show cache                             - 显示查找缓存统计")
	cli.println("  show config                            - 显示配置")
	cli.println("  route add <cidr> <gw|-> <port> [...]   - 添加路由，可一次添加多条")
	cli.println("  route replace <cidr> <gw|-> <port> [...] - 添加或替换路由")
	cli.println("  route del <cidr> [<gw|-> <port>]       - 删除路由")
	cli.println("  lookup <ip>                            - 查找路由")
	cli.println("  packet send <dst> [count]              - 模拟转发数据包")
	cli.println("  packet stats                           - 显示数据包统计")
	cli.println("  packet reset                           - 重置统计信息")
	cli.println("  check                                  - 路由表一致性检查")
	cli.println("  save                                   - 保存配置和路由")
	cli.println("  exit/quit                              - 退出CLI")
}

// handleShowCommand 处理show命令
func (cli *CLI) handleShowCommand(args []string) {
	if len(args) == 0 {
		cli.println("用法: show <routes|stats|cache|config>")
		return
	}

	switch args[0] {
	case "routes":
		if len(args) > 1 && args[1] == "json" {
			cli.showRoutesJSON()
		} else {
			cli.showRoutes()
		}
	case "stats":
		cli.showStats()
	case "cache":
		cli.showCache()
	case "config":
		cli.showConfig()
	default:
		cli.printf("未知的show子命令: %s\n", args[0])
	}
}

// showRoutes 按表顺序显示路由
func (cli *CLI) showRoutes() {
	routes := cli.table().Dump()
	cli.printf("Entries: %d\n", len(routes))
	for _, r := range routes {
		cli.println(r.String())
	}
}

// routeConfigs 把路由表转换为配置格式
func routeConfigs(routes []routing.Route) []config.StaticRouteConfig {
	out := make([]config.StaticRouteConfig, 0, len(routes))
	for _, r := range routes {
		gw := ""
		if r.Gateway != 0 {
			gw = routing.FormatAddr(r.Gateway)
		}
		out = append(out, config.StaticRouteConfig{
			Destination: r.Prefix(),
			Gateway:     gw,
			Port:        r.Port,
		})
	}
	return out
}

func (cli *CLI) showRoutesJSON() {
	data, err := sonnet.Marshal(routeConfigs(cli.table().Dump()))
	if err != nil {
		cli.printf("序列化路由失败: %v\n", err)
		return
	}
	cli.println(string(data))
}

// showStats 显示转发统计
func (cli *CLI) showStats() {
	stats := cli.forwarder.GetStats()

	cli.println("转发统计:")
	cli.printf("  接收: %d\n", stats.Received)
	cli.printf("  转发: %d\n", stats.Forwarded)
	cli.printf("  无路由丢弃: %d\n", stats.NoRoute)
	cli.printf("  端口错误丢弃: %d\n", stats.BadPort)
	for i, n := range stats.PortPackets {
		cli.printf("  端口 %d: %d\n", i, n)
	}
	cli.printf("  统计开始: %s\n", stats.StartTime.Format("2006-01-02 15:04:05"))
}

// showCache 显示查找缓存统计
func (cli *CLI) showCache() {
	r, ok := cli.table().(routing.CacheReporter)
	if !ok {
		cli.println("路由表没有查找缓存")
		return
	}

	stats := r.CacheStats()
	cli.println("查找缓存:")
	cli.printf("  深度: %d\n", stats.Depth)
	cli.printf("  命中: %d\n", stats.Hits)
	cli.printf("  未命中: %d\n", stats.Misses)
	cli.printf("  失效次数: %d\n", stats.Invalidations)
	cli.printf("  命中率: %.2f%%\n", stats.HitRate()*100)
}

// showConfig 显示配置
func (cli *CLI) showConfig() {
	cfg := cli.configManager.GetConfig()

	cli.printf("主机名: %s\n", cfg.Hostname)
	cli.printf("端口数量: %d\n", cfg.Ports)
	cli.printf("路由表类型: %s\n", cfg.TableType)
	cli.printf("缓存深度: %d\n", cfg.CacheDepth)
	cli.printf("一致性检查: %v\n", cfg.CheckInvariants)
	cli.printf("静态路由: %d 条\n", len(cfg.StaticRoutes))
	cli.printf("数据库: %v (%s)\n", cfg.Database.Enabled, cfg.Database.FilePath)
	cli.printf("指标: %v (%s)\n", cfg.Metrics.Enabled, cfg.Metrics.Listen)
	cli.printf("日志级别: %s\n", cfg.LogLevel)
	cli.printf("日志文件: %s\n", cfg.LogFile)
}

// parseRouteArgs 解析若干组 <cidr> <gw|-> <port>
func parseRouteArgs(args []string) ([]config.StaticRouteConfig, error) {
	if len(args) == 0 || len(args)%3 != 0 {
		return nil, errors.New("参数数量错误")
	}

	routes := make([]config.StaticRouteConfig, 0, len(args)/3)
	for i := 0; i < len(args); i += 3 {
		port, err := strconv.Atoi(args[i+2])
		if err != nil {
			return nil, fmt.Errorf("无效的端口: %s", args[i+2])
		}
		routes = append(routes, config.StaticRouteConfig{
			Destination: args[i],
			Gateway:     args[i+1],
			Port:        port,
		})
	}
	return routes, nil
}

// handleRouteCommand 处理route命令
func (cli *CLI) handleRouteCommand(args []string) {
	if len(args) == 0 {
		cli.println("用法: route <add|replace|del> ...")
		return
	}

	switch args[0] {
	case "add", "replace":
		routes, err := parseRouteArgs(args[1:])
		if err != nil {
			cli.printf("用法: route %s <cidr> <gw|-> <port> [...]: %v\n", args[0], err)
			return
		}
		n, err := cli.staticManager.AddStaticRoutes(routes, args[0] == "replace")
		if err != nil {
			cli.printf("添加路由失败（已成功 %d 条）: %v\n", n, err)
			return
		}
		cli.printf("已添加 %d 条路由\n", n)

	case "del":
		var sel *routing.Selector
		switch len(args) {
		case 2:
		case 4:
			gw := uint32(0)
			if args[2] != "-" {
				a, err := routing.ParseAddr(args[2])
				if err != nil {
					cli.printf("无效的网关地址: %s\n", args[2])
					return
				}
				gw = a
			}
			port, err := strconv.Atoi(args[3])
			if err != nil {
				cli.printf("无效的端口: %s\n", args[3])
				return
			}
			sel = &routing.Selector{Gateway: gw, Port: port}
		default:
			cli.println("用法: route del <cidr> [<gw|-> <port>]")
			return
		}
		old, err := cli.staticManager.RemoveStaticRoute(args[1], sel)
		if err != nil {
			cli.printf("删除路由失败: %v\n", err)
			return
		}
		cli.printf("已删除路由 %s\n", old)

	default:
		cli.printf("未知的route子命令: %s\n", args[0])
	}
}

// handleLookupCommand 查找一个地址的下一跳
func (cli *CLI) handleLookupCommand(args []string) {
	if len(args) != 1 {
		cli.println("用法: lookup <ip>")
		return
	}

	addr, err := routing.ParseAddr(args[0])
	if err != nil {
		cli.printf("%v: %s\n", err, args[0])
		return
	}

	nh, ok := cli.table().Route(addr)
	if !ok {
		cli.printf("%s: %v\n", args[0], routing.ErrNoRoute)
		return
	}
	gw := "-"
	if nh.Gateway != 0 {
		gw = routing.FormatAddr(nh.Gateway)
	}
	cli.printf("%s -> 网关 %s 端口 %d\n", args[0], gw, nh.Port)
}

// handlePacketCommand 处理packet命令
func (cli *CLI) handlePacketCommand(args []string) {
	if len(args) == 0 {
		cli.println("用法: packet <send|stats|reset>")
		return
	}

	switch args[0] {
	case "send":
		cli.handlePacketSend(args[1:])
	case "stats":
		cli.showStats()
	case "reset":
		cli.forwarder.ResetStats()
		if r, ok := cli.table().(routing.CacheReporter); ok {
			r.ResetCacheStats()
		}
		cli.println("数据包和缓存统计信息已重置")
	default:
		cli.printf("未知的packet子命令: %s\n", args[0])
		cli.println("可用子命令: send, stats, reset")
	}
}

// handlePacketSend 构造数据包交给转发前端
func (cli *CLI) handlePacketSend(args []string) {
	if len(args) < 1 || len(args) > 2 {
		cli.println("用法: packet send <dst> [count]")
		return
	}

	dst, err := routing.ParseAddr(args[0])
	if err != nil {
		cli.printf("%v: %s\n", err, args[0])
		return
	}

	count := 1
	if len(args) == 2 {
		count, err = strconv.Atoi(args[1])
		if err != nil || count < 1 {
			cli.printf("无效的数量: %s\n", args[1])
			return
		}
	}

	before := cli.forwarder.GetStats()
	forwarded := 0
	var last routing.NextHop
	for i := 0; i < count; i++ {
		p := packet.New(0, dst, []byte("lpm-router test packet"))
		nh, ok := cli.forwarder.Forward(p)
		if ok {
			forwarded++
			last = nh
		}
	}
	after := cli.forwarder.GetStats()

	if forwarded < count {
		noRoute := after.NoRoute - before.NoRoute
		badPort := after.BadPort - before.BadPort
		if noRoute > 0 {
			cli.printf("%d 个数据包被丢弃: %v\n", noRoute, routing.ErrNoRoute)
		}
		if badPort > 0 {
			cli.printf("%d 个数据包被丢弃: %v\n", badPort, routing.ErrInvalidPort)
		}
	}

	switch {
	case forwarded == 0:
	case count == 1:
		cli.printf("数据包已从端口 %d 发出\n", last.Port)
	default:
		cli.printf("已转发 %d/%d 个数据包\n", forwarded, count)
	}
}

// handleCheckCommand 执行路由表一致性检查
func (cli *CLI) handleCheckCommand() {
	c, ok := cli.table().(routing.Checker)
	if !ok {
		cli.println("路由表不支持一致性检查")
		return
	}
	if err := c.Check(); err != nil {
		cli.printf("一致性检查失败:\n%v\n", err)
		return
	}
	cli.println("路由表一致")
}

// handleSaveCommand 把当前路由写入配置文件和数据库
func (cli *CLI) handleSaveCommand() {
	cli.configManager.SetStaticRoutes(routeConfigs(cli.table().Dump()))
	if err := cli.configManager.SaveConfig(); err != nil {
		cli.printf("保存配置失败: %v\n", err)
		return
	}
	cli.println("配置已保存")

	if !cli.staticManager.HasStore() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := cli.staticManager.SaveToStore(ctx)
	if err != nil {
		cli.printf("保存路由到数据库失败: %v\n", err)
		return
	}
	cli.printf("已保存 %d 条路由到数据库\n", n)
}

// createCompleter 创建自动补全器
func (cli *CLI) createCompleter() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("show",
			readline.PcItem("routes",
				readline.PcItem("json"),
			),
			readline.PcItem("stats"),
			readline.PcItem("cache"),
			readline.PcItem("config"),
		),
		readline.PcItem("route",
			readline.PcItem("add"),
			readline.PcItem("replace"),
			readline.PcItem("del"),
		),
		readline.PcItem("lookup"),
		readline.PcItem("packet",
			readline.PcItem("send"),
			readline.PcItem("stats"),
			readline.PcItem("reset"),
		),
		readline.PcItem("check"),
		readline.PcItem("save"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	)
}
