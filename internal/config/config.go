package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sugawarayuuta/sonnet"

	"lpm-router/internal/routing"
)

// StaticRouteConfig 静态路由配置
type StaticRouteConfig struct {
	Destination string `json:"destination"`
	// Gateway 为空或"-"表示直连
	Gateway string `json:"gateway"`
	Port    int    `json:"port"`
}

// DatabaseConfig 路由持久化配置
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	FilePath string `json:"file_path"`
}

// MetricsConfig Prometheus指标配置
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"`
}

// RouterConfig 路由器配置
type RouterConfig struct {
	Hostname string `json:"hostname"`

	// Ports 输出端口数量
	Ports int `json:"ports"`

	// TableType linear 或 sorted
	TableType string `json:"table_type"`

	// CacheDepth 查找缓存深度 0..4
	CacheDepth int `json:"cache_depth"`

	// CheckInvariants 每次变更后执行路由表一致性检查（调试用）
	CheckInvariants bool `json:"check_invariants"`

	StaticRoutes []StaticRouteConfig `json:"static_routes"`
	Database     DatabaseConfig      `json:"database"`
	Metrics      MetricsConfig       `json:"metrics"`
	LogLevel     string              `json:"log_level"`
	LogFile      string              `json:"log_file"`
}

// Validate 检查配置是否合法
func (c *RouterConfig) Validate() error {
	var errs []error

	if c.Ports < 1 {
		errs = append(errs, fmt.Errorf("端口数量必须大于0: %d", c.Ports))
	}
	if c.CacheDepth < 0 || c.CacheDepth > routing.MaxCacheDepth {
		errs = append(errs, fmt.Errorf("缓存深度必须在0到%d之间: %d", routing.MaxCacheDepth, c.CacheDepth))
	}
	if _, err := routing.ParseRouteTableType(c.TableType); err != nil {
		errs = append(errs, err)
	}
	for i, r := range c.StaticRoutes {
		if _, _, err := routing.ParsePrefix(r.Destination); err != nil {
			errs = append(errs, fmt.Errorf("静态路由 %d: %w", i, err))
		}
		if gw := r.Gateway; gw != "" && gw != "-" {
			if _, err := routing.ParseAddr(gw); err != nil {
				errs = append(errs, fmt.Errorf("静态路由 %d: %w", i, err))
			}
		}
		if r.Port < 0 || r.Port >= c.Ports {
			errs = append(errs, fmt.Errorf("静态路由 %d: %w: %d", i, routing.ErrInvalidPort, r.Port))
		}
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, errors.New("启用指标时必须设置监听地址"))
	}
	if c.Database.Enabled && c.Database.FilePath == "" {
		errs = append(errs, errors.New("启用数据库时必须设置文件路径"))
	}

	return errors.Join(errs...)
}

// ConfigManager 配置管理器
type ConfigManager struct {
	config     *RouterConfig
	configFile string
	mu         sync.RWMutex
}

// NewConfigManager 创建配置管理器
func NewConfigManager(configFile string) *ConfigManager {
	return &ConfigManager{
		configFile: configFile,
		config:     DefaultConfig(),
	}
}

// DefaultConfig 获取默认配置
func DefaultConfig() *RouterConfig {
	return &RouterConfig{
		Hostname:     "lpm-router",
		Ports:        4,
		TableType:    routing.RouteTableTypeLinear.String(),
		CacheDepth:   routing.DefaultCacheDepth,
		StaticRoutes: []StaticRouteConfig{},
		Database: DatabaseConfig{
			Enabled:  false,
			FilePath: "routes.db",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9108",
		},
		LogLevel: "info",
	}
}

// LoadConfig 加载配置文件
// 文件不存在时写出默认配置
func (cm *ConfigManager) LoadConfig() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, err := os.Stat(cm.configFile); os.IsNotExist(err) {
		return cm.saveConfigUnsafe()
	}

	data, err := os.ReadFile(cm.configFile)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 未出现的字段保留默认值
	config := DefaultConfig()
	if err := sonnet.Unmarshal(data, config); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("配置文件无效: %w", err)
	}

	cm.config = config
	return nil
}

// SaveConfig 保存配置文件
func (cm *ConfigManager) SaveConfig() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.saveConfigUnsafe()
}

// saveConfigUnsafe 保存配置（不加锁）
func (cm *ConfigManager) saveConfigUnsafe() error {
	data, err := sonnet.Marshal(cm.config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return fmt.Errorf("格式化配置失败: %w", err)
	}
	out.WriteByte('\n')

	if err := os.WriteFile(cm.configFile, out.Bytes(), 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// ConfigFile 配置文件路径
func (cm *ConfigManager) ConfigFile() string {
	return cm.configFile
}

// GetConfig 获取配置的副本
func (cm *ConfigManager) GetConfig() *RouterConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	configCopy := *cm.config
	configCopy.StaticRoutes = append([]StaticRouteConfig(nil), cm.config.StaticRoutes...)
	return &configCopy
}

// SetHostname 设置主机名
func (cm *ConfigManager) SetHostname(hostname string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.config.Hostname = hostname
}

// AddStaticRoute 添加静态路由配置
// 目的前缀相同的配置会被替换
func (cm *ConfigManager) AddStaticRoute(route StaticRouteConfig) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for i, existing := range cm.config.StaticRoutes {
		if samePrefix(existing.Destination, route.Destination) {
			cm.config.StaticRoutes[i] = route
			return
		}
	}

	cm.config.StaticRoutes = append(cm.config.StaticRoutes, route)
}

// RemoveStaticRoute 删除静态路由配置
func (cm *ConfigManager) RemoveStaticRoute(destination string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for i, route := range cm.config.StaticRoutes {
		if samePrefix(route.Destination, destination) {
			cm.config.StaticRoutes = append(cm.config.StaticRoutes[:i], cm.config.StaticRoutes[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("静态路由 %s 不存在", destination)
}

// SetStaticRoutes 整体替换静态路由配置
func (cm *ConfigManager) SetStaticRoutes(routes []StaticRouteConfig) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.config.StaticRoutes = append([]StaticRouteConfig(nil), routes...)
}

// SetLogConfig 设置日志配置
func (cm *ConfigManager) SetLogConfig(level, file string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.config.LogLevel = level
	cm.config.LogFile = file
}

// samePrefix 比较两个前缀字符串，"10.1.2.3/8"与"10.0.0.0/8"视为相同
func samePrefix(a, b string) bool {
	aa, am, errA := routing.ParsePrefix(a)
	ba, bm, errB := routing.ParsePrefix(b)
	if errA != nil || errB != nil {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return aa == ba && am == bm
}
