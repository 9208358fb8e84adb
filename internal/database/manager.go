package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SupportedTypes 路由库支持的数据库类型
// 路由表只需要一个嵌入式单文件库，sqlite3 是 sqlite 的别名
var SupportedTypes = []string{"sqlite", "sqlite3"}

// Manager 数据库管理器
type Manager struct {
	config   *Config
	database Database
	mu       sync.RWMutex
}

// openDatabase 按类型创建数据库实例，类型为空时使用sqlite
func openDatabase(config *Config) (Database, error) {
	switch strings.ToLower(config.Type) {
	case "", "sqlite", "sqlite3":
		return NewSQLiteDatabase(config)
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: %s)",
			config.Type, strings.Join(SupportedTypes, ", "))
	}
}

// NewManager 创建数据库管理器
func NewManager(config *Config) *Manager {
	if config == nil {
		config = GetDefaultConfig()
	}
	return &Manager{
		config: config,
	}
}

// Initialize 初始化数据库连接
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.database != nil {
		return nil
	}

	db, err := openDatabase(m.config)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m.database = db
	return nil
}

// GetDatabase 获取数据库实例，未初始化时返回nil
func (m *Manager) GetDatabase() Database {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.database
}

// Close 关闭数据库连接
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.database == nil {
		return nil
	}

	err := m.database.Close()
	m.database = nil
	return err
}

// Migrate 执行数据库迁移
func (m *Manager) Migrate(models ...interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.database == nil {
		return fmt.Errorf("database not initialized")
	}

	return m.database.Migrate(models...)
}

// IsInitialized 检查是否已初始化
func (m *Manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.database != nil
}

// GetConfig 获取数据库配置
func (m *Manager) GetConfig() *Config {
	return m.config
}

// GetDefaultConfig 获取默认数据库配置
func GetDefaultConfig() *Config {
	return &Config{
		Type:            "sqlite",
		FilePath:        "routes.db",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}
