package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNotConnected 数据库尚未连接
var ErrNotConnected = errors.New("database not connected")

// IsNotFound 判断错误是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Database 数据库接口，抽象不同数据库的操作
// condition 可以是结构体、map或nil（nil表示不加条件）
type Database interface {
	// 连接管理
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// 事务管理
	Begin(ctx context.Context) (Transaction, error)

	// 迁移管理
	Migrate(models ...interface{}) error

	// 基础CRUD操作
	Create(ctx context.Context, model interface{}) error
	Update(ctx context.Context, model interface{}) error
	Delete(ctx context.Context, model interface{}) error
	FindOne(ctx context.Context, condition interface{}, model interface{}) error
	FindAll(ctx context.Context, condition interface{}, models interface{}) error
	FindAllWithOrder(ctx context.Context, condition interface{}, models interface{}, orderBy string) error

	// Upsert 按唯一列插入或更新
	Upsert(ctx context.Context, model interface{}, conflictColumns ...string) error

	// DeleteWhere 按条件删除，返回删除的行数
	DeleteWhere(ctx context.Context, condition interface{}, model interface{}) (int64, error)

	// 统计操作
	Count(ctx context.Context, condition interface{}, model interface{}) (int64, error)
	Exists(ctx context.Context, condition interface{}, model interface{}) (bool, error)
}

// Transaction 事务接口
type Transaction interface {
	Create(ctx context.Context, model interface{}) error
	Update(ctx context.Context, model interface{}) error
	Upsert(ctx context.Context, model interface{}, conflictColumns ...string) error
	DeleteWhere(ctx context.Context, condition interface{}, model interface{}) (int64, error)
	FindAll(ctx context.Context, condition interface{}, models interface{}) error

	// 事务控制
	Commit() error
	Rollback() error
}

// Config 数据库配置
type Config struct {
	Type string `json:"type"` // 数据库类型，目前只有 sqlite

	// Debug 输出SQL日志
	Debug bool `json:"debug"`

	// 连接池配置
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`

	// SQLite特定配置
	FilePath string `json:"file_path"`
}
