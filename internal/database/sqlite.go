package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteDatabase SQLite数据库实现
type SQLiteDatabase struct {
	db     *gorm.DB
	config *Config
}

// SQLiteTransaction SQLite事务实现
type SQLiteTransaction struct {
	tx *gorm.DB
}

// NewSQLiteDatabase 创建SQLite数据库实例
func NewSQLiteDatabase(config *Config) (Database, error) {
	if config.FilePath == "" {
		config.FilePath = "routes.db"
	}

	// 确保目录存在
	if !isMemoryPath(config.FilePath) {
		dir := filepath.Dir(config.FilePath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return nil, err
			}
		}
	}

	return &SQLiteDatabase{
		config: config,
	}, nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

// Connect 连接数据库
func (s *SQLiteDatabase) Connect(ctx context.Context) error {
	logLevel := logger.Silent
	if s.config.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(s.config.FilePath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// 内存数据库每个连接都是独立的库，只能用一个连接
	switch {
	case isMemoryPath(s.config.FilePath):
		sqlDB.SetMaxOpenConns(1)
	case s.config.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(s.config.MaxOpenConns)
	default:
		sqlDB.SetMaxOpenConns(10)
	}

	if s.config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(s.config.MaxIdleConns)
	} else {
		sqlDB.SetMaxIdleConns(5)
	}

	if s.config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(s.config.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if s.config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(s.config.ConnMaxIdleTime)
	} else if !isMemoryPath(s.config.FilePath) {
		sqlDB.SetConnMaxIdleTime(30 * time.Minute)
	}

	s.db = db
	return nil
}

// Close 关闭数据库连接
func (s *SQLiteDatabase) Close() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	s.db = nil
	return sqlDB.Close()
}

// Ping 检查数据库连接
func (s *SQLiteDatabase) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrNotConnected
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

// Begin 开始事务
func (s *SQLiteDatabase) Begin(ctx context.Context) (Transaction, error) {
	if s.db == nil {
		return nil, ErrNotConnected
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	return &SQLiteTransaction{tx: tx}, nil
}

// Migrate 执行数据库迁移
func (s *SQLiteDatabase) Migrate(models ...interface{}) error {
	if s.db == nil {
		return ErrNotConnected
	}

	return s.db.AutoMigrate(models...)
}

// Create 创建记录
func (s *SQLiteDatabase) Create(ctx context.Context, model interface{}) error {
	if s.db == nil {
		return ErrNotConnected
	}
	return s.db.WithContext(ctx).Create(model).Error
}

// Update 更新记录
func (s *SQLiteDatabase) Update(ctx context.Context, model interface{}) error {
	if s.db == nil {
		return ErrNotConnected
	}
	return s.db.WithContext(ctx).Save(model).Error
}

// Delete 按主键删除记录
func (s *SQLiteDatabase) Delete(ctx context.Context, model interface{}) error {
	if s.db == nil {
		return ErrNotConnected
	}
	return s.db.WithContext(ctx).Delete(model).Error
}

// FindOne 查找单条记录
func (s *SQLiteDatabase) FindOne(ctx context.Context, condition interface{}, model interface{}) error {
	if s.db == nil {
		return ErrNotConnected
	}
	return where(s.db.WithContext(ctx), condition).First(model).Error
}

// FindAll 查找所有记录
func (s *SQLiteDatabase) FindAll(ctx context.Context, condition interface{}, models interface{}) error {
	if s.db == nil {
		return ErrNotConnected
	}
	return where(s.db.WithContext(ctx), condition).Find(models).Error
}

// FindAllWithOrder 排序查询
func (s *SQLiteDatabase) FindAllWithOrder(ctx context.Context, condition interface{}, models interface{}, orderBy string) error {
	if s.db == nil {
		return ErrNotConnected
	}
	return where(s.db.WithContext(ctx), condition).Order(orderBy).Find(models).Error
}

// Upsert 插入记录，唯一列冲突时更新其余字段
func (s *SQLiteDatabase) Upsert(ctx context.Context, model interface{}, conflictColumns ...string) error {
	if s.db == nil {
		return ErrNotConnected
	}
	return upsert(s.db.WithContext(ctx), model, conflictColumns)
}

// DeleteWhere 按条件删除
func (s *SQLiteDatabase) DeleteWhere(ctx context.Context, condition interface{}, model interface{}) (int64, error) {
	if s.db == nil {
		return 0, ErrNotConnected
	}
	result := where(s.db.WithContext(ctx), condition).Delete(model)
	return result.RowsAffected, result.Error
}

// Count 统计记录数
func (s *SQLiteDatabase) Count(ctx context.Context, condition interface{}, model interface{}) (int64, error) {
	if s.db == nil {
		return 0, ErrNotConnected
	}

	var count int64
	result := where(s.db.WithContext(ctx).Model(model), condition).Count(&count)
	return count, result.Error
}

// Exists 检查记录是否存在
func (s *SQLiteDatabase) Exists(ctx context.Context, condition interface{}, model interface{}) (bool, error) {
	count, err := s.Count(ctx, condition, model)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SQLiteTransaction 事务方法实现

// Create 在事务中创建记录
func (t *SQLiteTransaction) Create(ctx context.Context, model interface{}) error {
	return t.tx.WithContext(ctx).Create(model).Error
}

// Update 在事务中更新记录
func (t *SQLiteTransaction) Update(ctx context.Context, model interface{}) error {
	return t.tx.WithContext(ctx).Save(model).Error
}

// Upsert 在事务中插入或更新
func (t *SQLiteTransaction) Upsert(ctx context.Context, model interface{}, conflictColumns ...string) error {
	return upsert(t.tx.WithContext(ctx), model, conflictColumns)
}

// DeleteWhere 在事务中按条件删除
func (t *SQLiteTransaction) DeleteWhere(ctx context.Context, condition interface{}, model interface{}) (int64, error) {
	result := where(t.tx.WithContext(ctx), condition).Delete(model)
	return result.RowsAffected, result.Error
}

// FindAll 在事务中查找所有记录
func (t *SQLiteTransaction) FindAll(ctx context.Context, condition interface{}, models interface{}) error {
	return where(t.tx.WithContext(ctx), condition).Find(models).Error
}

// Commit 提交事务
func (t *SQLiteTransaction) Commit() error {
	return t.tx.Commit().Error
}

// Rollback 回滚事务
func (t *SQLiteTransaction) Rollback() error {
	return t.tx.Rollback().Error
}

func where(db *gorm.DB, condition interface{}) *gorm.DB {
	if condition == nil {
		return db
	}
	return db.Where(condition)
}

func upsert(db *gorm.DB, model interface{}, conflictColumns []string) error {
	columns := make([]clause.Column, len(conflictColumns))
	for i, name := range conflictColumns {
		columns[i] = clause.Column{Name: name}
	}
	return db.Clauses(clause.OnConflict{
		Columns:   columns,
		UpdateAll: true,
	}).Create(model).Error
}
