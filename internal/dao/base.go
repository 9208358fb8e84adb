package dao

import (
	"context"
	"fmt"

	"lpm-router/internal/database"
)

// BaseDAOImpl 基础DAO实现
type BaseDAOImpl[T any] struct {
	db database.Database
}

// NewBaseDAO 创建基础DAO实例
func NewBaseDAO[T any](db database.Database) *BaseDAOImpl[T] {
	return &BaseDAOImpl[T]{db: db}
}

var _ BaseDAO[struct{}] = (*BaseDAOImpl[struct{}])(nil)

// Create 创建实体
func (dao *BaseDAOImpl[T]) Create(ctx context.Context, entity *T) error {
	if entity == nil {
		return fmt.Errorf("entity cannot be nil")
	}
	return dao.db.Create(ctx, entity)
}

// Update 更新实体
func (dao *BaseDAOImpl[T]) Update(ctx context.Context, entity *T) error {
	if entity == nil {
		return fmt.Errorf("entity cannot be nil")
	}
	return dao.db.Update(ctx, entity)
}

// Upsert 插入实体，唯一列冲突时更新
func (dao *BaseDAOImpl[T]) Upsert(ctx context.Context, entity *T, conflictColumns ...string) error {
	if entity == nil {
		return fmt.Errorf("entity cannot be nil")
	}
	return dao.db.Upsert(ctx, entity, conflictColumns...)
}

// FindAll 查找所有实体
func (dao *BaseDAOImpl[T]) FindAll(ctx context.Context) ([]*T, error) {
	var entities []*T
	if err := dao.db.FindAll(ctx, nil, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// FindAllOrdered 按指定顺序查找所有实体
func (dao *BaseDAOImpl[T]) FindAllOrdered(ctx context.Context, orderBy string) ([]*T, error) {
	var entities []*T
	if err := dao.db.FindAllWithOrder(ctx, nil, &entities, orderBy); err != nil {
		return nil, err
	}
	return entities, nil
}

// FindOneByCondition 根据条件查找单个实体
func (dao *BaseDAOImpl[T]) FindOneByCondition(ctx context.Context, condition interface{}) (*T, error) {
	entity := new(T)
	if err := dao.db.FindOne(ctx, condition, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// DeleteByCondition 根据条件删除，返回删除的行数
func (dao *BaseDAOImpl[T]) DeleteByCondition(ctx context.Context, condition interface{}) (int64, error) {
	if condition == nil {
		return 0, fmt.Errorf("condition cannot be nil")
	}
	return dao.db.DeleteWhere(ctx, condition, new(T))
}

// Count 统计记录数
func (dao *BaseDAOImpl[T]) Count(ctx context.Context, condition interface{}) (int64, error) {
	return dao.db.Count(ctx, condition, new(T))
}

// Exists 检查记录是否存在
func (dao *BaseDAOImpl[T]) Exists(ctx context.Context, condition interface{}) (bool, error) {
	return dao.db.Exists(ctx, condition, new(T))
}

// WithTransaction 执行事务操作
func (dao *BaseDAOImpl[T]) WithTransaction(ctx context.Context, fn func(tx database.Transaction) error) error {
	tx, err := dao.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
