package dao

import (
	"context"

	"lpm-router/internal/database"
)

// BaseDAO 基础DAO接口，定义通用的数据访问方法
type BaseDAO[T any] interface {
	// 基础CRUD操作
	Create(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	FindAll(ctx context.Context) ([]*T, error)
	FindAllOrdered(ctx context.Context, orderBy string) ([]*T, error)

	// 条件操作
	FindOneByCondition(ctx context.Context, condition interface{}) (*T, error)
	DeleteByCondition(ctx context.Context, condition interface{}) (int64, error)

	// Upsert 按唯一列插入或更新
	Upsert(ctx context.Context, entity *T, conflictColumns ...string) error

	// 统计操作
	Count(ctx context.Context, condition interface{}) (int64, error)
	Exists(ctx context.Context, condition interface{}) (bool, error)

	// 事务操作
	WithTransaction(ctx context.Context, fn func(tx database.Transaction) error) error
}
