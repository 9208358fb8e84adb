package dao

import (
	"context"
	"fmt"
	"time"

	"lpm-router/internal/database"
	"lpm-router/internal/routing"
)

// RouteModel 路由数据模型
// 一个前缀(addr, mask)只保存一条记录
type RouteModel struct {
	// ID 主键ID，按插入顺序递增，恢复路由时按它排序
	ID int64 `json:"id" gorm:"primaryKey;autoIncrement"`

	// Addr 前缀地址（主机字节序）
	Addr uint32 `json:"addr" gorm:"column:addr;not null;uniqueIndex:idx_route_prefix"`

	// Mask 前缀掩码
	Mask uint32 `json:"mask" gorm:"column:mask;not null;uniqueIndex:idx_route_prefix"`

	// Gateway 网关，0表示直连
	Gateway uint32 `json:"gateway" gorm:"column:gateway;not null"`

	// Port 输出端口
	Port int `json:"port" gorm:"column:port;not null"`

	// Prefix 便于人工查看的CIDR文本
	Prefix string `json:"prefix" gorm:"column:prefix;type:varchar(32)"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName 指定表名
func (RouteModel) TableName() string {
	return "route_configs"
}

// ToRoute 转换为路由条目
func (m *RouteModel) ToRoute() routing.Route {
	return routing.Route{Addr: m.Addr, Mask: m.Mask, Gateway: m.Gateway, Port: m.Port}
}

// NewRouteModel 从路由条目创建数据模型
func NewRouteModel(r routing.Route) *RouteModel {
	return &RouteModel{
		Addr:    r.Addr,
		Mask:    r.Mask,
		Gateway: r.Gateway,
		Port:    r.Port,
		Prefix:  r.Prefix(),
	}
}

// RouteDAO 路由持久化接口
type RouteDAO interface {
	// Save 保存路由，前缀已存在时更新网关和端口
	Save(ctx context.Context, route routing.Route) error

	// Delete 删除前缀，不存在时返回 routing.ErrRouteNotFound
	Delete(ctx context.Context, addr, mask uint32) error

	// GetAll 按保存顺序返回所有路由
	GetAll(ctx context.Context) ([]routing.Route, error)

	// ReplaceAll 在一个事务里用routes替换全部记录
	ReplaceAll(ctx context.Context, routes []routing.Route) error

	Count(ctx context.Context) (int64, error)
}

// RouteDAOImpl 路由DAO的实现
type RouteDAOImpl struct {
	base *BaseDAOImpl[RouteModel]
}

// NewRouteDAO 创建路由DAO实例
func NewRouteDAO(db database.Database) RouteDAO {
	return &RouteDAOImpl{base: NewBaseDAO[RouteModel](db)}
}

// Migrate 创建route_configs表
func Migrate(db database.Database) error {
	return db.Migrate(&RouteModel{})
}

func prefixCondition(addr, mask uint32) map[string]interface{} {
	return map[string]interface{}{"addr": addr & mask, "mask": mask}
}

// Save 保存路由
func (d *RouteDAOImpl) Save(ctx context.Context, route routing.Route) error {
	route.Addr &= route.Mask
	if err := d.base.Upsert(ctx, NewRouteModel(route), "addr", "mask"); err != nil {
		return fmt.Errorf("保存路由 %s 失败: %w", route.Prefix(), err)
	}
	return nil
}

// Delete 删除路由
func (d *RouteDAOImpl) Delete(ctx context.Context, addr, mask uint32) error {
	n, err := d.base.DeleteByCondition(ctx, prefixCondition(addr, mask))
	if err != nil {
		return fmt.Errorf("删除路由失败: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%d", routing.ErrRouteNotFound,
			routing.FormatAddr(addr&mask), routing.MaskToPrefixLen(mask))
	}
	return nil
}

// GetAll 获取所有路由
func (d *RouteDAOImpl) GetAll(ctx context.Context) ([]routing.Route, error) {
	models, err := d.base.FindAllOrdered(ctx, "id")
	if err != nil {
		return nil, fmt.Errorf("读取路由失败: %w", err)
	}

	routes := make([]routing.Route, 0, len(models))
	for _, m := range models {
		routes = append(routes, m.ToRoute())
	}
	return routes, nil
}

// ReplaceAll 替换全部路由
func (d *RouteDAOImpl) ReplaceAll(ctx context.Context, routes []routing.Route) error {
	return d.base.WithTransaction(ctx, func(tx database.Transaction) error {
		if _, err := tx.DeleteWhere(ctx, "1 = 1", &RouteModel{}); err != nil {
			return fmt.Errorf("清空路由失败: %w", err)
		}
		for _, r := range routes {
			r.Addr &= r.Mask
			if err := tx.Upsert(ctx, NewRouteModel(r), "addr", "mask"); err != nil {
				return fmt.Errorf("保存路由 %s 失败: %w", r.Prefix(), err)
			}
		}
		return nil
	})
}

// Count 路由记录数
func (d *RouteDAOImpl) Count(ctx context.Context) (int64, error) {
	return d.base.Count(ctx, nil)
}
