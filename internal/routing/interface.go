package routing

import (
	"fmt"
	"strings"
)

// TableInterface 通用路由表接口
// 转发前端和静态路由管理器只依赖这个接口，
// 这样可以在运行时选择线性表还是排序基线表
type TableInterface interface {
	// Add 添加路由
	// 前缀已存在时：allowReplace为false返回ErrRouteExists，
	// 否则原地更新网关和端口，并返回被替换的旧路由
	Add(route Route, allowReplace bool) (old Route, replaced bool, err error)

	// Remove 删除路由
	// sel为nil时匹配该前缀的任意网关/端口
	Remove(addr, mask uint32, sel *Selector) (Route, error)

	// Route 最长前缀匹配查找
	Route(addr uint32) (NextHop, bool)

	// Dump 按表顺序返回所有有效路由
	Dump() []Route

	// Size 返回有效路由数量
	Size() int

	// Clear 清空路由表
	Clear()
}

// CacheReporter 可选接口，带查找缓存的路由表实现
type CacheReporter interface {
	CacheStats() CacheStats
	ResetCacheStats()
}

// Checker 可选接口，支持一致性自检的路由表实现
type Checker interface {
	Check() error
}

// RouteTableType 路由表类型枚举
type RouteTableType int

const (
	// RouteTableTypeLinear 线性表 + chain-next 索引 + 查找缓存
	RouteTableTypeLinear RouteTableType = iota

	// RouteTableTypeSorted 按前缀长度排序的基线表
	RouteTableTypeSorted
)

// String 返回路由表类型的字符串表示
func (t RouteTableType) String() string {
	switch t {
	case RouteTableTypeLinear:
		return "linear"
	case RouteTableTypeSorted:
		return "sorted"
	default:
		return "unknown"
	}
}

// ParseRouteTableType 解析路由表类型，空字符串视为线性表
func ParseRouteTableType(s string) (RouteTableType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return RouteTableTypeLinear, nil
	case "sorted":
		return RouteTableTypeSorted, nil
	default:
		return 0, fmt.Errorf("未知的路由表类型: %s", s)
	}
}

// NewTableByType 按类型创建路由表
// opts只对线性表生效
func NewTableByType(t RouteTableType, opts Options) (TableInterface, error) {
	switch t {
	case RouteTableTypeLinear:
		return NewLinearTable(opts), nil
	case RouteTableTypeSorted:
		return NewSortedTable(), nil
	default:
		return nil, fmt.Errorf("未知的路由表类型: %d", t)
	}
}
