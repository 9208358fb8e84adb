package routing

import (
	"fmt"
	"sort"
	"sync"
)

// SortedTable 排序基线路由表
//
// 路由按前缀长度降序排列，查找时第一条匹配就是最长前缀匹配。
// 它和LinearTable实现同一个接口，用作对比基线：
// 性能测试对比两者的查找开销，随机测试用它校验LinearTable的查找结果。
type SortedTable struct {
	// routes 按前缀长度降序排列，相同长度时保持插入顺序
	routes []Route

	// mu 读写互斥锁
	mu sync.RWMutex
}

// NewSortedTable 创建排序基线路由表
func NewSortedTable() *SortedTable {
	return &SortedTable{
		routes: make([]Route, 0),
	}
}

// Add 添加或替换路由
func (t *SortedTable) Add(route Route, allowReplace bool) (Route, bool, error) {
	if !ValidMask(route.Mask) {
		return Route{}, false, fmt.Errorf("%w: %s", ErrInvalidMask, FormatAddr(route.Mask))
	}
	if route.Port < 0 {
		return Route{}, false, fmt.Errorf("%w: %d", ErrInvalidPort, route.Port)
	}
	route.Addr &= route.Mask

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.routes {
		if t.routes[i].SamePrefix(route.Addr, route.Mask) {
			if !allowReplace {
				return Route{}, false, fmt.Errorf("%w: %s", ErrRouteExists, route.Prefix())
			}
			old := t.routes[i]
			t.routes[i].Gateway = route.Gateway
			t.routes[i].Port = route.Port
			return old, true, nil
		}
	}

	t.routes = append(t.routes, route)
	t.sortRoutes()
	return Route{}, false, nil
}

// Remove 删除路由
func (t *SortedTable) Remove(addr, mask uint32, sel *Selector) (Route, error) {
	addr &= mask

	t.mu.Lock()
	defer t.mu.Unlock()

	for i, r := range t.routes {
		if !r.SamePrefix(addr, mask) {
			continue
		}
		if sel != nil && (r.Gateway != sel.Gateway || r.Port != sel.Port) {
			continue
		}
		t.routes = append(t.routes[:i], t.routes[i+1:]...)
		return r, nil
	}

	return Route{}, fmt.Errorf("%w: %s/%d", ErrRouteNotFound, FormatAddr(addr), MaskToPrefixLen(mask))
}

// Route 查找最长前缀匹配
// 路由表已按前缀长度排序，第一个匹配的就是最佳路由
func (t *SortedTable) Route(addr uint32) (NextHop, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, r := range t.routes {
		if r.Contains(addr) {
			return r.NextHop(), true
		}
	}
	return NextHop{}, false
}

// Dump 返回所有路由的副本
func (t *SortedTable) Dump() []Route {
	t.mu.RLock()
	defer t.mu.RUnlock()

	routes := make([]Route, len(t.routes))
	copy(routes, t.routes)
	return routes
}

// Size 返回路由表大小
func (t *SortedTable) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}

// Clear 清空路由表
func (t *SortedTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = t.routes[:0]
}

// sortRoutes 按前缀长度降序排序
// 使用稳定排序，相同长度的路由保持插入顺序
func (t *SortedTable) sortRoutes() {
	sort.SliceStable(t.routes, func(i, j int) bool {
		return t.routes[i].Mask > t.routes[j].Mask
	})
}
