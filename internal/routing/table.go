package routing

import (
	"fmt"

	"lpm-router/internal/logging"
)

// noNext 表示没有 chain-next 目标
const noNext = -1

// slot 路由表槽位
// live为false表示空闲槽位，可被后续插入复用
type slot struct {
	route Route

	// next 后面第一条被本条前缀包含的路由的索引
	// 查找时用它跳过一定不会更具体的区间
	next int

	live bool
}

// Options 线性路由表选项
type Options struct {
	// CacheDepth 查找缓存深度，0表示禁用
	CacheDepth int

	// CheckInvariants 每次变更后执行一致性检查
	// 复杂度为O(n²)，只应在调试和测试中启用
	CheckInvariants bool

	// Logger 为nil时使用默认日志记录器
	Logger *logging.Logger
}

// DefaultOptions 返回默认选项
func DefaultOptions() Options {
	return Options{
		CacheDepth: DefaultCacheDepth,
	}
}

// LinearTable 线性路由表
//
// 路由条目保存在一个只增不减的槽位数组里，删除的条目变成空闲槽位，
// 后续插入优先复用索引最小的空闲槽位。每个条目维护一个 chain-next
// 索引，指向其后第一条被它包含的路由，查找时先找到表序中的第一条
// 匹配，再从它的 chain-next 开始线性扫描更具体的匹配。
//
// LinearTable 不做内部同步：查找和变更必须由同一个所有者串行执行。
type LinearTable struct {
	slots  []slot
	live   int
	free   int
	cache  *LookupCache
	opts   Options
	logger *logging.Logger
}

// NewLinearTable 创建线性路由表
func NewLinearTable(opts Options) *LinearTable {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &LinearTable{
		slots:  make([]slot, 0),
		cache:  NewLookupCache(opts.CacheDepth),
		opts:   opts,
		logger: logger.WithComponent("routing"),
	}
}

// Add 添加或替换路由
//
// 前缀已存在时，allowReplace为false返回ErrRouteExists且路由表不变；
// 否则原地更新网关和端口并返回旧路由。前缀不变，所以无需修复chain索引。
//
// 新前缀写入空闲槽位或追加到表尾，然后修复chain索引并使缓存失效。
func (t *LinearTable) Add(route Route, allowReplace bool) (Route, bool, error) {
	if !ValidMask(route.Mask) {
		return Route{}, false, fmt.Errorf("%w: %s", ErrInvalidMask, FormatAddr(route.Mask))
	}
	if route.Port < 0 {
		return Route{}, false, fmt.Errorf("%w: %d", ErrInvalidPort, route.Port)
	}
	route.Addr &= route.Mask

	if i := t.find(route.Addr, route.Mask, nil); i >= 0 {
		if !allowReplace {
			return Route{}, false, fmt.Errorf("%w: %s", ErrRouteExists, route.Prefix())
		}
		old := t.slots[i].route
		t.slots[i].route.Gateway = route.Gateway
		t.slots[i].route.Port = route.Port
		t.mutated()
		return old, true, nil
	}

	found := t.allocSlot(route)
	t.linkChain(found)
	t.mutated()
	return Route{}, false, nil
}

// Remove 删除路由
//
// 槽位被标记为空闲，不修复任何chain索引：指向空闲槽位的chain-next
// 只会让查找多扫描几个条目，不会影响结果的正确性。
func (t *LinearTable) Remove(addr, mask uint32, sel *Selector) (Route, error) {
	addr &= mask
	i := t.find(addr, mask, sel)
	if i < 0 {
		return Route{}, fmt.Errorf("%w: %s/%d", ErrRouteNotFound, FormatAddr(addr), MaskToPrefixLen(mask))
	}

	old := t.slots[i].route
	t.slots[i] = slot{next: noNext}
	t.live--
	t.free++
	t.mutated()
	return old, nil
}

// LookupEntry 最长前缀匹配，返回条目索引，没有匹配返回-1
//
// 表序中第一条包含addr的条目作为初始候选；随后从它的chain-next开始
// 扫描到表尾，任何包含addr且掩码至少同样具体的条目都会替换候选。
func (t *LinearTable) LookupEntry(addr uint32) int {
	for i := range t.slots {
		if !t.slots[i].live || !t.slots[i].route.Contains(addr) {
			continue
		}

		best := i
		if next := t.slots[i].next; next != noNext {
			for j := next; j < len(t.slots); j++ {
				s := &t.slots[j]
				if s.live && s.route.Contains(addr) && s.route.MaskAsSpecific(t.slots[best].route.Mask) {
					best = j
				}
			}
		}
		return best
	}
	return -1
}

// LookupRoute 不经过缓存的查找
func (t *LinearTable) LookupRoute(addr uint32) (NextHop, bool) {
	i := t.LookupEntry(addr)
	if i < 0 {
		return NextHop{}, false
	}
	return t.slots[i].route.NextHop(), true
}

// resolve 先查缓存，未命中时查表并刷新缓存
// 查找失败不写入缓存
func (t *LinearTable) resolve(addr uint32) (int, bool) {
	if i, ok := t.cache.Get(addr); ok {
		return i, true
	}
	i := t.LookupEntry(addr)
	if i < 0 {
		return -1, false
	}
	t.cache.Put(addr, i)
	return i, true
}

// Route 数据面查找接口
func (t *LinearTable) Route(addr uint32) (NextHop, bool) {
	i, ok := t.resolve(addr)
	if !ok {
		return NextHop{}, false
	}
	return t.slots[i].route.NextHop(), true
}

// Entry 返回指定索引的路由，空闲槽位返回false
func (t *LinearTable) Entry(i int) (Route, bool) {
	if i < 0 || i >= len(t.slots) || !t.slots[i].live {
		return Route{}, false
	}
	return t.slots[i].route, true
}

// Dump 按表顺序返回所有有效路由
func (t *LinearTable) Dump() []Route {
	routes := make([]Route, 0, t.live)
	for i := range t.slots {
		if t.slots[i].live {
			routes = append(routes, t.slots[i].route)
		}
	}
	return routes
}

// Size 返回有效路由数量
func (t *LinearTable) Size() int {
	return t.live
}

// Capacity 返回槽位总数（包括空闲槽位）
func (t *LinearTable) Capacity() int {
	return len(t.slots)
}

// Clear 清空路由表
func (t *LinearTable) Clear() {
	t.slots = t.slots[:0]
	t.live = 0
	t.free = 0
	t.cache.Invalidate()
}

// Reset 实例重置时清空查找缓存，路由保持不变
func (t *LinearTable) Reset() {
	t.cache.Invalidate()
}

// CacheStats 返回缓存统计
func (t *LinearTable) CacheStats() CacheStats {
	return t.cache.Stats()
}

// ResetCacheStats 清零缓存命中统计，缓存内容不变
func (t *LinearTable) ResetCacheStats() {
	t.cache.ResetStats()
}

// find 查找前缀完全相同的有效条目
func (t *LinearTable) find(addr, mask uint32, sel *Selector) int {
	for i := range t.slots {
		s := &t.slots[i]
		if !s.live || !s.route.SamePrefix(addr, mask) {
			continue
		}
		if sel != nil && (s.route.Gateway != sel.Gateway || s.route.Port != sel.Port) {
			continue
		}
		return i
	}
	return -1
}

// allocSlot 为新路由分配槽位：优先复用索引最小的空闲槽位，否则追加
func (t *LinearTable) allocSlot(route Route) int {
	found := -1
	if t.free > 0 {
		for i := range t.slots {
			if !t.slots[i].live {
				found = i
				break
			}
		}
	}
	if found < 0 {
		t.slots = append(t.slots, slot{})
		found = len(t.slots) - 1
	} else {
		t.free--
	}

	t.slots[found] = slot{route: route, next: noNext, live: true}
	t.live++
	return found
}

// mutated 每次变更后使缓存失效，并按需执行一致性检查
func (t *LinearTable) mutated() {
	t.cache.Invalidate()
	if !t.opts.CheckInvariants {
		return
	}
	if err := t.Check(); err != nil {
		t.logger.Error("路由表一致性检查失败: %v", err)
	}
}
