package routing

// MaxCacheDepth 查找缓存的最大槽位数
const MaxCacheDepth = 4

// DefaultCacheDepth 默认缓存深度：主槽 + 次槽
const DefaultCacheDepth = 2

// CacheEntry 缓存槽位，记录目标地址到表索引的映射
type CacheEntry struct {
	Addr  uint32
	Index int
}

// CacheStats 缓存统计信息
type CacheStats struct {
	// Depth 配置的缓存深度
	Depth int

	// Hits 缓存命中次数
	Hits uint64

	// Misses 缓存未命中次数
	Misses uint64

	// Invalidations 整体失效次数
	Invalidations uint64
}

// HitRate 命中率，范围0.0-1.0
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total)
}

// LookupCache 最近使用查找缓存
//
// 一个固定容量的小数组，slots[0]是最近使用的条目。
// 命中非首位时提升到首位；未命中后安装到首位，其余依次后移，
// 最久未用的条目被丢弃。任何路由表变更都会使整个缓存失效。
//
// 缓存不做内部同步，和路由表一样由单一所有者使用。
type LookupCache struct {
	slots [MaxCacheDepth]CacheEntry
	used  int
	depth int
	stats CacheStats
}

// NewLookupCache 创建查找缓存
// depth会被限制在 [0, MaxCacheDepth]，0表示禁用缓存
func NewLookupCache(depth int) *LookupCache {
	if depth < 0 {
		depth = 0
	}
	if depth > MaxCacheDepth {
		depth = MaxCacheDepth
	}
	return &LookupCache{depth: depth}
}

// Depth 返回缓存深度
func (c *LookupCache) Depth() int {
	return c.depth
}

// Len 返回当前有效的缓存条目数
func (c *LookupCache) Len() int {
	return c.used
}

// Get 查找缓存
func (c *LookupCache) Get(addr uint32) (int, bool) {
	for i := 0; i < c.used; i++ {
		if c.slots[i].Addr != addr {
			continue
		}
		hit := c.slots[i]
		// 提升到首位
		copy(c.slots[1:i+1], c.slots[:i])
		c.slots[0] = hit
		c.stats.Hits++
		return hit.Index, true
	}
	c.stats.Misses++
	return -1, false
}

// Put 安装一个新的查找结果到首位
func (c *LookupCache) Put(addr uint32, index int) {
	if c.depth == 0 {
		return
	}
	n := c.used
	if n == c.depth {
		n--
	}
	copy(c.slots[1:n+1], c.slots[:n])
	c.slots[0] = CacheEntry{Addr: addr, Index: index}
	c.used = n + 1
}

// Invalidate 使全部缓存条目失效
func (c *LookupCache) Invalidate() {
	c.used = 0
	c.stats.Invalidations++
}

// Entries 按最近使用顺序返回缓存内容
func (c *LookupCache) Entries() []CacheEntry {
	out := make([]CacheEntry, c.used)
	copy(out, c.slots[:c.used])
	return out
}

// Stats 返回缓存统计
func (c *LookupCache) Stats() CacheStats {
	s := c.stats
	s.Depth = c.depth
	return s
}

// ResetStats 重置统计
func (c *LookupCache) ResetStats() {
	c.stats = CacheStats{}
}
