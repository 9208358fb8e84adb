package routing

import "sync"

// SyncTable 给路由表加一把互斥锁
// 线性表的查找会改写缓存，所以查找也要持有写锁。
// 守护进程里CLI、转发前端和指标采集共享同一张表时使用。
type SyncTable struct {
	mu    sync.Mutex
	table TableInterface
}

// NewSyncTable 包装路由表
func NewSyncTable(table TableInterface) *SyncTable {
	return &SyncTable{table: table}
}

func (s *SyncTable) Add(route Route, allowReplace bool) (Route, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Add(route, allowReplace)
}

func (s *SyncTable) Remove(addr, mask uint32, sel *Selector) (Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Remove(addr, mask, sel)
}

func (s *SyncTable) Route(addr uint32) (NextHop, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Route(addr)
}

func (s *SyncTable) Dump() []Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Dump()
}

func (s *SyncTable) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Size()
}

func (s *SyncTable) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.Clear()
}

// CacheStats 被包装的表没有缓存时返回零值
func (s *SyncTable) CacheStats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.table.(CacheReporter); ok {
		return r.CacheStats()
	}
	return CacheStats{}
}

// ResetCacheStats 被包装的表没有缓存时什么也不做
func (s *SyncTable) ResetCacheStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.table.(CacheReporter); ok {
		r.ResetCacheStats()
	}
}

// Check 被包装的表不支持自检时返回nil
func (s *SyncTable) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.table.(Checker); ok {
		return c.Check()
	}
	return nil
}
