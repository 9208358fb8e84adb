package routing

import (
	"errors"
	"fmt"
)

// Check 全表一致性检查，返回所有违例的合集，一致时返回nil
//
// 检查项：
//   - chain-next 跳过的区间里没有被该条目包含的有效路由
//   - chain-next 指向的有效路由确实被该条目包含
//   - 没有两条有效路由的前缀相同
//   - 缓存里的每个条目都等于重新查表的结果
//
// 违例意味着实现有缺陷，而不是运行时状态。
func (t *LinearTable) Check() error {
	var errs []error
	n := len(t.slots)

	for i := 0; i < n; i++ {
		si := &t.slots[i]
		if !si.live {
			continue
		}

		if si.next != noNext && (si.next <= i || si.next >= n) {
			errs = append(errs, fmt.Errorf("chain-next越界: %s -> %d", si.route.Prefix(), si.next))
			continue
		}

		end := n
		if si.next != noNext {
			end = si.next
		}
		for j := i + 1; j < end; j++ {
			sj := &t.slots[j]
			if sj.live && si.route.ContainsRoute(sj.route) {
				errs = append(errs, fmt.Errorf("chain-next错误: %s 跳过了 %s", si.route.Prefix(), sj.route.Prefix()))
			}
		}

		if si.next != noNext {
			target := &t.slots[si.next]
			if target.live && !si.route.ContainsRoute(target.route) {
				errs = append(errs, fmt.Errorf("chain-next错误: %s 不包含 %s", si.route.Prefix(), target.route.Prefix()))
			}
		}
	}

	seen := make(map[uint64]int, t.live)
	for i := 0; i < n; i++ {
		if !t.slots[i].live {
			continue
		}
		r := t.slots[i].route
		key := uint64(r.Addr)<<32 | uint64(r.Mask)
		if j, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("重复路由: %s (索引 %d 和 %d)", r.Prefix(), j, i))
			continue
		}
		seen[key] = i
	}

	for _, e := range t.cache.Entries() {
		if got := t.LookupEntry(e.Addr); got != e.Index {
			errs = append(errs, fmt.Errorf("缓存错误: %s 缓存索引 %d，查表结果 %d", FormatAddr(e.Addr), e.Index, got))
		}
	}

	return errors.Join(errs...)
}
