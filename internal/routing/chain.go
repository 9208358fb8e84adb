package routing

// linkChain 在槽位found写入新路由后修复chain索引
//
// 向前修复：found之前包含新前缀的条目，如果chain-next为空或者比found远，
// 改为指向found。向后链接：found之后第一条被新前缀包含的条目成为
// found的chain-next，更远的条目由该条目自己的chain-next负责。
//
// found是复用的空闲槽位时，删除时留下的chain-next可能仍指向它；
// 这些条目如果不包含新前缀，就向后重新查找它们的chain-next。
func (t *LinearTable) linkChain(found int) {
	r := t.slots[found].route

	for i := found - 1; i >= 0; i-- {
		s := &t.slots[i]
		if !s.live {
			continue
		}
		if s.route.ContainsRoute(r) {
			if s.next == noNext || s.next > found {
				s.next = found
			}
		} else if s.next == found {
			s.next = t.nextContained(i, found+1)
		}
	}

	t.slots[found].next = t.nextContained(found, found+1)
}

// nextContained 从from开始查找第一条被条目i包含的有效路由
func (t *LinearTable) nextContained(i, from int) int {
	r := t.slots[i].route
	for j := from; j < len(t.slots); j++ {
		if t.slots[j].live && r.ContainsRoute(t.slots[j].route) {
			return j
		}
	}
	return noNext
}
