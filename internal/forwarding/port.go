package forwarding

import (
	"sync"

	"lpm-router/internal/packet"
)

// Port 输出端口
// Push之后数据包的所有权交给端口
type Port interface {
	Push(p *packet.Packet)
}

// PortFunc 函数适配器
type PortFunc func(p *packet.Packet)

// Push 调用f(p)
func (f PortFunc) Push(p *packet.Packet) {
	f(p)
}

// Discard 丢弃所有数据包的端口
var Discard Port = PortFunc(func(p *packet.Packet) {
	p.Kill()
})

// QueuePort 把数据包暂存在内存队列里的端口
// 供CLI测试转发和单元测试使用
type QueuePort struct {
	mu      sync.Mutex
	name    string
	limit   int
	packets []*packet.Packet
	dropped uint64
}

// NewQueuePort 创建队列端口，limit<=0表示不限长度
func NewQueuePort(name string, limit int) *QueuePort {
	return &QueuePort{
		name:    name,
		limit:   limit,
		packets: make([]*packet.Packet, 0),
	}
}

// Name 端口名称
func (q *QueuePort) Name() string {
	return q.name
}

// Push 入队，队列满时丢弃数据包
func (q *QueuePort) Push(p *packet.Packet) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && len(q.packets) >= q.limit {
		q.dropped++
		p.Kill()
		return
	}
	q.packets = append(q.packets, p)
}

// Len 队列中的数据包数量
func (q *QueuePort) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.packets)
}

// Dropped 因队列满丢弃的数据包数量
func (q *QueuePort) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Drain 取出并清空队列
func (q *QueuePort) Drain() []*packet.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.packets
	q.packets = make([]*packet.Packet, 0)
	return out
}

// NewQueuePorts 创建n个队列端口，命名为port0..port(n-1)
func NewQueuePorts(n, limit int) []*QueuePort {
	ports := make([]*QueuePort, n)
	for i := range ports {
		ports[i] = NewQueuePort(portName(i), limit)
	}
	return ports
}
