package forwarding

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"lpm-router/internal/logging"
	"lpm-router/internal/packet"
	"lpm-router/internal/routing"
)

// Stats 转发统计信息
type Stats struct {
	// Received 进入转发前端的数据包总数
	Received uint64

	// Forwarded 成功推送到输出端口的数据包数
	Forwarded uint64

	// NoRoute 没有匹配路由而被丢弃的数据包数
	NoRoute uint64

	// BadPort 路由指向未连接端口而被丢弃的数据包数
	BadPort uint64

	// PortPackets 每个输出端口推送的数据包数
	PortPackets []uint64

	// StartTime 统计开始时间
	StartTime time.Time
}

// Dropped 丢弃总数
func (s Stats) Dropped() uint64 {
	return s.NoRoute + s.BadPort
}

// Forwarder 转发前端
//
// 对每个数据包按目的地址注解查路由表：
// 没有匹配时丢弃数据包并计数；有匹配时，网关非零就把注解改写成网关，
// 然后推送到路由指定的输出端口。每个数据包恰好被推送或丢弃一次。
type Forwarder struct {
	table  routing.TableInterface
	ports  []Port
	logger *logging.Logger

	mu    sync.Mutex
	stats Stats
}

// NewForwarder 创建转发前端
// logger为nil时使用默认日志记录器
func NewForwarder(table routing.TableInterface, ports []Port, logger *logging.Logger) *Forwarder {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Forwarder{
		table:  table,
		ports:  ports,
		logger: logger.WithComponent("forwarding"),
		stats:  newStats(len(ports)),
	}
}

func newStats(ports int) Stats {
	return Stats{
		PortPackets: make([]uint64, ports),
		StartTime:   time.Now(),
	}
}

// Table 返回转发使用的路由表
func (f *Forwarder) Table() routing.TableInterface {
	return f.table
}

// Ports 返回输出端口数量
func (f *Forwarder) Ports() int {
	return len(f.ports)
}

// Forward 转发一个数据包
// 返回选中的下一跳；ok为false表示数据包已被丢弃。
func (f *Forwarder) Forward(p *packet.Packet) (routing.NextHop, bool) {
	dst := p.DstAnno()
	nh, found := f.table.Route(dst)

	f.mu.Lock()
	f.stats.Received++
	switch {
	case !found:
		f.stats.NoRoute++
	case nh.Port < 0 || nh.Port >= len(f.ports):
		f.stats.BadPort++
	default:
		f.stats.Forwarded++
		f.stats.PortPackets[nh.Port]++
	}
	f.mu.Unlock()

	if !found {
		f.logger.Debug("没有到 %s 的路由", routing.FormatAddr(dst))
		p.Kill()
		return routing.NextHop{}, false
	}
	if nh.Port < 0 || nh.Port >= len(f.ports) {
		f.logger.Warn("到 %s 的路由指向未连接的端口 %d", routing.FormatAddr(dst), nh.Port)
		p.Kill()
		return nh, false
	}

	if nh.Gateway != 0 {
		p.SetDstAnno(nh.Gateway)
	}
	f.ports[nh.Port].Push(p)
	return nh, true
}

// ForwardBatch 批量转发，返回成功转发的数量
func (f *Forwarder) ForwardBatch(ps []*packet.Packet) int {
	n := 0
	for _, p := range ps {
		if _, ok := f.Forward(p); ok {
			n++
		}
	}
	return n
}

// GetStats 获取统计信息
func (f *Forwarder) GetStats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.stats
	s.PortPackets = append([]uint64(nil), f.stats.PortPackets...)
	return s
}

// ResetStats 重置统计信息
func (f *Forwarder) ResetStats() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stats = newStats(len(f.ports))
}

// String 统计信息摘要
func (s Stats) String() string {
	return fmt.Sprintf("received=%d forwarded=%d no_route=%d bad_port=%d",
		s.Received, s.Forwarded, s.NoRoute, s.BadPort)
}

func portName(i int) string {
	return "port" + strconv.Itoa(i)
}
