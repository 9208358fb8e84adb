package packet

import (
	"sync/atomic"
	"time"
)

// Packet 数据包
// 路由查找只看目的地址注解（DstAnno），不解析报文内容。
// 转发前端拿到数据包后必须恰好做一件事：推送到某个输出端口，或者丢弃（Kill）。
type Packet struct {
	// Source 源地址（主机字节序）
	Source uint32

	// Data 数据包载荷
	Data []byte

	// Timestamp 创建时间
	Timestamp time.Time

	// InPort 入端口，-1 表示本地产生
	InPort int

	dstAnno uint32
	killed  atomic.Bool
}

// New 创建数据包，目的地址注解设置为 dst
func New(src, dst uint32, data []byte) *Packet {
	return &Packet{
		Source:    src,
		Data:      data,
		Timestamp: time.Now(),
		InPort:    -1,
		dstAnno:   dst,
	}
}

// DstAnno 返回目的地址注解
func (p *Packet) DstAnno() uint32 {
	return p.dstAnno
}

// SetDstAnno 改写目的地址注解（转发时改为下一跳网关）
func (p *Packet) SetDstAnno(addr uint32) {
	p.dstAnno = addr
}

// Size 载荷长度
func (p *Packet) Size() int {
	return len(p.Data)
}

// Kill 丢弃数据包。重复调用只生效一次，返回是否是本次调用丢弃的。
func (p *Packet) Kill() bool {
	if !p.killed.CompareAndSwap(false, true) {
		return false
	}
	p.Data = nil
	return true
}

// Killed 数据包是否已被丢弃
func (p *Packet) Killed() bool {
	return p.killed.Load()
}
