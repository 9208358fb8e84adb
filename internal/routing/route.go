package routing

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net"
	"strconv"
	"strings"
)

// Route 路由条目
// 一个前缀（地址+掩码）到网关/出端口的映射
// 地址均为主机字节序的32位IPv4地址
type Route struct {
	// Addr 前缀地址，主机位始终为0
	Addr uint32 `json:"addr"`

	// Mask 前缀掩码，必须是高位连续的1
	Mask uint32 `json:"mask"`

	// Gateway 下一跳网关
	// 为0表示不改写目标地址（直连）
	Gateway uint32 `json:"gateway"`

	// Port 出端口索引
	Port int `json:"port"`
}

// NextHop 路由查找结果
type NextHop struct {
	Gateway uint32
	Port    int
}

// Selector 删除路由时的网关/端口选择器
// 为nil时匹配该前缀的任意网关和端口
type Selector struct {
	Gateway uint32
	Port    int
}

// Contains 判断前缀是否包含指定地址
func (r Route) Contains(addr uint32) bool {
	return addr&r.Mask == r.Addr
}

// MaskAsSpecific 判断本条路由的掩码是否至少和mask一样具体
func (r Route) MaskAsSpecific(mask uint32) bool {
	return r.Mask&mask == mask
}

// ContainsRoute 判断前缀是否包含另一条路由的前缀
// 即o的地址落在r内，且o的掩码不比r宽
func (r Route) ContainsRoute(o Route) bool {
	return r.Contains(o.Addr) && o.MaskAsSpecific(r.Mask)
}

// SamePrefix 判断两条路由的前缀是否完全相同
func (r Route) SamePrefix(addr, mask uint32) bool {
	return r.Addr == addr && r.Mask == mask
}

// PrefixLen 返回前缀长度
func (r Route) PrefixLen() int {
	return MaskToPrefixLen(r.Mask)
}

// NextHop 返回路由的下一跳信息
func (r Route) NextHop() NextHop {
	return NextHop{Gateway: r.Gateway, Port: r.Port}
}

// Prefix 返回CIDR格式的前缀
func (r Route) Prefix() string {
	return fmt.Sprintf("%s/%d", FormatAddr(r.Addr), r.PrefixLen())
}

// String 返回 "前缀 网关 端口" 格式，网关为0时显示为 "-"
func (r Route) String() string {
	gw := "-"
	if r.Gateway != 0 {
		gw = FormatAddr(r.Gateway)
	}
	return fmt.Sprintf("%s %s %d", r.Prefix(), gw, r.Port)
}

// ValidMask 检查掩码是否由高位连续的1组成
func ValidMask(mask uint32) bool {
	inv := ^mask
	return inv&(inv+1) == 0
}

// PrefixLenToMask 将前缀长度转换为掩码
func PrefixLenToMask(n int) uint32 {
	if n <= 0 {
		return 0
	}
	if n >= 32 {
		return 0xFFFFFFFF
	}
	return ^uint32(0) << (32 - n)
}

// MaskToPrefixLen 将掩码转换为前缀长度
func MaskToPrefixLen(mask uint32) int {
	return bits.LeadingZeros32(^mask)
}

// AddrFromIP 将net.IP转换为32位地址
func AddrFromIP(ip net.IP) (uint32, bool) {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(ip4), true
}

// AddrToIP 将32位地址转换为net.IP
func AddrToIP(addr uint32) net.IP {
	ip := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(ip, addr)
	return ip
}

// FormatAddr 点分十进制格式化
func FormatAddr(addr uint32) string {
	return AddrToIP(addr).String()
}

// ParseAddr 解析点分十进制IPv4地址
func ParseAddr(s string) (uint32, error) {
	addr, ok := AddrFromIP(net.ParseIP(strings.TrimSpace(s)))
	if !ok {
		return 0, fmt.Errorf("无效的IPv4地址: %q", s)
	}
	return addr, nil
}

// ParsePrefix 解析前缀
// 支持 "10.0.0.0/8"、"10.0.0.0/255.0.0.0" 和 "10.0.0.0 255.0.0.0" 三种写法
// 返回的地址已按掩码清除主机位
func ParsePrefix(s string) (addr, mask uint32, err error) {
	s = strings.TrimSpace(s)

	var addrPart, maskPart string
	if i := strings.IndexByte(s, '/'); i >= 0 {
		addrPart, maskPart = s[:i], s[i+1:]
	} else if fields := strings.Fields(s); len(fields) == 2 {
		addrPart, maskPart = fields[0], fields[1]
	} else {
		addrPart, maskPart = s, "32"
	}

	addr, err = ParseAddr(addrPart)
	if err != nil {
		return 0, 0, err
	}

	if n, convErr := strconv.Atoi(maskPart); convErr == nil {
		if n < 0 || n > 32 {
			return 0, 0, fmt.Errorf("无效的前缀长度: %d", n)
		}
		mask = PrefixLenToMask(n)
	} else {
		mask, err = ParseAddr(maskPart)
		if err != nil {
			return 0, 0, fmt.Errorf("无效的掩码 %q: %w", maskPart, err)
		}
		if !ValidMask(mask) {
			return 0, 0, fmt.Errorf("%w: %s", ErrInvalidMask, maskPart)
		}
	}

	return addr & mask, mask, nil
}
