package forwarding

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"lpm-router/internal/logging"
	"lpm-router/internal/packet"
	"lpm-router/internal/routing"
)

func mustAddr(t testing.TB, s string) uint32 {
	t.Helper()
	a, err := routing.ParseAddr(s)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func mustAdd(t testing.TB, table routing.TableInterface, prefix, gw string, port int) {
	t.Helper()
	addr, mask, err := routing.ParsePrefix(prefix)
	if err != nil {
		t.Fatal(err)
	}
	var g uint32
	if gw != "" {
		g = mustAddr(t, gw)
	}
	if _, _, err := table.Add(routing.Route{Addr: addr, Mask: mask, Gateway: g, Port: port}, false); err != nil {
		t.Fatal(err)
	}
}

// newTestForwarder 10.0.0.0/8 -> 1.1.1.1 端口0，10.1.0.0/16 -> 2.2.2.2 端口1
func newTestForwarder(t *testing.T, nports int) (*Forwarder, []*QueuePort) {
	t.Helper()
	logger := logging.NewWriterLogger(logging.LogLevelDebug, io.Discard)
	table := routing.NewLinearTable(routing.Options{CacheDepth: 2, CheckInvariants: true, Logger: logger})
	mustAdd(t, table, "10.0.0.0/8", "1.1.1.1", 0)
	mustAdd(t, table, "10.1.0.0/16", "2.2.2.2", 1)

	queues := NewQueuePorts(nports, 0)
	ports := make([]Port, len(queues))
	for i, q := range queues {
		ports[i] = q
	}
	return NewForwarder(table, ports, logger), queues
}

// TestForwardLongestMatch 测试按最长前缀转发并改写目的地址标注
func TestForwardLongestMatch(t *testing.T) {
	f, queues := newTestForwarder(t, 2)

	testCases := []struct {
		dst      string
		wantPort int
		wantAnno string
	}{
		{"10.1.5.5", 1, "2.2.2.2"},
		{"10.2.5.5", 0, "1.1.1.1"},
		{"10.1.0.1", 1, "2.2.2.2"},
	}

	for _, tc := range testCases {
		p := packet.New(0, mustAddr(t, tc.dst), []byte("x"))
		nh, ok := f.Forward(p)
		if !ok || nh.Port != tc.wantPort {
			t.Errorf("转发%s = %+v/%v，期望端口%d", tc.dst, nh, ok, tc.wantPort)
			continue
		}
		if routing.FormatAddr(p.DstAnno()) != tc.wantAnno {
			t.Errorf("转发%s后目的地址标注为%s，期望%s", tc.dst, routing.FormatAddr(p.DstAnno()), tc.wantAnno)
		}
	}

	if queues[0].Len() != 1 || queues[1].Len() != 2 {
		t.Errorf("队列长度 = %d/%d", queues[0].Len(), queues[1].Len())
	}

	stats := f.GetStats()
	if stats.Received != 3 || stats.Forwarded != 3 || stats.Dropped() != 0 {
		t.Errorf("统计信息 = %s", stats)
	}
	if stats.PortPackets[0] != 1 || stats.PortPackets[1] != 2 {
		t.Errorf("端口计数 = %v", stats.PortPackets)
	}
}

// TestForwardNoRoute 测试没有路由时丢弃数据包
func TestForwardNoRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger(logging.LogLevelDebug, &buf)
	table := routing.NewLinearTable(routing.Options{CacheDepth: 2, Logger: logger})
	mustAdd(t, table, "10.0.0.0/8", "1.1.1.1", 0)

	q := NewQueuePort("port0", 0)
	f := NewForwarder(table, []Port{q}, logger)

	p := packet.New(0, mustAddr(t, "192.168.1.1"), []byte("x"))
	if _, ok := f.Forward(p); ok {
		t.Fatal("没有路由的数据包不应被转发")
	}
	if !p.Killed() {
		t.Error("没有路由的数据包应该被丢弃")
	}
	if q.Len() != 0 {
		t.Error("没有路由的数据包不应到达任何端口")
	}
	if f.GetStats().NoRoute != 1 {
		t.Errorf("无路由丢弃数 = %d", f.GetStats().NoRoute)
	}
	if !strings.Contains(buf.String(), "192.168.1.1") {
		t.Errorf("丢弃应以debug级别记录: %q", buf.String())
	}
}

// TestForwardKeepsAnnotationWithoutGateway 测试直连路由保留原目的地址标注
func TestForwardKeepsAnnotationWithoutGateway(t *testing.T) {
	table := routing.NewLinearTable(routing.DefaultOptions())
	mustAdd(t, table, "192.168.0.0/16", "", 0)
	q := NewQueuePort("port0", 0)
	f := NewForwarder(table, []Port{q}, logging.NewWriterLogger(logging.LogLevelError, io.Discard))

	dst := mustAddr(t, "192.168.3.4")
	p := packet.New(0, dst, nil)
	if _, ok := f.Forward(p); !ok {
		t.Fatal("转发失败")
	}
	if p.DstAnno() != dst {
		t.Errorf("没有网关时不应改写标注: %s", routing.FormatAddr(p.DstAnno()))
	}
}

// TestForwardBadPort 测试路由指向不存在的端口
func TestForwardBadPort(t *testing.T) {
	// 只连接一个端口，但10.1.0.0/16指向端口1
	f, queues := newTestForwarder(t, 1)

	p := packet.New(0, mustAddr(t, "10.1.2.3"), []byte("x"))
	if _, ok := f.Forward(p); ok {
		t.Fatal("路由到不存在端口的数据包不应被转发")
	}
	if !p.Killed() {
		t.Error("路由到不存在端口的数据包应该被丢弃")
	}
	if queues[0].Len() != 0 {
		t.Error("数据包不应进入任何端口")
	}
	if f.GetStats().BadPort != 1 {
		t.Errorf("端口错误丢弃数 = %d", f.GetStats().BadPort)
	}
}

// TestForwardBatchAndReset 测试批量转发和统计重置
func TestForwardBatchAndReset(t *testing.T) {
	f, _ := newTestForwarder(t, 2)

	batch := []*packet.Packet{
		packet.New(0, mustAddr(t, "10.1.1.1"), nil),
		packet.New(0, mustAddr(t, "11.0.0.1"), nil),
		packet.New(0, mustAddr(t, "10.9.9.9"), nil),
	}
	if n := f.ForwardBatch(batch); n != 2 {
		t.Errorf("批量转发成功%d个，期望2个", n)
	}

	// 每个数据包恰好被推送或丢弃一次
	for i, p := range batch {
		if i == 1 && !p.Killed() {
			t.Errorf("数据包%d应该被丢弃", i)
		}
		if i != 1 && p.Killed() {
			t.Errorf("数据包%d应该被送达", i)
		}
	}

	f.ResetStats()
	s := f.GetStats()
	if s.Received != 0 || len(s.PortPackets) != 2 {
		t.Errorf("重置后统计信息 = %+v", s)
	}
}

// TestGetStatsReturnsCopy 测试统计信息返回副本
func TestGetStatsReturnsCopy(t *testing.T) {
	f, _ := newTestForwarder(t, 2)
	f.Forward(packet.New(0, mustAddr(t, "10.1.1.1"), nil))

	s := f.GetStats()
	s.PortPackets[1] = 100
	if f.GetStats().PortPackets[1] != 1 {
		t.Error("GetStats不应暴露内部计数器")
	}
}

// TestQueuePortLimit 测试端口队列上限
func TestQueuePortLimit(t *testing.T) {
	q := NewQueuePort("port0", 1)
	p1 := packet.New(0, 1, nil)
	p2 := packet.New(0, 2, nil)
	q.Push(p1)
	q.Push(p2)

	if q.Len() != 1 || q.Dropped() != 1 || !p2.Killed() {
		t.Errorf("队列长度=%d 溢出丢弃=%d p2已丢弃=%v", q.Len(), q.Dropped(), p2.Killed())
	}
	out := q.Drain()
	if len(out) != 1 || out[0] != p1 || q.Len() != 0 {
		t.Errorf("取出的数据包 = %v", out)
	}
}

// TestNewQueuePortsNames 测试端口按序号命名
func TestNewQueuePortsNames(t *testing.T) {
	ports := NewQueuePorts(3, 0)
	for i, q := range ports {
		if want := portName(i); q.Name() != want {
			t.Errorf("端口%d名称为%s，期望%s", i, q.Name(), want)
		}
	}
	if ports[2].Name() != "port2" {
		t.Errorf("端口名称格式错误: %s", ports[2].Name())
	}
}

// TestDiscardPort 测试丢弃端口
func TestDiscardPort(t *testing.T) {
	p := packet.New(0, 1, []byte("x"))
	Discard.Push(p)
	if !p.Killed() {
		t.Error("Discard端口应该丢弃数据包")
	}
}

// TestCollector 测试Prometheus指标采集
func TestCollector(t *testing.T) {
	f, _ := newTestForwarder(t, 2)
	f.Forward(packet.New(0, mustAddr(t, "10.1.1.1"), nil))
	f.Forward(packet.New(0, mustAddr(t, "10.1.1.1"), nil))
	f.Forward(packet.New(0, mustAddr(t, "172.16.0.1"), nil))

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(f))

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("采集指标失败: %v", err)
	}

	got := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "/" + l.GetValue()
			}
			if m.GetCounter() != nil {
				got[key] = m.GetCounter().GetValue()
			} else {
				got[key] = m.GetGauge().GetValue()
			}
		}
	}

	expected := map[string]float64{
		"lpm_router_packets_total/forwarded":  2,
		"lpm_router_packets_total/no_route":   1,
		"lpm_router_packets_total/bad_port":   0,
		"lpm_router_port_packets_total/0":     0,
		"lpm_router_port_packets_total/1":     2,
		"lpm_router_routes":                   2,
		"lpm_router_cache_lookups_total/hit":  1,
		"lpm_router_cache_lookups_total/miss": 2,
	}
	for k, v := range expected {
		if got[k] != v {
			t.Errorf("指标%s = %v，期望%v", k, got[k], v)
		}
	}
}
