package cli

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sugawarayuuta/sonnet"

	"lpm-router/internal/config"
	"lpm-router/internal/forwarding"
	"lpm-router/internal/logging"
	"lpm-router/internal/protocols"
	"lpm-router/internal/routing"
)

type testCLI struct {
	*CLI
	out    *bytes.Buffer
	queues []*forwarding.QueuePort
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()

	logger := logging.NewWriterLogger(logging.LogLevelError, io.Discard)
	table := routing.NewSyncTable(routing.NewLinearTable(routing.Options{
		CacheDepth:      2,
		CheckInvariants: true,
		Logger:          logger,
	}))

	queues := forwarding.NewQueuePorts(2, 0)
	ports := make([]forwarding.Port, len(queues))
	for i, q := range queues {
		ports[i] = q
	}
	fwd := forwarding.NewForwarder(table, ports, logger)

	cm := config.NewConfigManager(filepath.Join(t.TempDir(), "config.json"))
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	sm := protocols.NewStaticRouteManager(table, fwd.Ports())
	sm.SetLogger(logger)

	c := NewCLI(fwd, cm, sm)
	buf := &bytes.Buffer{}
	c.SetOutput(buf)
	return &testCLI{CLI: c, out: buf, queues: queues}
}

// run 执行一条命令并返回输出
func (tc *testCLI) run(line string) string {
	tc.out.Reset()
	tc.processCommand(line)
	return tc.out.String()
}

// TestShowRoutesEmpty 测试空路由表的输出
func TestShowRoutesEmpty(t *testing.T) {
	c := newTestCLI(t)
	out := c.run("show routes")
	if out != "Entries: 0\n" {
		t.Errorf("show routes 输出 %q", out)
	}
}

// TestRouteAddAndShow 测试添加并显示路由
func TestRouteAddAndShow(t *testing.T) {
	c := newTestCLI(t)

	out := c.run("route add 10.0.0.0/8 1.1.1.1 0 10.1.0.0/16 - 1")
	if !strings.Contains(out, "已添加 2 条路由") {
		t.Fatalf("route add 输出 %q", out)
	}

	out = c.run("show routes")
	want := "Entries: 2\n10.0.0.0/8 1.1.1.1 0\n10.1.0.0/16 - 1\n"
	if out != want {
		t.Errorf("show routes 输出 %q，期望 %q", out, want)
	}
}

// TestRouteAddRejectsDuplicate 测试重复添加和替换路由
func TestRouteAddRejectsDuplicate(t *testing.T) {
	c := newTestCLI(t)
	c.run("route add 10.0.0.0/8 1.1.1.1 0")

	out := c.run("route add 10.0.0.0/8 2.2.2.2 1")
	if !strings.Contains(out, routing.ErrRouteExists.Error()) {
		t.Errorf("重复添加输出 %q", out)
	}

	out = c.run("route replace 10.0.0.0/8 2.2.2.2 1")
	if !strings.Contains(out, "已添加 1 条路由") {
		t.Errorf("route replace 输出 %q", out)
	}
	if out := c.run("lookup 10.9.9.9"); !strings.Contains(out, "网关 2.2.2.2 端口 1") {
		t.Errorf("替换后查找输出 %q", out)
	}
}

// TestRouteAddBadArgs 测试错误的命令参数
func TestRouteAddBadArgs(t *testing.T) {
	c := newTestCLI(t)

	testCases := []string{
		"route add",
		"route add 10.0.0.0/8 1.1.1.1",
		"route add 10.0.0.0/8 1.1.1.1 x",
		"route add 10.0.0.0/8 1.1.1.1 7",
		"route del",
		"route del 10.0.0.0/8 1.1.1.1",
	}
	for _, line := range testCases {
		if out := c.run(line); out == "" {
			t.Errorf("命令%q没有输出", line)
		}
	}
	if n := c.forwarder.Table().Size(); n != 0 {
		t.Errorf("错误的命令修改了路由表，路由数=%d", n)
	}
}

// TestRouteDel 测试删除路由
func TestRouteDel(t *testing.T) {
	c := newTestCLI(t)
	c.run("route add 10.0.0.0/8 1.1.1.1 0 192.168.0.0/16 - 1")

	// 选择器不匹配
	out := c.run("route del 10.0.0.0/8 1.1.1.2 0")
	if !strings.Contains(out, routing.ErrRouteNotFound.Error()) {
		t.Errorf("选择器不匹配时删除输出 %q", out)
	}

	out = c.run("route del 10.0.0.0/8 1.1.1.1 0")
	if !strings.Contains(out, "已删除路由 10.0.0.0/8 1.1.1.1 0") {
		t.Errorf("route del 输出 %q", out)
	}
	out = c.run("route del 192.168.0.0/16")
	if !strings.Contains(out, "已删除路由") {
		t.Errorf("无选择器删除输出 %q", out)
	}
	if out := c.run("show routes"); out != "Entries: 0\n" {
		t.Errorf("show routes 输出 %q", out)
	}
}

// TestLookup 测试路由查找命令
func TestLookup(t *testing.T) {
	c := newTestCLI(t)
	c.run("route add 10.0.0.0/8 1.1.1.1 0 10.1.0.0/16 - 1")

	testCases := []struct {
		line string
		want string
	}{
		{"lookup 10.1.2.3", "10.1.2.3 -> 网关 - 端口 1"},
		{"lookup 10.2.2.3", "10.2.2.3 -> 网关 1.1.1.1 端口 0"},
		{"lookup 11.0.0.1", routing.ErrNoRoute.Error()},
		{"lookup", "用法: lookup <ip>"},
	}
	for _, tc := range testCases {
		if out := c.run(tc.line); !strings.Contains(out, tc.want) {
			t.Errorf("命令%q输出 %q，应包含 %q", tc.line, out, tc.want)
		}
	}
}

// TestPacketSendAndStats 测试发送数据包和转发统计
func TestPacketSendAndStats(t *testing.T) {
	c := newTestCLI(t)
	c.run("route add 10.0.0.0/8 1.1.1.1 0 10.1.0.0/16 - 1")

	if out := c.run("packet send 10.1.0.9"); !strings.Contains(out, "端口 1") {
		t.Errorf("packet send 输出 %q", out)
	}
	if out := c.run("packet send 10.5.0.9 3"); !strings.Contains(out, "已转发 3/3") {
		t.Errorf("发送3个数据包输出 %q", out)
	}
	if out := c.run("packet send 99.0.0.1 2"); !strings.Contains(out, "2 个数据包被丢弃") {
		t.Errorf("无路由发送输出 %q", out)
	}

	if c.queues[0].Len() != 3 || c.queues[1].Len() != 1 {
		t.Errorf("队列长度 = %d, %d", c.queues[0].Len(), c.queues[1].Len())
	}
	p := c.queues[0].Drain()[0]
	if routing.FormatAddr(p.DstAnno()) != "1.1.1.1" {
		t.Errorf("目的地址标注 = %s", routing.FormatAddr(p.DstAnno()))
	}

	out := c.run("packet stats")
	for _, want := range []string{"接收: 6", "转发: 4", "无路由丢弃: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("packet stats 缺少 %q:\n%s", want, out)
		}
	}

	c.run("packet reset")
	if out := c.run("show stats"); !strings.Contains(out, "接收: 0") {
		t.Errorf("重置后统计信息:\n%s", out)
	}
}

// TestShowCache 测试缓存统计输出
func TestShowCache(t *testing.T) {
	c := newTestCLI(t)
	c.run("route add 10.0.0.0/8 1.1.1.1 0")
	c.run("lookup 10.0.0.1")
	c.run("lookup 10.0.0.1")

	out := c.run("show cache")
	for _, want := range []string{"深度: 2", "\n  命中: 1\n", "\n  未命中: 1\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("show cache 缺少 %q:\n%s", want, out)
		}
	}
}

// TestPacketSendBadPort 测试指向未连接端口的路由按端口错误报告
func TestPacketSendBadPort(t *testing.T) {
	c := newTestCLI(t)

	// 绕过静态路由管理器的端口检查
	addr, mask, _ := routing.ParsePrefix("172.16.0.0/12")
	if _, _, err := c.forwarder.Table().Add(routing.Route{Addr: addr, Mask: mask, Port: 5}, false); err != nil {
		t.Fatal(err)
	}

	out := c.run("packet send 172.16.1.1 2")
	if !strings.Contains(out, "2 个数据包被丢弃: "+routing.ErrInvalidPort.Error()) {
		t.Errorf("端口错误应单独报告，实际输出 %q", out)
	}
	if strings.Contains(out, routing.ErrNoRoute.Error()) {
		t.Errorf("端口错误不应报告为无路由: %q", out)
	}
	if s := c.forwarder.GetStats(); s.BadPort != 2 || s.NoRoute != 0 {
		t.Errorf("统计 = %+v", s)
	}
}

// TestPacketResetClearsCacheStats 测试packet reset同时清零缓存统计
func TestPacketResetClearsCacheStats(t *testing.T) {
	c := newTestCLI(t)
	c.run("route add 10.0.0.0/8 1.1.1.1 0")
	c.run("packet send 10.0.0.1 3")

	if out := c.run("show cache"); !strings.Contains(out, "\n  命中: 2\n") {
		t.Fatalf("show cache 输出 %q", out)
	}

	c.run("packet reset")
	out := c.run("show cache")
	for _, want := range []string{"\n  命中: 0\n", "\n  未命中: 0\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("重置后缓存统计缺少 %q:\n%s", want, out)
		}
	}
	// 缓存内容保留，下一次查找直接命中
	c.run("lookup 10.0.0.1")
	if out := c.run("show cache"); !strings.Contains(out, "\n  命中: 1\n") {
		t.Errorf("重置统计不应清空缓存: %q", out)
	}
}

// TestShowRoutesJSON 测试JSON格式输出路由表
func TestShowRoutesJSON(t *testing.T) {
	c := newTestCLI(t)
	c.run("route add 10.0.0.0/8 1.1.1.1 0 10.1.0.0/16 - 1")

	var routes []config.StaticRouteConfig
	if err := sonnet.Unmarshal([]byte(c.run("show routes json")), &routes); err != nil {
		t.Fatalf("JSON格式错误: %v", err)
	}
	want := []config.StaticRouteConfig{
		{Destination: "10.0.0.0/8", Gateway: "1.1.1.1", Port: 0},
		{Destination: "10.1.0.0/16", Gateway: "", Port: 1},
	}
	if len(routes) != len(want) {
		t.Fatalf("路由列表 = %+v", routes)
	}
	for i := range want {
		if routes[i] != want[i] {
			t.Errorf("第%d条路由 = %+v，期望%+v", i, routes[i], want[i])
		}
	}
}

// TestCheckCommand 测试一致性检查命令
func TestCheckCommand(t *testing.T) {
	c := newTestCLI(t)
	c.run("route add 10.0.0.0/8 1.1.1.1 0 10.1.0.0/16 - 1 0.0.0.0/0 9.9.9.9 1")
	c.run("route del 10.0.0.0/8")

	if out := c.run("check"); out != "路由表一致\n" {
		t.Errorf("check 输出 %q", out)
	}
}

// TestSaveCommand 测试保存配置命令
func TestSaveCommand(t *testing.T) {
	c := newTestCLI(t)
	c.run("route add 10.0.0.0/8 1.1.1.1 0")

	if out := c.run("save"); !strings.Contains(out, "配置已保存") {
		t.Fatalf("save 输出 %q", out)
	}

	cm := config.NewConfigManager(c.configManager.ConfigFile())
	if err := cm.LoadConfig(); err != nil {
		t.Fatal(err)
	}
	routes := cm.GetConfig().StaticRoutes
	if len(routes) != 1 || routes[0].Destination != "10.0.0.0/8" || routes[0].Gateway != "1.1.1.1" {
		t.Errorf("保存的路由 = %+v", routes)
	}
}

// TestUnknownAndExit 测试未知命令和退出
func TestUnknownAndExit(t *testing.T) {
	c := newTestCLI(t)

	if out := c.run("frobnicate"); !strings.Contains(out, "未知命令: frobnicate") {
		t.Errorf("未知命令输出 %q", out)
	}
	if out := c.run("help"); !strings.Contains(out, "show routes") {
		t.Errorf("help 输出 %q", out)
	}

	c.run("quit")
	select {
	case <-c.GetExitChan():
	default:
		t.Error("quit 没有发出退出信号")
	}
}
