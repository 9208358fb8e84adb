package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lpm-router/internal/routing"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cm := NewConfigManager(path)

	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if !strings.Contains(string(data), `"cache_depth": 2`) {
		t.Errorf("unexpected default config:\n%s", data)
	}

	cfg := cm.GetConfig()
	if cfg.Ports != 4 || cfg.TableType != "linear" || cfg.CacheDepth != routing.DefaultCacheDepth {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cm := NewConfigManager(path)
	cm.SetHostname("edge-1")
	cm.AddStaticRoute(StaticRouteConfig{Destination: "10.0.0.0/8", Gateway: "1.1.1.1", Port: 0})
	cm.AddStaticRoute(StaticRouteConfig{Destination: "10.1.0.0/16", Gateway: "2.2.2.2", Port: 1})
	cm.SetLogConfig("debug", "")
	if err := cm.SaveConfig(); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	reloaded := NewConfigManager(path)
	if err := reloaded.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cfg := reloaded.GetConfig()
	if cfg.Hostname != "edge-1" || cfg.LogLevel != "debug" {
		t.Errorf("reloaded = %+v", cfg)
	}
	if len(cfg.StaticRoutes) != 2 || cfg.StaticRoutes[1].Gateway != "2.2.2.2" {
		t.Errorf("static routes = %+v", cfg.StaticRoutes)
	}
}

func TestLoadConfigKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"hostname":"r1","ports":8}`), 0644); err != nil {
		t.Fatal(err)
	}
	cm := NewConfigManager(path)
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cfg := cm.GetConfig()
	if cfg.Ports != 8 || cfg.CacheDepth != routing.DefaultCacheDepth || cfg.TableType != "linear" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"bad json", `{"hostname":`},
		{"zero ports", `{"ports":0}`},
		{"cache too deep", `{"cache_depth":9}`},
		{"unknown table", `{"table_type":"trie"}`},
		{"route port out of range", `{"ports":2,"static_routes":[{"destination":"10.0.0.0/8","port":2}]}`},
		{"bad prefix", `{"static_routes":[{"destination":"10.0.0.0/40","port":0}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tc.body), 0644); err != nil {
				t.Fatal(err)
			}
			if err := NewConfigManager(path).LoadConfig(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidatePortError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StaticRoutes = []StaticRouteConfig{{Destination: "10.0.0.0/8", Port: 7}}
	if err := cfg.Validate(); !errors.Is(err, routing.ErrInvalidPort) {
		t.Errorf("expected ErrInvalidPort, got %v", err)
	}
}

func TestStaticRouteMutators(t *testing.T) {
	cm := NewConfigManager(filepath.Join(t.TempDir(), "config.json"))
	cm.AddStaticRoute(StaticRouteConfig{Destination: "10.0.0.0/8", Gateway: "1.1.1.1", Port: 0})
	// 相同前缀（不同写法）替换旧配置
	cm.AddStaticRoute(StaticRouteConfig{Destination: "10.9.9.9/8", Gateway: "3.3.3.3", Port: 1})

	cfg := cm.GetConfig()
	if len(cfg.StaticRoutes) != 1 || cfg.StaticRoutes[0].Gateway != "3.3.3.3" {
		t.Fatalf("static routes = %+v", cfg.StaticRoutes)
	}

	// GetConfig 返回副本
	cfg.StaticRoutes[0].Port = 3
	if cm.GetConfig().StaticRoutes[0].Port != 1 {
		t.Error("GetConfig must return a copy")
	}

	if err := cm.RemoveStaticRoute("10.0.0.0/8"); err != nil {
		t.Fatalf("RemoveStaticRoute failed: %v", err)
	}
	if err := cm.RemoveStaticRoute("10.0.0.0/8"); err == nil {
		t.Error("removing a missing route should fail")
	}
}
