package protocols

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lpm-router/internal/config"
	"lpm-router/internal/dao"
	"lpm-router/internal/logging"
	"lpm-router/internal/routing"
)

// storeTimeout 单次持久化操作的超时时间
const storeTimeout = 5 * time.Second

// ErrNoStore 没有配置路由存储
var ErrNoStore = errors.New("未启用路由持久化")

// StaticRouteManager 静态路由管理器
// 把文本形式的路由解析后写入路由表，端口号必须落在 [0, ports) 内。
// 设置了存储时，运行期的增删会同步写入数据库。
type StaticRouteManager struct {
	routingTable routing.TableInterface
	ports        int
	store        dao.RouteDAO
	logger       *logging.Logger
}

// NewStaticRouteManager 创建静态路由管理器
func NewStaticRouteManager(routingTable routing.TableInterface, ports int) *StaticRouteManager {
	return &StaticRouteManager{
		routingTable: routingTable,
		ports:        ports,
		logger:       logging.GetLogger().WithComponent("static"),
	}
}

// SetStore 设置路由存储，nil表示不持久化
func (srm *StaticRouteManager) SetStore(store dao.RouteDAO) {
	srm.store = store
}

// SetLogger 设置日志记录器
func (srm *StaticRouteManager) SetLogger(logger *logging.Logger) {
	srm.logger = logger.WithComponent("static")
}

// HasStore 是否启用了持久化
func (srm *StaticRouteManager) HasStore() bool {
	return srm.store != nil
}

// ParseRoute 解析 "目的前缀 网关 端口" 形式的路由
// 网关为空或"-"表示直连
func (srm *StaticRouteManager) ParseRoute(destination, gateway string, port int) (routing.Route, error) {
	addr, mask, err := routing.ParsePrefix(destination)
	if err != nil {
		return routing.Route{}, fmt.Errorf("无效的目标网络 %q: %w", destination, err)
	}

	gw, err := parseGateway(gateway)
	if err != nil {
		return routing.Route{}, err
	}

	if port < 0 || port >= srm.ports {
		return routing.Route{}, fmt.Errorf("%w: %d 不在 [0, %d) 内", routing.ErrInvalidPort, port, srm.ports)
	}

	return routing.Route{Addr: addr, Mask: mask, Gateway: gw, Port: port}, nil
}

func parseGateway(gateway string) (uint32, error) {
	gateway = strings.TrimSpace(gateway)
	if gateway == "" || gateway == "-" {
		return 0, nil
	}
	gw, err := routing.ParseAddr(gateway)
	if err != nil {
		return 0, fmt.Errorf("无效的网关地址: %s", gateway)
	}
	return gw, nil
}

// AddStaticRoute 添加静态路由
// replace为false时前缀已存在返回 routing.ErrRouteExists
func (srm *StaticRouteManager) AddStaticRoute(destination, gateway string, port int, replace bool) (routing.Route, bool, error) {
	route, err := srm.ParseRoute(destination, gateway, port)
	if err != nil {
		return routing.Route{}, false, err
	}
	return srm.add(route, replace, true)
}

func (srm *StaticRouteManager) add(route routing.Route, replace, persist bool) (routing.Route, bool, error) {
	old, replaced, err := srm.routingTable.Add(route, replace)
	if err != nil {
		return routing.Route{}, false, fmt.Errorf("添加路由 %s 失败: %w", route.Prefix(), err)
	}

	if replaced {
		srm.logger.Info("替换路由 %s -> %s", old, route)
	} else {
		srm.logger.Info("添加路由 %s", route)
	}

	if persist && srm.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := srm.store.Save(ctx, route); err != nil {
			return old, replaced, fmt.Errorf("路由已生效但持久化失败: %w", err)
		}
	}

	return old, replaced, nil
}

// AddStaticRoutes 按顺序添加一批路由，遇到第一个失败即停止
// 返回成功添加的条数
func (srm *StaticRouteManager) AddStaticRoutes(routes []config.StaticRouteConfig, replace bool) (int, error) {
	for i, rc := range routes {
		if _, _, err := srm.AddStaticRoute(rc.Destination, rc.Gateway, rc.Port, replace); err != nil {
			return i, err
		}
	}
	return len(routes), nil
}

// RemoveStaticRoute 删除静态路由
// sel不为nil时，只有网关和端口都匹配才删除
func (srm *StaticRouteManager) RemoveStaticRoute(destination string, sel *routing.Selector) (routing.Route, error) {
	addr, mask, err := routing.ParsePrefix(destination)
	if err != nil {
		return routing.Route{}, fmt.Errorf("无效的目标网络 %q: %w", destination, err)
	}

	old, err := srm.routingTable.Remove(addr, mask, sel)
	if err != nil {
		return routing.Route{}, err
	}
	srm.logger.Info("删除路由 %s", old)

	if srm.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := srm.store.Delete(ctx, addr, mask); err != nil && !errors.Is(err, routing.ErrRouteNotFound) {
			return old, fmt.Errorf("路由已删除但持久化失败: %w", err)
		}
	}

	return old, nil
}

// GetStaticRoutes 获取所有路由（表顺序）
func (srm *StaticRouteManager) GetStaticRoutes() []routing.Route {
	return srm.routingTable.Dump()
}

// LoadFromConfig 加载配置文件中的静态路由
// 配置文件本身就是持久化来源，所以不写入数据库
func (srm *StaticRouteManager) LoadFromConfig(routes []config.StaticRouteConfig) (int, error) {
	for i, rc := range routes {
		route, err := srm.ParseRoute(rc.Destination, rc.Gateway, rc.Port)
		if err != nil {
			return i, fmt.Errorf("静态路由配置 %d: %w", i, err)
		}
		if _, _, err := srm.add(route, true, false); err != nil {
			return i, fmt.Errorf("静态路由配置 %d: %w", i, err)
		}
	}
	return len(routes), nil
}

// LoadFromStore 从数据库恢复路由，返回恢复的条数
func (srm *StaticRouteManager) LoadFromStore(ctx context.Context) (int, error) {
	if srm.store == nil {
		return 0, ErrNoStore
	}

	routes, err := srm.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	for i, r := range routes {
		if r.Port < 0 || r.Port >= srm.ports {
			return i, fmt.Errorf("恢复路由 %s 失败: %w: %d", r.Prefix(), routing.ErrInvalidPort, r.Port)
		}
		if _, _, err := srm.add(r, true, false); err != nil {
			return i, err
		}
	}

	srm.logger.Info("从数据库恢复了 %d 条路由", len(routes))
	return len(routes), nil
}

// SaveToStore 把路由表当前内容整体写入数据库
func (srm *StaticRouteManager) SaveToStore(ctx context.Context) (int, error) {
	if srm.store == nil {
		return 0, ErrNoStore
	}

	routes := srm.routingTable.Dump()
	if err := srm.store.ReplaceAll(ctx, routes); err != nil {
		return 0, err
	}
	return len(routes), nil
}
