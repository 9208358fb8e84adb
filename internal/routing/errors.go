package routing

import "errors"

var (
	// ErrRouteExists 前缀已存在且不允许替换
	ErrRouteExists = errors.New("路由已存在")

	// ErrRouteNotFound 要删除的路由不存在
	ErrRouteNotFound = errors.New("路由不存在")

	// ErrNoRoute 转发时没有匹配的路由
	ErrNoRoute = errors.New("无可用路由")

	// ErrInvalidMask 掩码不是高位连续的1
	ErrInvalidMask = errors.New("无效的掩码")

	// ErrInvalidPort 端口索引为负或超出范围
	ErrInvalidPort = errors.New("无效的端口")
)
