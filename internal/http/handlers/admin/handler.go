package admin

import "github.com/settlepay/internal/provider"

// Handler 运维管理接口处理器入口
// 说明：该处理器仅用于管理端 API，所有接口均经过操作人 JWT 鉴权。
type Handler struct {
	*provider.Container
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
