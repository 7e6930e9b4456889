package public

import "github.com/settlepay/internal/provider"

// Handler 无需鉴权的公共接口处理器
type Handler struct {
	*provider.Container
}

// New 创建公共处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
