package shared

import (
	"strings"

	"github.com/settlepay/internal/http/response"

	"github.com/gin-gonic/gin"
)

// OperatorContextKey 鉴权中间件写入的运维操作人
const OperatorContextKey = "operator"

// GetOperator 从上下文读取操作人并统一处理错误响应。
func GetOperator(c *gin.Context) (string, bool) {
	value, exists := c.Get(OperatorContextKey)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return "", false
	}
	operator, ok := value.(string)
	if !ok || strings.TrimSpace(operator) == "" {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return "", false
	}
	return operator, true
}
