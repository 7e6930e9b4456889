package admin

import (
	"github.com/settlepay/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetCurrentOperator 当前操作人及其角色
func (h *Handler) GetCurrentOperator(c *gin.Context) {
	operator, ok := getOperator(c)
	if !ok {
		return
	}
	roles := []string{}
	if h.AuthzService != nil {
		resolved, err := h.AuthzService.GetOperatorRoles(operator)
		if err != nil {
			respondError(c, response.CodeInternal, "error.internal", err)
			return
		}
		roles = resolved
	}
	response.Success(c, gin.H{
		"operator":     operator,
		"roles":        roles,
		"rbac_enabled": h.AuthzService != nil,
	})
}
