package admin

import (
	handlershared "github.com/settlepay/internal/http/handlers/shared"
	"github.com/settlepay/internal/http/response"
	"github.com/settlepay/internal/service"

	"github.com/gin-gonic/gin"
)

var observerErrorRules = []handlershared.MappedError{
	{Target: service.ErrObserverBusy, Code: response.CodeConflict, Key: "error.observer_busy"},
}

// TriggerObserverTick 手动执行一次观察器轮询
func (h *Handler) TriggerObserverTick(c *gin.Context) {
	operator, ok := getOperator(c)
	if !ok {
		return
	}
	result, err := h.ObserverService.Tick(c.Request.Context())
	if err != nil {
		respondWithMappedError(c, err, observerErrorRules, response.CodeInternal, "error.observer_tick_failed")
		return
	}
	requestLog(c).Infow("admin_observer_tick_triggered",
		"operator", operator,
		"checked", result.Checked,
		"updated", result.Updated,
		"settled", result.Settled,
	)
	response.Success(c, result)
}
