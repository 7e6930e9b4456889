package admin

import (
	"strings"
	"time"

	handlershared "github.com/settlepay/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getOperator(c *gin.Context) (string, bool) {
	return handlershared.GetOperator(c)
}

func normalizePagination(page, pageSize int) (int, int) {
	return handlershared.NormalizePagination(page, pageSize)
}

func parseTimeNullable(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseCreatedRange(c *gin.Context) (*time.Time, *time.Time, error) {
	createdFrom, err := parseTimeNullable(strings.TrimSpace(c.Query("created_from")))
	if err != nil {
		return nil, nil, err
	}
	createdTo, err := parseTimeNullable(strings.TrimSpace(c.Query("created_to")))
	if err != nil {
		return nil, nil, err
	}
	return createdFrom, createdTo, nil
}
