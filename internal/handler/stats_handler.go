package handler

import (
	"net/http"

	"pmc-rag-go/internal/service"

	"github.com/gin-gonic/gin"
)

// StatsHandler 结构体定义了使用统计相关的处理器。
type StatsHandler struct {
	queryService service.QueryService
}

// NewStatsHandler 创建一个新的 StatsHandler 实例。
func NewStatsHandler(queryService service.QueryService) *StatsHandler {
	return &StatsHandler{
		queryService: queryService,
	}
}

// Stats 返回进程内的查询使用统计。
func (h *StatsHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": h.queryService.Stats(), "message": "success"})
}
