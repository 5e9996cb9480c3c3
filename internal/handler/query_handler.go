// Package handler 实现了 HTTP 接口层。
package handler

import (
	"net/http"

	"pmc-rag-go/internal/model"
	"pmc-rag-go/internal/pipeline"
	"pmc-rag-go/internal/service"
	"pmc-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// QueryHandler 结构体定义了问答查询相关的处理器。
type QueryHandler struct {
	queryService service.QueryService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(queryService service.QueryService) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
	}
}

// Query 是处理结构化问答请求的 Gin 处理函数。
func (h *QueryHandler) Query(c *gin.Context) {
	var req model.QueryRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[QueryHandler] 请求参数解析失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	log.Infof("[QueryHandler] 收到查询请求, question: %s", req.Question)

	result := h.queryService.Answer(c.Request.Context(), req.Question)

	log.Infof("[QueryHandler] 查询完成, question: '%s', 来源 %d 条, 图表 %d 条", req.Question, len(result.Sources), len(result.Figures))
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": result, "message": "success"})
}

// QueryMarkdown 是处理 Markdown 格式问答请求的 Gin 处理函数。
func (h *QueryHandler) QueryMarkdown(c *gin.Context) {
	var req model.MarkdownRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[QueryHandler] 请求参数解析失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	log.Infof("[QueryHandler] 收到 Markdown 查询请求, question: %s", req.Question)

	opts := pipeline.DefaultRenderOptions()
	if req.IncludeSources != nil {
		opts.IncludeSources = *req.IncludeSources
	}
	if req.IncludeFigures != nil {
		opts.IncludeFigures = *req.IncludeFigures
	}
	if req.FigMaxImages != nil {
		opts.FigMaxImages = *req.FigMaxImages
	}
	if req.FigCaptionMaxChars != nil {
		opts.FigCaptionMaxChars = *req.FigCaptionMaxChars
	}

	markdown := h.queryService.AnswerMarkdown(c.Request.Context(), req.Question, opts)

	c.JSON(http.StatusOK, gin.H{"code": 200, "data": gin.H{"markdown": markdown}, "message": "success"})
}
