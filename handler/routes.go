package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"miuruta/model"
	"miuruta/route"
)

// RouteLister 路线历史查询契约
type RouteLister interface {
	ListRecent(n int) ([]model.RouteRecord, error)
}

// RouteHandler 路线规划和历史查询接口
type RouteHandler struct {
	assembler *route.Assembler
	history   RouteLister
}

// NewRouteHandler 创建路线规划处理器
func NewRouteHandler(assembler *route.Assembler, history RouteLister) *RouteHandler {
	return &RouteHandler{assembler: assembler, history: history}
}

// Optimize 规划当天的配送路线
func (h *RouteHandler) Optimize(c *gin.Context) {
	var req route.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "faltan los links de origen y destino"})
		return
	}

	result, err := h.assembler.Assemble(c.Request.Context(), req)
	switch {
	case errors.Is(err, route.ErrBadOrigin), errors.Is(err, route.ErrBadDestination):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, route.ErrNoStops):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case err != nil:
		// 上游优化器的问题 (配额、网络、无路线)，对前端是网关错误
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, result)
	}
}

// Recent 最近规划过的路线 (事后查当天跑了哪些路线)
func (h *RouteHandler) Recent(c *gin.Context) {
	n := 20
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit inválido"})
			return
		}
		n = parsed
	}

	recs, err := h.history.ListRecent(n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error consultando el historial"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "routes": recs})
}
