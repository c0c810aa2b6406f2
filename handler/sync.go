package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"miuruta/syncer"
)

// SyncHandler 对账任务的触发和进度查询
type SyncHandler struct {
	orch *syncer.Orchestrator
}

// NewSyncHandler 创建对账接口处理器
func NewSyncHandler(orch *syncer.Orchestrator) *SyncHandler {
	return &SyncHandler{orch: orch}
}

// Trigger 触发一次后台对账
// 已有对账在跑时返回 409，前端据此提示 "espera a que termine"
func (h *SyncHandler) Trigger(c *gin.Context) {
	if err := h.orch.Trigger(); err != nil {
		if errors.Is(err, syncer.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{
				"error":  "ya hay una sincronización en curso",
				"status": h.orch.Status(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error iniciando la sincronización"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "sincronización iniciada",
		"status":  h.orch.Status(),
	})
}

// Status 查询对账进度 (前端轮询用)
func (h *SyncHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Status())
}
