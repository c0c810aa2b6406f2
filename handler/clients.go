package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"miuruta/db"
	"miuruta/directory"
	"miuruta/maplink"
	"miuruta/model"
)

// ClientHandler 客户相关接口: 列表、目录刷新、人工核实
type ClientHandler struct {
	store     *db.ClientStore
	cache     *directory.Cache
	extractor *maplink.Extractor
}

// NewClientHandler 创建客户接口处理器
func NewClientHandler(store *db.ClientStore, cache *directory.Cache, extractor *maplink.Extractor) *ClientHandler {
	return &ClientHandler{store: store, cache: cache, extractor: extractor}
}

// List 获取全部客户 (核实库)，顺带带上目录缓存的状态
func (h *ClientHandler) List(c *gin.Context) {
	clients, err := h.store.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error consultando los clientes"})
		return
	}

	snap := h.cache.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(clients),
		"clients": clients,
		"directory": gin.H{
			"loaded":       snap.Loaded,
			"loading":      snap.Loading,
			"progress":     snap.Progress,
			"total":        snap.Total,
			"count":        len(snap.Clients),
			"last_updated": snap.LastUpdated,
		},
	})
}

// RefreshDirectory 后台刷新目录缓存
// 已有刷新在跑时也返回 202，刷新本身是幂等的空操作
func (h *ClientHandler) RefreshDirectory(c *gin.Context) {
	go func() {
		if err := h.cache.Refresh(context.Background()); err != nil {
			log.Printf("error refrescando el directorio: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message":    "actualización del directorio iniciada",
		"refreshing": true,
	})
}

// VerifyRequest 人工核实请求
type VerifyRequest struct {
	CleanAddress     string `json:"clean_address"`
	VerifiedDistrict string `json:"verified_district"`
}

// Verify 人工确认客户位置无误
func (h *ClientHandler) Verify(c *gin.Context) {
	id := c.Param("id")

	// body 可为空 (仅标记核实，不改展示字段)
	var req VerifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "parámetros inválidos"})
			return
		}
	}

	if err := h.store.Verify(id, req.CleanAddress, req.VerifiedDistrict); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "cliente no encontrado"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error actualizando el cliente"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "cliente verificado", "bsale_id": id})
}

// FixAddressRequest 人工更正地图链接请求
type FixAddressRequest struct {
	MapsLink         string `json:"maps_link" binding:"required"`
	CleanAddress     string `json:"clean_address"`
	VerifiedDistrict string `json:"verified_district"`
}

// FixAddress 人工更正客户的地图链接并标记为已核实
// 链接里能解析出坐标时一并落库，解析不出只存链接
func (h *ClientHandler) FixAddress(c *gin.Context) {
	id := c.Param("id")

	var req FixAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "falta el link de maps"})
		return
	}

	var coords *model.Point
	if p, ok := h.extractor.Extract(req.MapsLink); ok {
		coords = &p
	} else {
		log.Printf("link sin coordenadas extraíbles para el cliente %s, se guarda igual", id)
	}

	if err := h.store.FixAddress(id, req.MapsLink, coords, req.CleanAddress, req.VerifiedDistrict); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "cliente no encontrado"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error actualizando el cliente"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "dirección corregida",
		"bsale_id":   id,
		"has_coords": coords != nil,
	})
}
