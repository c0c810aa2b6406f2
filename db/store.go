package db

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"miuruta/model"
)

// ClientStore 核实库 (sistema de registro 的本地权威副本)
// 同步任务和路线规划只依赖这组窄接口，不关心底下是什么存储
type ClientStore struct {
	db *gorm.DB
}

// NewClientStore 创建客户存储
func NewClientStore(gdb *gorm.DB) *ClientStore {
	return &ClientStore{db: gdb}
}

// ListAll 列出全部客户
func (s *ClientStore) ListAll() ([]model.Client, error) {
	var clients []model.Client
	if err := s.db.Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

// FindByID 按 Bsale ID 查找，找不到时返回 (nil, nil)
func (s *ClientStore) FindByID(bsaleID string) (*model.Client, error) {
	var c model.Client
	err := s.db.Where("bsale_id = ?", bsaleID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateDetails 只改写描述性字段
// 核实字段 (maps_link/lat/lng/verified/clean_address/verified_district)
// 和 last_updated 绝不在这里动，人工核实的成果不能被同步冲掉
func (s *ClientStore) UpdateDetails(c model.Client) error {
	return s.db.Model(&model.Client{}).
		Where("bsale_id = ?", c.BsaleID).
		Updates(map[string]any{
			"name":     c.Name,
			"company":  c.Company,
			"phone":    c.Phone,
			"address":  c.Address,
			"district": c.District,
			"city":     c.City,
		}).Error
}

// Append 批量追加新客户，一律未核实状态入库
func (s *ClientStore) Append(clients []model.Client) error {
	if len(clients) == 0 {
		return nil
	}
	now := time.Now()
	for i := range clients {
		clients[i].Verified = false
		clients[i].LastUpdated = &now
	}
	return s.db.CreateInBatches(clients, 100).Error
}

// Verify 人工确认客户位置无误
// cleanAddress / verifiedDistrict 为空串时不覆盖已有值
func (s *ClientStore) Verify(bsaleID, cleanAddress, verifiedDistrict string) error {
	updates := map[string]any{
		"verified":     true,
		"last_updated": time.Now(),
	}
	if cleanAddress != "" {
		updates["clean_address"] = cleanAddress
	}
	if verifiedDistrict != "" {
		updates["verified_district"] = verifiedDistrict
	}
	return s.applyUpdates(bsaleID, updates)
}

// FixAddress 人工更正客户的地图链接并标记为已核实
// coords 非 nil 时同时落库坐标
func (s *ClientStore) FixAddress(bsaleID, mapsLink string, coords *model.Point, cleanAddress, verifiedDistrict string) error {
	updates := map[string]any{
		"maps_link":    mapsLink,
		"verified":     true,
		"last_updated": time.Now(),
	}
	if coords != nil {
		updates["lat"] = coords.Lat
		updates["lng"] = coords.Lng
	}
	if cleanAddress != "" {
		updates["clean_address"] = cleanAddress
	}
	if verifiedDistrict != "" {
		updates["verified_district"] = verifiedDistrict
	}
	return s.applyUpdates(bsaleID, updates)
}

func (s *ClientStore) applyUpdates(bsaleID string, updates map[string]any) error {
	tx := s.db.Model(&model.Client{}).Where("bsale_id = ?", bsaleID).Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RouteStore 路线历史存储
type RouteStore struct {
	db *gorm.DB
}

// NewRouteStore 创建路线历史存储
func NewRouteStore(gdb *gorm.DB) *RouteStore {
	return &RouteStore{db: gdb}
}

// Save 记录一次规划好的路线
func (s *RouteStore) Save(rec *model.RouteRecord) error {
	return s.db.Create(rec).Error
}

// ListRecent 最近的 n 条路线记录
func (s *RouteStore) ListRecent(n int) ([]model.RouteRecord, error) {
	var recs []model.RouteRecord
	if err := s.db.Order("created_at DESC").Limit(n).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
