package model

import "time"

// Client 对应一个配送客户 (即一个潜在的配送点)
// 主键是 Bsale 系统的客户 ID，其余字段分为两类:
//   - 描述性字段 (name/company/phone/address/district/city): 跟随远程目录，同步时可被覆盖
//   - 核实字段 (maps_link/lat/lng/verified/clean_address/verified_district):
//     由人工核实流程维护，自动同步绝对不能碰
type Client struct {
	BsaleID          string     `json:"bsale_id" gorm:"primaryKey;column:bsale_id"`
	Name             string     `json:"name" gorm:"index"`
	Company          string     `json:"company"`
	Phone            string     `json:"phone"`
	Address          string     `json:"address"`           // 原始地址文本 (来自远程目录)
	CleanAddress     string     `json:"clean_address"`     // 人工编辑的展示地址 (用于 WhatsApp 消息)
	District         string     `json:"district"`          // 区 (来自远程目录)
	VerifiedDistrict string     `json:"verified_district"` // 从核实过的地图链接得到的区
	City             string     `json:"city"`
	MapsLink         string     `json:"maps_link"`
	Lat              *float64   `json:"lat"` // 坐标未知时为 null
	Lng              *float64   `json:"lng"`
	Verified         bool       `json:"verified"` // true 表示位置已被人工对照真实地图确认
	LastUpdated      *time.Time `json:"last_updated"`
}

// Coords 返回存储的坐标，没有坐标时 ok 为 false
func (c *Client) Coords() (Point, bool) {
	if c.Lat == nil || c.Lng == nil {
		return Point{}, false
	}
	return Point{Lat: *c.Lat, Lng: *c.Lng}, true
}

// DisplayAddress 路线摘要中展示用的地址:
// 优先人工编辑过的 clean_address，否则退回原始地址
func (c *Client) DisplayAddress() string {
	if c.CleanAddress != "" {
		return c.CleanAddress
	}
	return c.Address
}

// DisplayDistrict 展示用的区: 优先核实过的区
func (c *Client) DisplayDistrict() string {
	if c.VerifiedDistrict != "" {
		return c.VerifiedDistrict
	}
	return c.District
}
