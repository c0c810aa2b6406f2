// Package resolver 把逻辑停靠点 (客户 ID 或手动粘贴的链接) 解析成坐标
package resolver

import (
	"context"
	"log"

	"miuruta/model"
)

// Store 核实库的查找契约
type Store interface {
	FindByID(bsaleID string) (*model.Client, error)
}

// DirectoryLookup 目录缓存的查找契约 (兜底数据源)
type DirectoryLookup interface {
	Get(bsaleID string) (model.Client, bool)
}

// Geocoder 地理编码契约 (尽力而为)
type Geocoder interface {
	Geocode(ctx context.Context, address, district, city string) (model.Point, bool)
}

// LinkExtractor 地图链接解析契约
type LinkExtractor interface {
	Extract(raw string) (model.Point, bool)
}

// 坐标的来源，记在结果里方便排查 "这单为什么送错了"
const (
	SourceVerifiedLink = "verified_link" // 人工核实过的地图链接
	SourceStoredCoords = "stored_coords" // 库里存的坐标
	SourceGeocoded     = "geocoded"      // 核实库地址的地理编码
	SourceDirectory    = "directory"     // 目录缓存地址的地理编码
	SourceManualLink   = "manual_link"   // 手动粘贴的链接
)

// ResolvedStop 解析成功的停靠点，坐标之外带上展示用的元数据
type ResolvedStop struct {
	BsaleID  string      `json:"bsale_id,omitempty"`
	Name     string      `json:"name,omitempty"`
	Address  string      `json:"address,omitempty"`
	Phone    string      `json:"phone,omitempty"`
	District string      `json:"district,omitempty"`
	Coords   model.Point `json:"coords"`
	IsClient bool        `json:"is_client"`
	Source   string      `json:"source"`
}

// Resolver 按优先级链解析停靠点:
// 核实过的地图链接 → 库里的坐标 → 库里地址的地理编码 → 目录缓存地址的地理编码
// 第一个命中的赢；全部落空时该停靠点被静默丢弃 (降级而非报错)
type Resolver struct {
	store    Store
	cache    DirectoryLookup
	geocoder Geocoder
	links    LinkExtractor
}

// NewResolver 创建解析器
func NewResolver(store Store, cache DirectoryLookup, geocoder Geocoder, links LinkExtractor) *Resolver {
	return &Resolver{store: store, cache: cache, geocoder: geocoder, links: links}
}

// Resolve 按 Bsale ID 解析一个停靠点
func (r *Resolver) Resolve(ctx context.Context, bsaleID string) (ResolvedStop, bool) {
	var rec *model.Client
	if c, err := r.store.FindByID(bsaleID); err != nil {
		log.Printf("error consultando el cliente %s, se sigue con el directorio: %v", bsaleID, err)
	} else {
		rec = c
	}

	var dirRec *model.Client
	if c, ok := r.cache.Get(bsaleID); ok {
		dirRec = &c
	}

	// 展示元数据优先取核实库的记录 (clean_address 等只存在那里)
	meta := rec
	if meta == nil {
		meta = dirRec
	}
	if meta == nil {
		return ResolvedStop{}, false
	}

	// 解析链: 按优先级逐个尝试，第一个出坐标的胜出
	type step struct {
		source string
		try    func() (model.Point, bool)
	}
	steps := []step{
		{SourceVerifiedLink, func() (model.Point, bool) {
			if rec == nil || !rec.Verified || rec.MapsLink == "" {
				return model.Point{}, false
			}
			return r.links.Extract(rec.MapsLink)
		}},
		{SourceStoredCoords, func() (model.Point, bool) {
			if rec == nil {
				return model.Point{}, false
			}
			return rec.Coords()
		}},
		{SourceGeocoded, func() (model.Point, bool) {
			if rec == nil || rec.Address == "" {
				return model.Point{}, false
			}
			return r.geocoder.Geocode(ctx, rec.Address, rec.District, rec.City)
		}},
		{SourceDirectory, func() (model.Point, bool) {
			if dirRec == nil || dirRec.Address == "" {
				return model.Point{}, false
			}
			return r.geocoder.Geocode(ctx, dirRec.Address, dirRec.District, dirRec.City)
		}},
	}

	for _, s := range steps {
		if p, ok := s.try(); ok {
			return ResolvedStop{
				BsaleID:  meta.BsaleID,
				Name:     meta.Name,
				Address:  meta.DisplayAddress(),
				Phone:    meta.Phone,
				District: meta.DisplayDistrict(),
				Coords:   p,
				IsClient: true,
				Source:   s.source,
			}, true
		}
	}

	log.Printf("cliente %s sin coordenadas por ninguna vía, se omite de la ruta", bsaleID)
	return ResolvedStop{}, false
}

// ResolveManualLink 解析手动粘贴的地图链接
func (r *Resolver) ResolveManualLink(raw string) (ResolvedStop, bool) {
	p, ok := r.links.Extract(raw)
	if !ok {
		return ResolvedStop{}, false
	}
	return ResolvedStop{Coords: p, IsClient: false, Source: SourceManualLink}, true
}
