package model

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// RouteRecord 一次路线规划的历史记录 (用于事后查询当天跑过的路线)
type RouteRecord struct {
	gorm.Model
	OriginLat      float64        `json:"origin_lat"`
	OriginLng      float64        `json:"origin_lng"`
	DestLat        float64        `json:"dest_lat"`
	DestLng        float64        `json:"dest_lng"`
	StopCount      int            `json:"stop_count"`
	DistanceMeters int            `json:"distance_meters"`
	DurationSecs   int            `json:"duration_secs"`
	SegmentLinks   pq.StringArray `json:"segment_links" gorm:"type:text[]"` // 每段路线的 Google Maps 链接
}
