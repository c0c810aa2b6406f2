package model

import "fmt"

// Point 代表一个经纬度点 (WGS84)
type Point struct {
	Lat float64 `json:"lat"` // 纬度
	Lng float64 `json:"lng"` // 经度
}

// String 输出 "lat,lng" 形式，精度 6 位小数 (约 0.1 米)，
// 用于拼接 Google Maps 链接和地理编码缓存键
func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}
