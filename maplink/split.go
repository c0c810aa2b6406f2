package maplink

import (
	"strings"

	"miuruta/model"
)

// Google Maps 导航链接最多支持的点数 (含起点和终点)
const MaxPointsPerLink = 10

// DefaultMaxStops 每段路线默认最多携带的中途停靠点数
// 预留起点和终点两个位置
const DefaultMaxStops = MaxPointsPerLink - 2

const dirBaseURL = "https://www.google.com/maps/dir/"

// Segment 一段可直接在 Google Maps 中打开的路线
// 多段路线首尾相接: 第 i 段的终点即第 i+1 段的起点
type Segment struct {
	Start      model.Point   `json:"start"`
	End        model.Point   `json:"end"`
	Waypoints  []model.Point `json:"waypoints"` // 中途停靠点 (不含起终点)
	Part       int           `json:"part"`      // 段序号，从 1 开始
	TotalParts int           `json:"total_parts"`
	URL        string        `json:"url"`
}

// DirURL 生成 Google Maps 导航链接: 起点 / 停靠点... / 终点
func DirURL(origin, destination model.Point, waypoints []model.Point) string {
	parts := make([]string, 0, len(waypoints)+2)
	parts = append(parts, origin.String())
	for _, wp := range waypoints {
		parts = append(parts, wp.String())
	}
	parts = append(parts, destination.String())
	return dirBaseURL + strings.Join(parts, "/")
}

// SplitSegments 将排好序的停靠点列表切成若干段首尾相接的路线
// 每段最多 maxPerSegment 个停靠点 (导航链接的点数上限决定的)
//
// 切分规则: 停靠点不超过上限时只产生一段 (起点→终点)；
// 否则按 maxPerSegment 分块，非最后一块以自己的最后一个停靠点收尾
// (该点同时作为下一块的起点，并从该块的停靠点列表中去掉，避免重复)，
// 最后一块以真正的终点收尾
func SplitSegments(origin, destination model.Point, stops []model.Point, maxPerSegment int) []Segment {
	if maxPerSegment < 1 {
		maxPerSegment = DefaultMaxStops
	}

	n := len(stops)
	if n <= maxPerSegment {
		return []Segment{{
			Start:      origin,
			End:        destination,
			Waypoints:  stops,
			Part:       1,
			TotalParts: 1,
			URL:        DirURL(origin, destination, stops),
		}}
	}

	total := (n + maxPerSegment - 1) / maxPerSegment
	segments := make([]Segment, 0, total)

	start := origin
	for i := 0; i < total; i++ {
		lo := i * maxPerSegment
		hi := lo + maxPerSegment
		if hi > n {
			hi = n
		}
		chunk := stops[lo:hi]

		var seg Segment
		if i == total-1 {
			seg = Segment{Start: start, End: destination, Waypoints: chunk}
		} else {
			boundary := chunk[len(chunk)-1]
			seg = Segment{Start: start, End: boundary, Waypoints: chunk[:len(chunk)-1]}
			start = boundary
		}
		seg.Part = i + 1
		seg.TotalParts = total
		seg.URL = DirURL(seg.Start, seg.End, seg.Waypoints)
		segments = append(segments, seg)
	}

	return segments
}
