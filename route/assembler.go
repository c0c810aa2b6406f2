// Package route 组装当天的配送路线:
// 解析停靠点 → 求最优顺序 → 切成可打开的导航链接段
package route

import (
	"context"
	"errors"
	"fmt"
	"log"

	"miuruta/maplink"
	"miuruta/model"
	"miuruta/optimizer"
	"miuruta/resolver"
	"miuruta/utils"
)

var (
	// ErrBadOrigin 起点链接解析不出坐标
	ErrBadOrigin = errors.New("no se pudo extraer coordenadas del link de origen")
	// ErrBadDestination 终点链接解析不出坐标
	ErrBadDestination = errors.New("no se pudo extraer coordenadas del link de destino")
	// ErrNoStops 没有任何停靠点解析成功，路线无从谈起
	ErrNoStops = errors.New("ningún punto de entrega pudo resolverse")
)

// StopResolver 停靠点解析契约
type StopResolver interface {
	Resolve(ctx context.Context, bsaleID string) (resolver.ResolvedStop, bool)
	ResolveManualLink(raw string) (resolver.ResolvedStop, bool)
}

// RouteOptimizer 路线优化契约 (黑盒)
type RouteOptimizer interface {
	ComputeRoute(ctx context.Context, origin, destination model.Point, stops []model.Point) (*optimizer.Route, error)
}

// ReverseGeocoder 反向地理编码契约，给坐标配可读地址
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, p model.Point) string
}

// History 路线历史存储契约
type History interface {
	Save(rec *model.RouteRecord) error
}

// Request 一次路线规划请求
// 起终点是地图链接 (司机从仓库出发，粘贴仓库和收车点的链接)，
// 停靠点是客户 ID 加上临时地址的手动链接
type Request struct {
	OriginLink      string   `json:"origin_link" binding:"required"`
	DestinationLink string   `json:"destination_link" binding:"required"`
	ClientIDs       []string `json:"client_ids"`
	ManualLinks     []string `json:"manual_links"`
}

// Leg 到达某个停靠点那一程的里程和耗时
type Leg struct {
	DistanceMeters int    `json:"distance_meters"`
	DurationSecs   int    `json:"duration_secs"`
	DistanceText   string `json:"distance_text"`
	DurationText   string `json:"duration_text"`
}

// Stop 规划结果里的一个停靠点，按访问顺序排列
type Stop struct {
	resolver.ResolvedStop
	Order int `json:"order"` // 访问顺序，从 1 开始
	Leg   Leg `json:"leg"`   // 从上一个点到这里的一程
}

// Endpoint 起点或终点
type Endpoint struct {
	Coords  model.Point `json:"coords"`
	Address string      `json:"address"`
}

// Result 组装好的路线
type Result struct {
	Origin         Endpoint          `json:"origin"`
	Destination    Endpoint          `json:"destination"`
	Stops          []Stop            `json:"stops"`
	FinalLeg       Leg               `json:"final_leg"` // 最后一个停靠点 → 终点
	Segments       []maplink.Segment `json:"segments"`
	Dropped        []string          `json:"dropped,omitempty"` // 解析失败被丢弃的客户 ID
	DistanceMeters int               `json:"distance_meters"`
	DurationSecs   int               `json:"duration_secs"`
	DistanceText   string            `json:"distance_text"`
	DurationText   string            `json:"duration_text"`
}

// Assembler 路线组装服务
type Assembler struct {
	stops    StopResolver
	opt      RouteOptimizer
	geocoder ReverseGeocoder
	history  History
	maxStops int
}

// NewAssembler 创建路线组装服务；history 可为 nil (不落历史)
func NewAssembler(stops StopResolver, opt RouteOptimizer, geocoder ReverseGeocoder, history History) *Assembler {
	return &Assembler{
		stops:    stops,
		opt:      opt,
		geocoder: geocoder,
		history:  history,
		maxStops: maplink.DefaultMaxStops,
	}
}

// Assemble 组装一条完整路线
// 解析不了的停靠点被丢弃并记在 Dropped 里；起终点解析失败则整个请求失败
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	origin, ok := a.stops.ResolveManualLink(req.OriginLink)
	if !ok {
		return nil, ErrBadOrigin
	}
	destination, ok := a.stops.ResolveManualLink(req.DestinationLink)
	if !ok {
		return nil, ErrBadDestination
	}

	var (
		resolved []resolver.ResolvedStop
		dropped  []string
	)
	for _, id := range req.ClientIDs {
		if s, ok := a.stops.Resolve(ctx, id); ok {
			resolved = append(resolved, s)
		} else {
			dropped = append(dropped, id)
		}
	}
	for _, raw := range req.ManualLinks {
		if s, ok := a.stops.ResolveManualLink(raw); ok {
			resolved = append(resolved, s)
		} else {
			log.Printf("link manual sin coordenadas, se omite: %s", raw)
		}
	}
	if len(resolved) == 0 {
		return nil, ErrNoStops
	}

	coords := make([]model.Point, len(resolved))
	for i, s := range resolved {
		coords[i] = s.Coords
	}

	plan, err := a.opt.ComputeRoute(ctx, origin.Coords, destination.Coords, coords)
	if err != nil {
		return nil, fmt.Errorf("error optimizando la ruta: %w", err)
	}

	// 按最优顺序重排停靠点
	// 排列不合法 (长度不对、越界、重复) 时退回原顺序，坏响应不能把服务打挂
	order := plan.Order
	if !isPermutation(order, len(resolved)) {
		log.Printf("el optimizador devolvió un orden inválido %v para %d paradas, se mantiene el orden original", order, len(resolved))
		order = make([]int, len(resolved))
		for i := range order {
			order[i] = i
		}
	}

	ordered := make([]Stop, 0, len(resolved))
	orderedCoords := make([]model.Point, 0, len(resolved))
	for pos, idx := range order {
		stop := Stop{ResolvedStop: resolved[idx], Order: pos + 1}
		// legs[pos] 是从上一个点开到这个停靠点的一程
		if pos < len(plan.Legs) {
			leg := plan.Legs[pos]
			stop.Leg = Leg{
				DistanceMeters: leg.DistanceMeters,
				DurationSecs:   leg.DurationSecs,
				DistanceText:   utils.FormatDistance(leg.DistanceMeters),
				DurationText:   utils.FormatDuration(leg.DurationSecs),
			}
		}
		// 手动链接只有坐标，反查个可读地址方便司机确认
		if !stop.IsClient && stop.Address == "" {
			stop.Address = a.geocoder.ReverseGeocode(ctx, stop.Coords)
		}
		ordered = append(ordered, stop)
		orderedCoords = append(orderedCoords, resolved[idx].Coords)
	}

	// 最后一程: 最后一个停靠点 → 终点 (legs 比停靠点多一条)
	var finalLeg Leg
	if n := len(order); n < len(plan.Legs) {
		leg := plan.Legs[n]
		finalLeg = Leg{
			DistanceMeters: leg.DistanceMeters,
			DurationSecs:   leg.DurationSecs,
			DistanceText:   utils.FormatDistance(leg.DistanceMeters),
			DurationText:   utils.FormatDuration(leg.DurationSecs),
		}
	}

	segments := maplink.SplitSegments(origin.Coords, destination.Coords, orderedCoords, a.maxStops)

	result := &Result{
		Origin:         Endpoint{Coords: origin.Coords, Address: a.geocoder.ReverseGeocode(ctx, origin.Coords)},
		Destination:    Endpoint{Coords: destination.Coords, Address: a.geocoder.ReverseGeocode(ctx, destination.Coords)},
		Stops:          ordered,
		FinalLeg:       finalLeg,
		Segments:       segments,
		Dropped:        dropped,
		DistanceMeters: plan.DistanceMeters,
		DurationSecs:   plan.DurationSecs,
		DistanceText:   utils.FormatDistance(plan.DistanceMeters),
		DurationText:   utils.FormatDuration(plan.DurationSecs),
	}

	a.saveRecord(result)
	return result, nil
}

// isPermutation order 是否为 [0,n) 的合法排列
func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}

// saveRecord 路线历史尽力而为落库，失败只记日志，不影响返回给司机的结果
func (a *Assembler) saveRecord(r *Result) {
	if a.history == nil {
		return
	}
	links := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		links = append(links, seg.URL)
	}
	rec := &model.RouteRecord{
		OriginLat:      r.Origin.Coords.Lat,
		OriginLng:      r.Origin.Coords.Lng,
		DestLat:        r.Destination.Coords.Lat,
		DestLng:        r.Destination.Coords.Lng,
		StopCount:      len(r.Stops),
		DistanceMeters: r.DistanceMeters,
		DurationSecs:   r.DurationSecs,
		SegmentLinks:   links,
	}
	if err := a.history.Save(rec); err != nil {
		log.Printf("error guardando el historial de la ruta: %v", err)
	}
}
