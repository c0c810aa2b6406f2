package route

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miuruta/model"
	"miuruta/optimizer"
	"miuruta/resolver"
)

// fakeResolver 坐标直接编码在链接/ID 里
type fakeResolver struct {
	clients map[string]resolver.ResolvedStop
	links   map[string]model.Point
}

func (f *fakeResolver) Resolve(_ context.Context, bsaleID string) (resolver.ResolvedStop, bool) {
	s, ok := f.clients[bsaleID]
	return s, ok
}

func (f *fakeResolver) ResolveManualLink(raw string) (resolver.ResolvedStop, bool) {
	p, ok := f.links[raw]
	if !ok {
		return resolver.ResolvedStop{}, false
	}
	return resolver.ResolvedStop{Coords: p, Source: resolver.SourceManualLink}, true
}

// fakeOptimizer 返回预设结果，并记录收到的请求
type fakeOptimizer struct {
	route    *optimizer.Route
	err      error
	gotStops []model.Point
}

func (f *fakeOptimizer) ComputeRoute(_ context.Context, _, _ model.Point, stops []model.Point) (*optimizer.Route, error) {
	f.gotStops = stops
	if f.err != nil {
		return nil, f.err
	}
	return f.route, nil
}

type fakeReverseGeocoder struct{}

func (fakeReverseGeocoder) ReverseGeocode(_ context.Context, p model.Point) string {
	return fmt.Sprintf("Dirección %.2f", p.Lat)
}

type fakeHistory struct {
	saved []*model.RouteRecord
	err   error
}

func (f *fakeHistory) Save(rec *model.RouteRecord) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rec)
	return nil
}

func testResolver() *fakeResolver {
	return &fakeResolver{
		clients: map[string]resolver.ResolvedStop{
			"1": {BsaleID: "1", Name: "Bodega Rosa", Coords: model.Point{Lat: -12.01, Lng: -77.01}, IsClient: true},
			"2": {BsaleID: "2", Name: "Farmacia Luz", Coords: model.Point{Lat: -12.02, Lng: -77.02}, IsClient: true},
		},
		links: map[string]model.Point{
			"https://maps.google.com/?q=-12.0,-77.0":   {Lat: -12.0, Lng: -77.0},
			"https://maps.google.com/?q=-12.1,-77.1":   {Lat: -12.1, Lng: -77.1},
			"https://maps.google.com/?q=-12.05,-77.05": {Lat: -12.05, Lng: -77.05},
		},
	}
}

func TestAssemble_ReordersAndAnnotates(t *testing.T) {
	opt := &fakeOptimizer{route: &optimizer.Route{
		Order:          []int{2, 0, 1}, // 最优顺序: 手动点 → 客户1 → 客户2
		DistanceMeters: 15300,
		DurationSecs:   5000,
		Legs: []optimizer.Leg{
			{DistanceMeters: 3000, DurationSecs: 900},
			{DistanceMeters: 4000, DurationSecs: 1100},
			{DistanceMeters: 5000, DurationSecs: 1500},
			{DistanceMeters: 3300, DurationSecs: 1500},
		},
	}}
	history := &fakeHistory{}
	a := NewAssembler(testResolver(), opt, fakeReverseGeocoder{}, history)

	res, err := a.Assemble(context.Background(), Request{
		OriginLink:      "https://maps.google.com/?q=-12.0,-77.0",
		DestinationLink: "https://maps.google.com/?q=-12.1,-77.1",
		ClientIDs:       []string{"1", "2"},
		ManualLinks:     []string{"https://maps.google.com/?q=-12.05,-77.05"},
	})
	require.NoError(t, err)

	// 停靠点按最优顺序排列，Order 从 1 开始
	require.Len(t, res.Stops, 3)
	assert.False(t, res.Stops[0].IsClient)
	assert.Equal(t, "Bodega Rosa", res.Stops[1].Name)
	assert.Equal(t, "Farmacia Luz", res.Stops[2].Name)
	for i, s := range res.Stops {
		assert.Equal(t, i+1, s.Order)
	}

	// 每个停靠点带上到达它那一程的信息
	assert.Equal(t, 3000, res.Stops[0].Leg.DistanceMeters)
	assert.Equal(t, "3.0 km", res.Stops[0].Leg.DistanceText)
	assert.Equal(t, "15min", res.Stops[0].Leg.DurationText)

	// 手动停靠点要有反查出来的地址
	assert.Equal(t, "Dirección -12.05", res.Stops[0].Address)

	// 最后一程: 最后一个停靠点 → 终点
	assert.Equal(t, 3300, res.FinalLeg.DistanceMeters)
	assert.Equal(t, "3.3 km", res.FinalLeg.DistanceText)
	assert.Equal(t, "25min", res.FinalLeg.DurationText)

	// 总计和导航段
	assert.Equal(t, "15.3 km", res.DistanceText)
	assert.Equal(t, "1h 23min", res.DurationText)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, model.Point{Lat: -12.0, Lng: -77.0}, res.Segments[0].Start)
	assert.Equal(t, model.Point{Lat: -12.1, Lng: -77.1}, res.Segments[0].End)
	assert.Equal(t, model.Point{Lat: -12.05, Lng: -77.05}, res.Segments[0].Waypoints[0])

	// 历史落库
	require.Len(t, history.saved, 1)
	assert.Equal(t, 3, history.saved[0].StopCount)
	assert.Equal(t, 15300, history.saved[0].DistanceMeters)
	require.Len(t, history.saved[0].SegmentLinks, 1)
	assert.Equal(t, res.Segments[0].URL, history.saved[0].SegmentLinks[0])
}

func TestAssemble_BadEndpoints(t *testing.T) {
	a := NewAssembler(testResolver(), &fakeOptimizer{}, fakeReverseGeocoder{}, nil)

	_, err := a.Assemble(context.Background(), Request{
		OriginLink:      "basura",
		DestinationLink: "https://maps.google.com/?q=-12.1,-77.1",
		ClientIDs:       []string{"1"},
	})
	assert.ErrorIs(t, err, ErrBadOrigin)

	_, err = a.Assemble(context.Background(), Request{
		OriginLink:      "https://maps.google.com/?q=-12.0,-77.0",
		DestinationLink: "basura",
		ClientIDs:       []string{"1"},
	})
	assert.ErrorIs(t, err, ErrBadDestination)
}

// 解析不了的客户被丢弃并上报；全部落空时才算失败
func TestAssemble_DroppedStops(t *testing.T) {
	opt := &fakeOptimizer{route: &optimizer.Route{Order: []int{0}}}
	a := NewAssembler(testResolver(), opt, fakeReverseGeocoder{}, nil)

	res, err := a.Assemble(context.Background(), Request{
		OriginLink:      "https://maps.google.com/?q=-12.0,-77.0",
		DestinationLink: "https://maps.google.com/?q=-12.1,-77.1",
		ClientIDs:       []string{"1", "no-existe", "tampoco"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"no-existe", "tampoco"}, res.Dropped)
	assert.Len(t, res.Stops, 1)
	assert.Len(t, opt.gotStops, 1, "los no resueltos no deben llegar al optimizador")

	_, err = a.Assemble(context.Background(), Request{
		OriginLink:      "https://maps.google.com/?q=-12.0,-77.0",
		DestinationLink: "https://maps.google.com/?q=-12.1,-77.1",
		ClientIDs:       []string{"no-existe"},
	})
	assert.ErrorIs(t, err, ErrNoStops)
}

// 优化器给回坏排列 (越界/重复) 时按原顺序继续，不能 panic
func TestAssemble_InvalidOrderKeepsOriginal(t *testing.T) {
	for _, order := range [][]int{{5, 6}, {0, 0}, {-1, 1}} {
		opt := &fakeOptimizer{route: &optimizer.Route{Order: order}}
		a := NewAssembler(testResolver(), opt, fakeReverseGeocoder{}, nil)

		res, err := a.Assemble(context.Background(), Request{
			OriginLink:      "https://maps.google.com/?q=-12.0,-77.0",
			DestinationLink: "https://maps.google.com/?q=-12.1,-77.1",
			ClientIDs:       []string{"1", "2"},
		})
		require.NoError(t, err, "orden %v", order)
		require.Len(t, res.Stops, 2)
		assert.Equal(t, "Bodega Rosa", res.Stops[0].Name)
		assert.Equal(t, "Farmacia Luz", res.Stops[1].Name)
	}
}

func TestAssemble_OptimizerFailure(t *testing.T) {
	opt := &fakeOptimizer{err: errors.New("cuota agotada")}
	a := NewAssembler(testResolver(), opt, fakeReverseGeocoder{}, nil)

	_, err := a.Assemble(context.Background(), Request{
		OriginLink:      "https://maps.google.com/?q=-12.0,-77.0",
		DestinationLink: "https://maps.google.com/?q=-12.1,-77.1",
		ClientIDs:       []string{"1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cuota agotada")
}

// 历史落库失败不能影响返回给司机的路线
func TestAssemble_HistoryFailureIsBestEffort(t *testing.T) {
	opt := &fakeOptimizer{route: &optimizer.Route{Order: []int{0, 1}}}
	history := &fakeHistory{err: errors.New("db caída")}
	a := NewAssembler(testResolver(), opt, fakeReverseGeocoder{}, history)

	res, err := a.Assemble(context.Background(), Request{
		OriginLink:      "https://maps.google.com/?q=-12.0,-77.0",
		DestinationLink: "https://maps.google.com/?q=-12.1,-77.1",
		ClientIDs:       []string{"1", "2"},
	})
	require.NoError(t, err)
	assert.Len(t, res.Stops, 2)
}

// 超过单链接上限时切段，段与段首尾相接
func TestAssemble_SplitsLongRoutes(t *testing.T) {
	res := &fakeResolver{
		clients: map[string]resolver.ResolvedStop{},
		links: map[string]model.Point{
			"origen":  {Lat: 0, Lng: 0},
			"destino": {Lat: 99, Lng: 99},
		},
	}
	var ids []string
	order := make([]int, 12)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("c%d", i)
		res.clients[id] = resolver.ResolvedStop{
			BsaleID: id, Coords: model.Point{Lat: float64(i), Lng: float64(i)}, IsClient: true,
		}
		ids = append(ids, id)
		order[i] = i
	}
	opt := &fakeOptimizer{route: &optimizer.Route{Order: order}}
	a := NewAssembler(res, opt, fakeReverseGeocoder{}, nil)

	out, err := a.Assemble(context.Background(), Request{
		OriginLink:      "origen",
		DestinationLink: "destino",
		ClientIDs:       ids,
	})
	require.NoError(t, err)
	require.Len(t, out.Segments, 2)
	assert.Equal(t, out.Segments[0].End, out.Segments[1].Start)
	assert.Equal(t, model.Point{Lat: 99, Lng: 99}, out.Segments[1].End)
}
