// Package optimizer 封装 Google Routes API 的 computeRoutes 调用
// 路线优化对系统来说是黑盒: 给定起点/终点/停靠点，拿回最优顺序和里程耗时
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"miuruta/model"
)

const defaultBaseURL = "https://routes.googleapis.com/directions/v2:computeRoutes"

// 只请求需要的字段，减小响应体
const fieldMask = "routes.optimizedIntermediateWaypointIndex,routes.duration,routes.distanceMeters,routes.legs.duration,routes.legs.distanceMeters"

// ErrNoRoute API 正常返回但没有任何路线
var ErrNoRoute = errors.New("el optimizador no devolvió ninguna ruta")

// Leg 相邻两点之间一程的里程和耗时
type Leg struct {
	DistanceMeters int `json:"distance_meters"`
	DurationSecs   int `json:"duration_secs"`
}

// Route 优化结果
type Route struct {
	Order          []int `json:"order"` // 停靠点的最优访问顺序 (原索引的排列)
	DistanceMeters int   `json:"distance_meters"`
	DurationSecs   int   `json:"duration_secs"`
	Legs           []Leg `json:"legs"`
}

// Client Routes API 客户端
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

// NewClient 创建路线优化客户端
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL 覆盖 API 地址 (测试用)
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type waypoint struct {
	Location struct {
		LatLng latLng `json:"latLng"`
	} `json:"location"`
}

func makeWaypoint(p model.Point) waypoint {
	var wp waypoint
	wp.Location.LatLng = latLng{Latitude: p.Lat, Longitude: p.Lng}
	return wp
}

type computeRequest struct {
	Origin                   waypoint   `json:"origin"`
	Destination              waypoint   `json:"destination"`
	Intermediates            []waypoint `json:"intermediates"`
	TravelMode               string     `json:"travelMode"`
	OptimizeWaypointOrder    bool       `json:"optimizeWaypointOrder"`
	RoutingPreference        string     `json:"routingPreference"`
	ComputeAlternativeRoutes bool       `json:"computeAlternativeRoutes"`
	LanguageCode             string     `json:"languageCode"`
	Units                    string     `json:"units"`
}

type computeResponse struct {
	Routes []struct {
		OptimizedIntermediateWaypointIndex []int  `json:"optimizedIntermediateWaypointIndex"`
		DistanceMeters                     int    `json:"distanceMeters"`
		Duration                           string `json:"duration"` // 形如 "1234s"
		Legs                               []struct {
			DistanceMeters int    `json:"distanceMeters"`
			Duration       string `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// parseDurationSecs 解析 "1234s" 形式的时长，解析不了按 0 处理
func parseDurationSecs(s string) int {
	v, err := strconv.Atoi(strings.TrimSuffix(s, "s"))
	if err != nil {
		return 0
	}
	return v
}

// ComputeRoute 请求最优访问顺序
// 与地理编码不同，这里的错误要往上抛: 没有路线就没有结果，调用方必须知道
func (c *Client) ComputeRoute(ctx context.Context, origin, destination model.Point, stops []model.Point) (*Route, error) {
	if c.apiKey == "" {
		return nil, errors.New("GOOGLE_MAPS_API_KEY no configurado")
	}

	reqBody := computeRequest{
		Origin:                makeWaypoint(origin),
		Destination:           makeWaypoint(destination),
		Intermediates:         make([]waypoint, 0, len(stops)),
		TravelMode:            "DRIVE",
		OptimizeWaypointOrder: true,
		RoutingPreference:     "TRAFFIC_AWARE",
		LanguageCode:          "es",
		Units:                 "METRIC",
	}
	for _, s := range stops {
		reqBody.Intermediates = append(reqBody.Intermediates, makeWaypoint(s))
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error llamando al Routes API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("Routes API devolvió %d: %s", resp.StatusCode, string(body))
	}

	var result computeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Routes) == 0 {
		return nil, ErrNoRoute
	}

	r := result.Routes[0]
	order := r.OptimizedIntermediateWaypointIndex
	if order == nil {
		// API 没给排列时保持原顺序
		order = make([]int, len(stops))
		for i := range order {
			order[i] = i
		}
	}

	route := &Route{
		Order:          order,
		DistanceMeters: r.DistanceMeters,
		DurationSecs:   parseDurationSecs(r.Duration),
		Legs:           make([]Leg, 0, len(r.Legs)),
	}
	for _, leg := range r.Legs {
		route.Legs = append(route.Legs, Leg{
			DistanceMeters: leg.DistanceMeters,
			DurationSecs:   parseDurationSecs(leg.Duration),
		})
	}
	return route, nil
}
