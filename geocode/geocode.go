// Package geocode 封装 Google Geocoding API 调用
// 地理编码在整个系统里都是尽力而为: 任何错误都被吞掉，表现为 "查不到"
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"miuruta/model"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// 地址里的公寓/办公室/楼层信息会干扰地理编码，先剥掉
var aptInfoPattern = regexp.MustCompile(`(?i),?\s*(Dpto\.?|Departamento|Oficina|Dpto/Oficina|Dept\.?|Int\.?|Piso|Torre)\s*[A-Za-z0-9\-]+`)

// Client Google Geocoding API 客户端
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	cache   ResultCache // 可选的结果缓存，nil 表示不缓存
}

// NewClient 创建地理编码客户端，apiKey 为空时所有查询直接返回 "查不到"
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL 覆盖 API 地址 (测试用)
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// WithCache 挂上结果缓存
func (c *Client) WithCache(cache ResultCache) *Client {
	c.cache = cache
	return c
}

// geocodeResponse Geocoding API 响应 (只解析用到的字段)
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// CleanAddress 剥掉地址里的公寓/办公室/楼层等后缀
func CleanAddress(address string) string {
	cleaned := aptInfoPattern.ReplaceAllString(address, "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimRight(cleaned, ",")
	return strings.TrimSpace(cleaned)
}

// buildFullAddress 拼出带行政区提示的完整地址，提高命中率
func buildFullAddress(address, district, city string) string {
	full := address
	if district != "" {
		full += ", " + district
	}
	if city != "" {
		full += ", " + city
	}
	return full + ", Peru"
}

// Geocode 将地址文本转成坐标
// 失败 (无 key、网络错误、API 查不到) 一律返回 ok=false，不报错
func (c *Client) Geocode(ctx context.Context, address, district, city string) (model.Point, bool) {
	if c.apiKey == "" || address == "" {
		return model.Point{}, false
	}

	cleaned := CleanAddress(address)
	if cleaned == "" {
		return model.Point{}, false
	}
	full := buildFullAddress(cleaned, district, city)

	if c.cache != nil {
		if p, ok := c.cache.Get(ctx, full); ok {
			return p, true
		}
	}

	params := url.Values{}
	params.Set("address", full)
	params.Set("key", c.apiKey)
	params.Set("language", "es")
	params.Set("region", "pe")

	var result geocodeResponse
	if err := c.get(ctx, params, &result); err != nil {
		return model.Point{}, false
	}
	if result.Status != "OK" || len(result.Results) == 0 {
		return model.Point{}, false
	}

	loc := result.Results[0].Geometry.Location
	p := model.Point{Lat: loc.Lat, Lng: loc.Lng}
	if c.cache != nil {
		c.cache.Set(ctx, full, p)
	}
	return p, true
}

// ReverseGeocode 将坐标转成可读地址，查不到时退回 "lat, lng" 文本
func (c *Client) ReverseGeocode(ctx context.Context, p model.Point) string {
	fallback := fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lng)
	if c.apiKey == "" {
		return fallback
	}

	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", p.Lat, p.Lng))
	params.Set("key", c.apiKey)
	params.Set("language", "es")
	params.Set("result_type", "street_address|route|neighborhood|locality")

	var result geocodeResponse
	if err := c.get(ctx, params, &result); err != nil {
		return fallback
	}
	if result.Status != "OK" || len(result.Results) == 0 {
		return fallback
	}
	if addr := result.Results[0].FormattedAddress; addr != "" {
		return addr
	}
	return fallback
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoding API 返回状态码 %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
