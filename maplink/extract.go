package maplink

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"miuruta/model"
)

// 各种 Google Maps 链接里坐标出现的位置，按可信度排序:
// !3d/!4d 是地点本身的坐标 (最准)，@ 只是地图视口中心 (兜底)
var (
	placeLatPattern = regexp.MustCompile(`!3d(-?\d+\.?\d*)`)
	placeLngPattern = regexp.MustCompile(`!4d(-?\d+\.?\d*)`)
	atPattern       = regexp.MustCompile(`@(-?\d+\.?\d*),(-?\d+\.?\d*)`)
	coordPattern    = regexp.MustCompile(`(-?\d+\.?\d*),\s*(-?\d+\.?\d*)`)
	pathPattern     = regexp.MustCompile(`/(-?\d+\.?\d*),(-?\d+\.?\d*)`)
)

// 已知的短链域名，这类链接必须先跟随跳转拿到完整链接才能解析
var shortLinkHosts = []string{"goo.gl", "maps.app"}

// Extractor 从 Google Maps 链接中提取坐标
// 唯一的网络副作用是短链展开，超时固定 10 秒
type Extractor struct {
	client *http.Client
}

// NewExtractor 创建链接解析器
func NewExtractor() *Extractor {
	return &Extractor{client: &http.Client{Timeout: 10 * time.Second}}
}

// NewExtractorWithClient 使用指定 HTTP 客户端创建解析器 (测试用)
func NewExtractorWithClient(client *http.Client) *Extractor {
	return &Extractor{client: client}
}

// IsShortLink 判断是否为需要展开的短链
func IsShortLink(raw string) bool {
	for _, host := range shortLinkHosts {
		if strings.Contains(raw, host) {
			return true
		}
	}
	return false
}

// ExpandShortURL 展开短链 (goo.gl / maps.app)，返回跳转后的完整链接
// 展开失败时返回原链接，由调用方决定后续处理
func (e *Extractor) ExpandShortURL(raw string) (string, error) {
	resp, err := e.client.Head(raw)
	if err != nil {
		return raw, err
	}
	defer resp.Body.Close()
	return resp.Request.URL.String(), nil
}

// Extract 从链接文本中提取坐标
// 匹配顺序 (先匹配到的优先):
//  1. !3d / !4d 地点坐标对
//  2. @lat,lng 视口中心
//  3. q= 查询参数中的 "lat,lng"
//  4. 路径中的 "/lat,lng"
//  5. 旧式 ll= 参数
//
// 短链先展开再匹配；展开失败视为提取不到坐标，不报错
func (e *Extractor) Extract(raw string) (model.Point, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Point{}, false
	}

	if IsShortLink(raw) {
		expanded, err := e.ExpandShortURL(raw)
		if err != nil {
			return model.Point{}, false
		}
		raw = expanded
	}

	return extractFromExpanded(raw)
}

// extractFromExpanded 对已展开的链接做纯模式匹配 (无副作用)
func extractFromExpanded(raw string) (model.Point, bool) {
	// 1. 地点坐标对
	latMatch := placeLatPattern.FindStringSubmatch(raw)
	lngMatch := placeLngPattern.FindStringSubmatch(raw)
	if latMatch != nil && lngMatch != nil {
		if p, ok := parsePoint(latMatch[1], lngMatch[1]); ok {
			return p, true
		}
	}

	// 2. 视口中心
	if m := atPattern.FindStringSubmatch(raw); m != nil {
		if p, ok := parsePoint(m[1], m[2]); ok {
			return p, true
		}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return model.Point{}, false
	}
	query := parsed.Query()

	// 3. q= 查询参数
	if q := query.Get("q"); q != "" {
		if m := coordPattern.FindStringSubmatch(q); m != nil {
			if p, ok := parsePoint(m[1], m[2]); ok {
				return p, true
			}
		}
	}

	// 4. 路径中的坐标 (如 /maps/place/XXX/-12.0464,-77.0428)
	if m := pathPattern.FindStringSubmatch(parsed.Path); m != nil {
		if p, ok := parsePoint(m[1], m[2]); ok {
			return p, true
		}
	}

	// 5. 旧式 ll= 参数
	if ll := query.Get("ll"); ll != "" {
		parts := strings.Split(ll, ",")
		if len(parts) == 2 {
			if p, ok := parsePoint(parts[0], parts[1]); ok {
				return p, true
			}
		}
	}

	return model.Point{}, false
}

func parsePoint(latStr, lngStr string) (model.Point, bool) {
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lng, err2 := strconv.ParseFloat(lngStr, 64)
	if err1 != nil || err2 != nil {
		return model.Point{}, false
	}
	return model.Point{Lat: lat, Lng: lng}, true
}
