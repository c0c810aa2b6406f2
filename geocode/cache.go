package geocode

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"miuruta/model"
)

// ResultCache 地理编码结果缓存
// 只缓存成功结果；同一个地址反复出现在不同路线里，没必要每次都打 API
type ResultCache interface {
	Get(ctx context.Context, address string) (model.Point, bool)
	Set(ctx context.Context, address string, p model.Point)
}

// 地址坐标基本不变，缓存放一个月
const cacheTTL = 30 * 24 * time.Hour

// RedisCache 基于 Redis 的结果缓存，值存成 "lat,lng" 文本
type RedisCache struct {
	rc *redis.Client
}

// NewRedisCache 创建 Redis 结果缓存；rc 为 nil 时返回 nil (调用方直接不挂缓存)
func NewRedisCache(rc *redis.Client) *RedisCache {
	if rc == nil {
		return nil
	}
	return &RedisCache{rc: rc}
}

func cacheKey(address string) string {
	return "geocode:" + address
}

// Get 查缓存，未命中或值损坏时返回 false
func (c *RedisCache) Get(ctx context.Context, address string) (model.Point, bool) {
	val, err := c.rc.Get(ctx, cacheKey(address)).Result()
	if err != nil {
		return model.Point{}, false
	}
	parts := strings.SplitN(val, ",", 2)
	if len(parts) != 2 {
		return model.Point{}, false
	}
	lat, err1 := strconv.ParseFloat(parts[0], 64)
	lng, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return model.Point{}, false
	}
	return model.Point{Lat: lat, Lng: lng}, true
}

// Set 写缓存，失败只记日志 (缓存挂了不影响主流程)
func (c *RedisCache) Set(ctx context.Context, address string, p model.Point) {
	val := fmt.Sprintf("%f,%f", p.Lat, p.Lng)
	if err := c.rc.Set(ctx, cacheKey(address), val, cacheTTL).Err(); err != nil {
		log.Printf("geocode 缓存写入失败: %v", err)
	}
}
