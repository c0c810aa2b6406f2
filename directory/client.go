// Package directory 对接远程客户目录 (Bsale API) 并维护本地缓存
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"miuruta/model"
)

const defaultBaseURL = "https://api.bsale.io/v1"

// 每页拉取的客户数，与远程 API 的默认分页对齐
const pageSize = 50

// Source 远程目录的最小读取契约 (缓存和同步任务都只依赖这个)
type Source interface {
	Count(ctx context.Context) (int, error)
	Page(ctx context.Context, offset, limit int) ([]model.Client, error)
}

// Client Bsale API 客户端
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient 创建远程目录客户端；baseURL 为空时用官方地址
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

type countResponse struct {
	Count int `json:"count"`
}

type clientItem struct {
	ID        json.Number `json:"id"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Company   string      `json:"company"`
	Phone     string      `json:"phone"`
	Address   string      `json:"address"`
	City      string      `json:"city"`
	District  string      `json:"district"`
}

type pageResponse struct {
	Items []clientItem `json:"items"`
}

// Count 查询远程目录的客户总数
func (c *Client) Count(ctx context.Context) (int, error) {
	var result countResponse
	if err := c.get(ctx, "/clients/count.json", nil, &result); err != nil {
		return 0, fmt.Errorf("error consultando el total de clientes: %w", err)
	}
	return result.Count, nil
}

// Page 拉取一页客户，state=0 表示只要有效客户
func (c *Client) Page(ctx context.Context, offset, limit int) ([]model.Client, error) {
	params := map[string]string{
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
		"state":  "0",
	}
	var result pageResponse
	if err := c.get(ctx, "/clients.json", params, &result); err != nil {
		return nil, fmt.Errorf("error en offset %d: %w", offset, err)
	}

	clients := make([]model.Client, 0, len(result.Items))
	for _, item := range result.Items {
		name := strings.TrimSpace(item.FirstName + " " + item.LastName)
		clients = append(clients, model.Client{
			BsaleID:  item.ID.String(),
			Name:     name,
			Company:  item.Company,
			Phone:    item.Phone,
			Address:  item.Address,
			City:     item.City,
			District: item.District,
		})
	}
	return clients, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("access_token", c.token)
	req.Header.Set("Content-Type", "application/json")
	if params != nil {
		q := req.URL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("código de estado %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// FetchAll 分页拉取整个远程目录
// 每拉完一页就回调一次进度，让轮询方在完成前就能看到部分进度;
// 任何一页失败都直接中止并返回错误，不返回半截数据
// 以 Count 的总数为分页上界，服务端分页异常 (永远返回满页) 时也不会无限拉取
func FetchAll(ctx context.Context, src Source, onProgress func(done, total int)) ([]model.Client, error) {
	total, err := src.Count(ctx)
	if err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(0, total)
	}

	all := make([]model.Client, 0, total)
	for offset := 0; offset < total; {
		items, err := src.Page(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
		offset += len(items)

		done := offset
		if done > total {
			done = total
		}
		if onProgress != nil {
			onProgress(done, total)
		}
		if len(items) < pageSize {
			break
		}
	}
	return all, nil
}
