package directory

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"miuruta/model"
)

// Snapshot 缓存的只读快照，轮询接口直接往外吐
type Snapshot struct {
	Clients     []model.Client `json:"clients"`
	Loaded      bool           `json:"loaded"`
	Loading     bool           `json:"loading"`
	Progress    int            `json:"progress"`
	Total       int            `json:"total"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Cache 远程目录的本地镜像
// 启动时先从快照文件加载 (快)，再从远程整体刷新 (慢，后台跑)
// 读多写少: 刷新成功时整体换掉 clients 切片，读方要么看到全旧要么全新
type Cache struct {
	mu          sync.RWMutex
	clients     []model.Client
	loaded      bool
	loading     bool
	progress    int
	total       int
	lastUpdated time.Time

	src  Source
	file string
}

// NewCache 创建目录缓存，file 为本地快照文件路径
func NewCache(src Source, file string) *Cache {
	return &Cache{src: src, file: file}
}

// snapshotFile 快照文件的磁盘格式
type snapshotFile struct {
	Clients     []model.Client `json:"clients"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Load 从本地快照文件加载
// 文件缺失或损坏只记警告，留空缓存继续跑，绝不让调用方失败
func (c *Cache) Load() {
	data, err := os.ReadFile(c.file)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("advertencia: no se pudo leer el snapshot %s: %v", c.file, err)
		}
		return
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("advertencia: snapshot %s corrupto: %v", c.file, err)
		return
	}

	c.mu.Lock()
	c.clients = snap.Clients
	c.loaded = true
	c.lastUpdated = snap.LastUpdated
	c.mu.Unlock()
	log.Printf("cargados %d clientes desde el snapshot local (%s)", len(snap.Clients), snap.LastUpdated.Format(time.RFC3339))
}

// Refresh 从远程目录整体刷新缓存
// loading 标志保证同时只有一次刷新在跑: 已在刷新时本次调用是空操作;
// 中途失败保留上一份完整数据，绝不留下半新半旧的缓存
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	c.progress = 0
	c.total = 0
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	clients, err := FetchAll(ctx, c.src, func(done, total int) {
		c.mu.Lock()
		c.progress = done
		c.total = total
		c.mu.Unlock()
	})
	if err != nil {
		log.Printf("fallo al refrescar el directorio, se mantiene el snapshot anterior: %v", err)
		return err
	}

	now := time.Now()
	c.mu.Lock()
	c.clients = clients // 整体替换，不逐字段改
	c.loaded = true
	c.progress = len(clients)
	c.total = len(clients)
	c.lastUpdated = now
	c.mu.Unlock()

	c.saveToFile(clients, now)
	log.Printf("directorio refrescado: %d clientes", len(clients))
	return nil
}

// IsRefreshing 是否有刷新在跑
func (c *Cache) IsRefreshing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Snapshot 返回当前快照 (浅拷贝，clients 切片只读共享)
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Clients:     c.clients,
		Loaded:      c.loaded,
		Loading:     c.loading,
		Progress:    c.progress,
		Total:       c.total,
		LastUpdated: c.lastUpdated,
	}
}

// Get 按 Bsale ID 找缓存里的客户
func (c *Cache) Get(bsaleID string) (model.Client, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.clients {
		if c.clients[i].BsaleID == bsaleID {
			return c.clients[i], true
		}
	}
	return model.Client{}, false
}

func (c *Cache) saveToFile(clients []model.Client, ts time.Time) {
	data, err := json.Marshal(snapshotFile{Clients: clients, LastUpdated: ts})
	if err != nil {
		log.Printf("error serializando snapshot: %v", err)
		return
	}
	if err := os.WriteFile(c.file, data, 0o644); err != nil {
		log.Printf("error guardando snapshot %s: %v", c.file, err)
	}
}
