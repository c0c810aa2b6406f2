package directory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miuruta/model"
)

// fakeSource 内存版远程目录，可注入分页失败和阻塞
type fakeSource struct {
	clients    []model.Client
	failAtPage int           // 第 n 次 Page 调用返回错误 (1-based)，0 表示不失败
	pageCalls  int
	gate       chan struct{} // 非 nil 时每次 Page 先等放行
	endless    bool          // 模拟分页异常的服务端: 无论 offset 都返回满页
}

func (f *fakeSource) Count(context.Context) (int, error) {
	return len(f.clients), nil
}

func (f *fakeSource) Page(_ context.Context, offset, limit int) ([]model.Client, error) {
	f.pageCalls++
	if f.gate != nil {
		<-f.gate
	}
	if f.failAtPage > 0 && f.pageCalls >= f.failAtPage {
		return nil, errors.New("timeout de red simulado")
	}
	if f.endless {
		return f.clients[:limit], nil
	}
	if offset >= len(f.clients) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.clients) {
		end = len(f.clients)
	}
	return f.clients[offset:end], nil
}

func makeClients(n int) []model.Client {
	clients := make([]model.Client, n)
	for i := range clients {
		clients[i] = model.Client{
			BsaleID: fmt.Sprintf("%d", i+1),
			Name:    fmt.Sprintf("Cliente %d", i+1),
			Address: fmt.Sprintf("Av. Prueba %d", i+1),
			City:    "Lima",
		}
	}
	return clients
}

func tempSnapshotPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "clients_cache.json")
}

func TestCache_RefreshAndSnapshotFile(t *testing.T) {
	src := &fakeSource{clients: makeClients(120)}
	file := tempSnapshotPath(t)
	cache := NewCache(src, file)

	require.NoError(t, cache.Refresh(context.Background()))

	snap := cache.Snapshot()
	assert.True(t, snap.Loaded)
	assert.False(t, snap.Loading)
	assert.Len(t, snap.Clients, 120)
	assert.Equal(t, snap.Total, snap.Progress)
	assert.False(t, snap.LastUpdated.IsZero())

	// 快照文件要能喂给一个全新的缓存 (模拟重启后的快速路径)
	fresh := NewCache(src, file)
	fresh.Load()
	snap2 := fresh.Snapshot()
	assert.True(t, snap2.Loaded)
	assert.Len(t, snap2.Clients, 120)
}

// 中途失败必须保留上一份完整数据，不能半新半旧
func TestCache_FailedRefreshKeepsOldSnapshot(t *testing.T) {
	good := &fakeSource{clients: makeClients(100)}
	file := tempSnapshotPath(t)
	cache := NewCache(good, file)
	require.NoError(t, cache.Refresh(context.Background()))

	// 换成一个 5 页中第 3 页就挂掉的源
	cache.src = &fakeSource{clients: makeClients(230), failAtPage: 3}
	err := cache.Refresh(context.Background())
	require.Error(t, err)

	snap := cache.Snapshot()
	assert.Len(t, snap.Clients, 100, "el snapshot anterior debe quedar intacto")
	assert.Equal(t, "Cliente 1", snap.Clients[0].Name)
	assert.False(t, snap.Loading)
}

// loading 标志保证同时只有一次刷新
func TestCache_ConcurrentRefreshIsNoOp(t *testing.T) {
	src := &fakeSource{clients: makeClients(60), gate: make(chan struct{})}
	cache := NewCache(src, tempSnapshotPath(t))

	done := make(chan error, 1)
	go func() { done <- cache.Refresh(context.Background()) }()

	// 等第一次刷新进入拉取阶段
	require.Eventually(t, cache.IsRefreshing, time.Second, time.Millisecond)

	// 第二次调用应立即空操作返回，不打扰进行中的刷新
	require.NoError(t, cache.Refresh(context.Background()))
	assert.True(t, cache.IsRefreshing())

	close(src.gate)
	require.NoError(t, <-done)
	assert.Len(t, cache.Snapshot().Clients, 60)
}

func TestCache_LoadMissingFile(t *testing.T) {
	cache := NewCache(&fakeSource{}, tempSnapshotPath(t))
	cache.Load() // 不得 panic 也不得报错

	snap := cache.Snapshot()
	assert.False(t, snap.Loaded)
	assert.Empty(t, snap.Clients)
}

func TestCache_LoadCorruptFile(t *testing.T) {
	file := tempSnapshotPath(t)
	require.NoError(t, os.WriteFile(file, []byte("{esto no es json"), 0o644))

	cache := NewCache(&fakeSource{}, file)
	cache.Load()
	assert.False(t, cache.Snapshot().Loaded)
}

func TestCache_Get(t *testing.T) {
	src := &fakeSource{clients: makeClients(10)}
	cache := NewCache(src, tempSnapshotPath(t))
	require.NoError(t, cache.Refresh(context.Background()))

	c, ok := cache.Get("7")
	require.True(t, ok)
	assert.Equal(t, "Cliente 7", c.Name)

	_, ok = cache.Get("999")
	assert.False(t, ok)
}

// 服务端分页异常 (永远返回满页) 时，以 Count 的总数为上界终止
func TestFetchAll_BoundedByCount(t *testing.T) {
	src := &fakeSource{clients: makeClients(120), endless: true}
	clients, err := FetchAll(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, src.pageCalls) // ceil(120/50)
	assert.Len(t, clients, 150)       // 3 páginas llenas de 50
}

func TestFetchAll_ProgressVisibleDuringPagination(t *testing.T) {
	src := &fakeSource{clients: makeClients(120)} // 3 páginas
	var progress [][2]int
	clients, err := FetchAll(context.Background(), src, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	require.NoError(t, err)
	assert.Len(t, clients, 120)
	// 初始 0/120，之后每页推进一次
	assert.Equal(t, [2]int{0, 120}, progress[0])
	assert.Equal(t, [2]int{120, 120}, progress[len(progress)-1])
	assert.GreaterOrEqual(t, len(progress), 3)
}
