package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miuruta/model"
	"miuruta/syncer"
)

// stubSource 空目录，gate 非 nil 时 Count 先等放行 (把运行卡在 fetching)
type stubSource struct {
	gate chan struct{}
}

func (s *stubSource) Count(context.Context) (int, error) {
	if s.gate != nil {
		<-s.gate
	}
	return 0, nil
}

func (s *stubSource) Page(context.Context, int, int) ([]model.Client, error) {
	return nil, nil
}

type stubStore struct{}

func (stubStore) ListAll() ([]model.Client, error) { return nil, nil }
func (stubStore) UpdateDetails(model.Client) error { return nil }
func (stubStore) Append([]model.Client) error      { return nil }

type stubGeocoder struct{}

func (stubGeocoder) Geocode(context.Context, string, string, string) (model.Point, bool) {
	return model.Point{}, false
}

func newSyncRouter(orch *syncer.Orchestrator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewSyncHandler(orch)
	r.POST("/api/sync", h.Trigger)
	r.GET("/api/sync/status", h.Status)
	return r
}

func TestSyncEndpoints(t *testing.T) {
	src := &stubSource{gate: make(chan struct{})}
	orch := syncer.New(src, stubStore{}, stubGeocoder{})
	r := newSyncRouter(orch)

	// 触发: 202
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)

	// 运行中再触发: 409
	require.Eventually(t, orch.IsRunning, time.Second, time.Millisecond)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	// 轮询接口能看到进行中的阶段
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sync/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status syncer.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, syncer.StageFetching, status.Stage)

	// 放行，跑到 done
	close(src.gate)
	require.Eventually(t, func() bool {
		return orch.Status().Stage == syncer.StageDone
	}, 2*time.Second, time.Millisecond)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sync/status", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, syncer.StageDone, status.Stage)
	assert.Zero(t, status.Added)
}
