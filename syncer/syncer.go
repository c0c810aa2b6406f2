// Package syncer 后台对账任务: 以远程目录为准，补齐核实库
// 新客户补进来 (带尽力而为的地理编码)，老客户只刷新描述性字段
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"miuruta/directory"
	"miuruta/model"
)

// Stage 对账任务所处的阶段
type Stage string

const (
	StageIdle      Stage = "idle"
	StageFetching  Stage = "fetching"
	StageComparing Stage = "comparing"
	StageUpdating  Stage = "updating"
	StageGeocoding Stage = "geocoding"
	StageAdding    Stage = "adding"
	StageDone      Stage = "done"
	StageError     Stage = "error"
)

// validNext 合法的阶段迁移表
// 阶段只能按固定顺序推进，"先 adding 后 updating" 这类状态直接表达不出来
var validNext = map[Stage]Stage{
	StageIdle:      StageFetching,
	StageFetching:  StageComparing,
	StageComparing: StageUpdating,
	StageUpdating:  StageGeocoding,
	StageGeocoding: StageAdding,
	StageAdding:    StageDone,
}

// ErrAlreadyRunning 已有一次对账在跑，触发方稍后再试
var ErrAlreadyRunning = errors.New("ya hay una sincronización en curso")

// Status 对账进度，供轮询接口直接往外吐
// 每次运行开始时整体换新，运行中原地更新
type Status struct {
	Stage    Stage  `json:"stage"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
	Total    int    `json:"total"`
	Added    int    `json:"added"`
	Updated  int    `json:"updated"`
	Error    string `json:"error,omitempty"`
}

// Store 对账需要的核实库窄契约
// 注意这里没有任何能碰核实字段的方法: 对账想覆盖人工核实成果，类型上就做不到
type Store interface {
	ListAll() ([]model.Client, error)
	UpdateDetails(c model.Client) error
	Append(clients []model.Client) error
}

// Geocoder 地理编码契约
type Geocoder interface {
	Geocode(ctx context.Context, address, district, city string) (model.Point, bool)
}

// Orchestrator 对账编排器，同一时刻最多一次运行 (running 标志 try-acquire)
type Orchestrator struct {
	mu      sync.Mutex
	running bool
	status  Status

	src      directory.Source
	store    Store
	geocoder Geocoder
}

// New 创建对账编排器
func New(src directory.Source, store Store, geocoder Geocoder) *Orchestrator {
	return &Orchestrator{
		src:      src,
		store:    store,
		geocoder: geocoder,
		status:   Status{Stage: StageIdle},
	}
}

// Trigger 启动一次后台对账
// 已有运行时返回 ErrAlreadyRunning，不排队也不打断进行中的运行
func (o *Orchestrator) Trigger() error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	o.running = true
	// 整体换新上一轮的状态
	o.status = Status{Stage: StageFetching, Message: "descargando el directorio remoto..."}
	o.mu.Unlock()

	go o.run()
	return nil
}

// Status 当前进度的拷贝
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// IsRunning 是否有对账在跑
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// run 执行一轮完整对账；无论怎么结束都要释放 running 槽位
func (o *Orchestrator) run() {
	defer func() {
		if r := recover(); r != nil {
			o.fail(fmt.Errorf("pánico en la sincronización: %v", r))
		}
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	ctx := context.Background()

	// fetching: 整库拉取远程目录
	remote, err := directory.FetchAll(ctx, o.src, func(done, total int) {
		o.mu.Lock()
		o.status.Progress = done
		o.status.Total = total
		o.mu.Unlock()
	})
	if err != nil {
		o.fail(fmt.Errorf("error descargando el directorio: %w", err))
		return
	}

	// comparing: 按 ID 集合差把远程记录分成已知/新增两堆
	o.advance(StageComparing, "comparando con los registros existentes")
	existing, err := o.store.ListAll()
	if err != nil {
		o.fail(fmt.Errorf("error leyendo los clientes existentes: %w", err))
		return
	}
	existingByID := make(map[string]model.Client, len(existing))
	for _, c := range existing {
		existingByID[c.BsaleID] = c
	}

	var known, fresh []model.Client
	for _, c := range remote {
		if _, ok := existingByID[c.BsaleID]; ok {
			known = append(known, c)
		} else {
			fresh = append(fresh, c)
		}
	}

	// updating: 只改写描述性字段，且只写真的变了的
	// 必须在 adding 之前完成，轮询方不会看到 "新客户进来了但老客户还是旧值"
	o.advance(StageUpdating, fmt.Sprintf("actualizando %d clientes existentes", len(known)))
	updated := 0
	for _, c := range known {
		if !detailsChanged(existingByID[c.BsaleID], c) {
			continue
		}
		if err := o.store.UpdateDetails(c); err != nil {
			o.fail(fmt.Errorf("error actualizando el cliente %s: %w", c.BsaleID, err))
			return
		}
		updated++
	}
	o.mu.Lock()
	o.status.Updated = updated
	o.mu.Unlock()

	// geocoding: 新客户逐个地理编码，失败留空链接继续，不中断整批
	// 这是最慢的阶段，进度逐条往外报
	o.advance(StageGeocoding, fmt.Sprintf("geocodificando %d clientes nuevos", len(fresh)))
	o.mu.Lock()
	o.status.Progress = 0
	o.status.Total = len(fresh)
	o.mu.Unlock()

	for i := range fresh {
		if fresh[i].Address != "" {
			if p, ok := o.geocoder.Geocode(ctx, fresh[i].Address, fresh[i].District, fresh[i].City); ok {
				lat, lng := p.Lat, p.Lng
				fresh[i].Lat = &lat
				fresh[i].Lng = &lng
				fresh[i].MapsLink = fmt.Sprintf("https://www.google.com/maps?q=%f,%f", p.Lat, p.Lng)
			}
		}
		o.mu.Lock()
		o.status.Progress = i + 1
		o.mu.Unlock()
	}

	// adding: 地理编码成败与否都入库，一律未核实
	o.advance(StageAdding, fmt.Sprintf("agregando %d clientes nuevos", len(fresh)))
	if err := o.store.Append(fresh); err != nil {
		o.fail(fmt.Errorf("error agregando clientes nuevos: %w", err))
		return
	}

	o.mu.Lock()
	o.status.Added = len(fresh)
	o.mu.Unlock()
	o.advance(StageDone, fmt.Sprintf("sincronización completa: %d nuevos, %d actualizados", len(fresh), updated))
	log.Printf("sincronización completa: %d nuevos, %d actualizados de %d remotos", len(fresh), updated, len(remote))
}

// advance 推进到下一阶段，非法迁移说明代码写错了，记日志但不拦
func (o *Orchestrator) advance(next Stage, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if validNext[o.status.Stage] != next {
		log.Printf("transición de etapa inesperada: %s → %s", o.status.Stage, next)
	}
	o.status.Stage = next
	o.status.Message = msg
}

// fail 任何阶段的异常都收敛到 error 终态，槽位由 run 的 defer 释放
func (o *Orchestrator) fail(err error) {
	log.Printf("sincronización fallida: %v", err)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status.Stage = StageError
	o.status.Message = "la sincronización falló"
	o.status.Error = err.Error()
}

// detailsChanged 描述性字段是否有变化 (核实字段不参与比较)
func detailsChanged(prev, next model.Client) bool {
	return prev.Name != next.Name ||
		prev.Company != next.Company ||
		prev.Phone != next.Phone ||
		prev.Address != next.Address ||
		prev.District != next.District ||
		prev.City != next.City
}
