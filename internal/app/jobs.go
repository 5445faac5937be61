package app

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/freshretail/freshpos/pkg/metrics"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	if _, err := a.sched.AddFunc("@every 60s", a.collectSystemGauges); err != nil {
		zap.L().Error("failed to schedule system gauge job", zap.Error(err))
	}
	if _, err := a.sched.AddFunc("@daily", a.ScanExpiringLots); err != nil {
		zap.L().Error("failed to schedule expiring lot scan", zap.Error(err))
	}

	a.sched.Start()
}

func (a *Application) collectSystemGauges() {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		zap.L().Warn("failed to inspect process", zap.Error(err))
		return
	}
	if cpuPercent, err := proc.CPUPercent(); err == nil {
		_ = metrics.RecordGauge(metrics.MetricProcCPU, cpuPercent)
	}
	if memInfo, err := proc.MemoryInfo(); err == nil {
		_ = metrics.RecordGauge(metrics.MetricProcMem, float64(memInfo.RSS)/1024/1024)
	}
}

// ScanExpiringLots walks the catalog with a small worker pool and publishes a
// notification for every stocked lot that expires within the configured
// window. Runs daily; also callable from maintenance endpoints.
func (a *Application) ScanExpiringLots() {
	ctx := context.Background()
	products, err := a.engine.Catalog.List(ctx)
	if err != nil {
		zap.L().Error("expiring lot scan failed to list products", zap.Error(err))
		return
	}

	window := a.appConfig.Notify.ExpiryWindowDays
	if window <= 0 {
		window = 3
	}
	now := time.Now()
	deadline := now.AddDate(0, 0, window)

	pool, err := ants.NewPool(8)
	if err != nil {
		zap.L().Error("failed to create scan worker pool", zap.Error(err))
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, product := range products {
		product := product
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			lots, err := a.engine.Lots.ExpiringLots(ctx, product.ID, now, deadline)
			if err != nil {
				zap.L().Warn("expiring lot scan failed",
					zap.Int64("product_id", product.ID), zap.Error(err))
				return
			}
			for _, lot := range lots {
				a.dispatcher.ExpiringLot(product, lot)
			}
		}); err != nil {
			wg.Done()
			zap.L().Warn("failed to submit scan task", zap.Error(err))
		}
	}
	wg.Wait()
}
