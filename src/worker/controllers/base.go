package controllers

import (
	"context"
	"fmt"
	"sync"

	"cryptofolio/src/config"
	"cryptofolio/src/scheduler"
	"cryptofolio/src/schemas"
	"cryptofolio/src/services"
	"cryptofolio/src/utils"
)

// Controller owns the scheduled ledger maintenance: snapshot sweeps, history
// pruning and price refreshes, each as an independent cron task.
type Controller struct {
	Snapshots *services.SnapshotService
	Prices    *services.PriceService

	SchedulerMutex sync.Mutex
	Schedulers     map[string]*scheduler.ScheduledTask

	priceUpdateInterval int
}

func NewController(snapshots *services.SnapshotService, prices *services.PriceService, cfg *config.Config) *Controller {
	return &Controller{
		Snapshots:           snapshots,
		Prices:              prices,
		Schedulers:          map[string]*scheduler.ScheduledTask{},
		priceUpdateInterval: cfg.Ledger.PriceUpdateInterval,
	}
}

var sweepSchedules = map[schemas.SnapshotType]string{
	schemas.SnapshotHourly:  "0 * * * *",
	schemas.SnapshotDaily:   "5 0 * * *",
	schemas.SnapshotWeekly:  "10 0 * * 0",
	schemas.SnapshotMonthly: "15 0 1 * *",
}

const pruneSchedule = "30 1 * * *"

// StartSchedules registers every periodic task. Safe to call once at boot;
// calling it again replaces the previous schedule set.
func (c *Controller) StartSchedules(ctx context.Context) error {
	c.SchedulerMutex.Lock()
	defer c.SchedulerMutex.Unlock()

	for name, task := range c.Schedulers {
		task.Cancel()
		delete(c.Schedulers, name)
	}

	logger := utils.LoggerFromContext(ctx)

	for snapshotType, spec := range sweepSchedules {
		st := snapshotType
		task, err := scheduler.NewScheduledTask(spec, func() {
			if _, err := c.Snapshots.Sweep(ctx, st); err != nil {
				logger.WithError(err).WithField("snapshot_type", st).Error("scheduled sweep failed")
			}
		})
		if err != nil {
			return err
		}
		c.Schedulers["sweep_"+string(st)] = task
	}

	pruneTask, err := scheduler.NewScheduledTask(pruneSchedule, func() {
		if _, err := c.Snapshots.Prune(ctx); err != nil {
			logger.WithError(err).Error("scheduled prune failed")
		}
	})
	if err != nil {
		return err
	}
	c.Schedulers["prune"] = pruneTask

	priceTask, err := scheduler.NewScheduledTask(fmt.Sprintf("@every %ds", c.priceUpdateInterval), func() {
		if _, err := c.Prices.RefreshAll(ctx, false); err != nil {
			logger.WithError(err).Error("scheduled price refresh failed")
		}
	})
	if err != nil {
		return err
	}
	c.Schedulers["price_refresh"] = priceTask

	return nil
}

func (c *Controller) StopSchedules() {
	c.SchedulerMutex.Lock()
	defer c.SchedulerMutex.Unlock()

	for name, task := range c.Schedulers {
		task.Cancel()
		delete(c.Schedulers, name)
	}
}

// RunSweep triggers one sweep outside its schedule.
func (c *Controller) RunSweep(ctx context.Context, snapshotType schemas.SnapshotType) (int, error) {
	if !snapshotType.Valid() {
		return 0, utils.BadRequest(fmt.Sprintf("unknown snapshot type %q", snapshotType))
	}
	return c.Snapshots.Sweep(ctx, snapshotType)
}

// RunPrune triggers retention pruning outside its schedule.
func (c *Controller) RunPrune(ctx context.Context) (int64, error) {
	return c.Snapshots.Prune(ctx)
}

// RunPriceRefresh triggers a price sweep outside its schedule.
func (c *Controller) RunPriceRefresh(ctx context.Context, createSnapshots bool) (int, error) {
	return c.Prices.RefreshAll(ctx, createSnapshots)
}
