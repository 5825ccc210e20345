package scheduler

import (
	"sync"

	"github.com/robfig/cron/v3"
)

// ScheduledTask runs one job on its own cron instance, so each maintenance
// job can be cancelled and re-registered independently of the others.
type ScheduledTask struct {
	cron   *cron.Cron
	cancel chan struct{}
	once   sync.Once
}

// NewScheduledTask registers job under spec (standard cron syntax or
// "@every ...") and starts running it.
func NewScheduledTask(spec string, job func()) (*ScheduledTask, error) {
	task := &ScheduledTask{
		cron:   cron.New(),
		cancel: make(chan struct{}),
	}

	_, err := task.cron.AddFunc(spec, func() {
		select {
		case <-task.cancel:
		default:
			job()
		}
	})
	if err != nil {
		return nil, err
	}

	task.cron.Start()
	return task, nil
}

// Cancel stops the task's scheduler. A run already in flight finishes; no
// further runs start. Safe to call more than once.
func (s *ScheduledTask) Cancel() {
	s.once.Do(func() {
		close(s.cancel)
		s.cron.Stop()
	})
}
