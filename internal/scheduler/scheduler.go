package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nmsplatform/tablemetrics/internal/cron"
	"github.com/nmsplatform/tablemetrics/internal/engine"
)

// Executor runs one measurement invocation. Satisfied by
// engine.Coordinator.
type Executor interface {
	Execute(req engine.Request) (*engine.Result, error)
}

// Scheduler fires configured collection jobs on their cron schedules.
// Firings run in their own goroutines: a slow full-scan run must not
// delay other jobs, and concurrent runs are safe because daily snapshot
// conflicts resolve by run id.
type Scheduler struct {
	executor Executor
	logger   *slog.Logger
	loc      *time.Location
	jobs     []job

	stop chan struct{}
	wg   sync.WaitGroup
}

type job struct {
	name     string
	schedule *cron.Schedule
	request  engine.Request
}

// New creates a scheduler from validated config. Schedules are evaluated
// in the business-day timezone so "0 6 * * *" means 6am of the day the
// snapshot is attributed to.
func New(cfg Config, executor Executor, loc *time.Location, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		executor: executor,
		logger:   logger,
		loc:      loc,
		stop:     make(chan struct{}),
	}

	for _, jc := range cfg.Jobs {
		schedule, err := cron.Parse(jc.Schedule)
		if err != nil {
			return nil, err
		}
		s.jobs = append(s.jobs, job{
			name:     jc.Name,
			schedule: schedule,
			request:  jc.request(),
		})
	}

	return s, nil
}

// Start begins the scheduling loop in a background goroutine.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()

	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop halts the loop and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()

	s.logger.Info("scheduler stopped")
}

// loop wakes once per minute boundary and fires every job whose schedule
// matches that minute.
func (s *Scheduler) loop() {
	defer s.wg.Done()

	for {
		now := time.Now().In(s.loc)
		next := now.Truncate(time.Minute).Add(time.Minute)

		select {
		case <-s.stop:
			return
		case <-time.After(next.Sub(now)):
		}

		tick := next
		for _, j := range s.jobs {
			if !j.schedule.Matches(tick) {
				continue
			}

			s.wg.Add(1)
			go func(j job) {
				defer s.wg.Done()
				s.fire(j, tick)
			}(j)
		}
	}
}

// fire executes one job firing and logs the outcome.
func (s *Scheduler) fire(j job, tick time.Time) {
	invocationID := uuid.NewString()

	s.logger.Info("scheduled run firing",
		"job", j.name,
		"invocation_id", invocationID,
		"scheduled_at", tick)

	res, err := s.executor.Execute(j.request)
	if err != nil {
		runID := int64(0)
		if res != nil {
			runID = res.RunID
		}
		s.logger.Error("scheduled run failed",
			"job", j.name,
			"invocation_id", invocationID,
			"run_id", runID,
			"error", err)
		return
	}

	s.logger.Info("scheduled run finished",
		"job", j.name,
		"invocation_id", invocationID,
		"run_id", res.RunID,
		"business_date", res.BusinessDate,
		"tables_processed", res.TablesProcessed)
}
