package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/robfig/cron/v3"
)

// Job is one periodic sweep. It returns the number of rows it changed.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Locker guards a sweep so one instance in a fleet runs it at a time.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

type Config struct {
	Spec       string
	JobTimeout time.Duration
}

// Scheduler runs the sweep jobs on a cron spec.
type Scheduler struct {
	jobs    []Job
	locker  Locker
	spec    string
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewScheduler(jobs []Job, locker Locker, logger *slog.Logger, config Config) *Scheduler {
	if config.Spec == "" {
		config.Spec = "@every 5m"
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:    jobs,
		locker:  locker,
		spec:    config.Spec,
		timeout: config.JobTimeout,
		logger:  logger.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}
	c.Start()
	s.cron = c
	s.running = true
	s.logger.Info("scheduler started", "spec", s.spec, "jobs", len(s.jobs))
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce runs every job once and reports the counts by job name. Jobs skipped because
// another instance holds the lock are absent from the result.
func (s *Scheduler) RunOnce(ctx context.Context) map[string]int64 {
	out := make(map[string]int64, len(s.jobs))
	for _, job := range s.jobs {
		n, ran, err := s.run(ctx, job)
		if err != nil {
			s.logger.Error("sweep failed", "job", job.Name, "err", err)
			continue
		}
		if !ran {
			continue
		}
		out[job.Name] = n
		s.logger.Info("sweep finished", "job", job.Name, "changed", n)
	}
	return out
}

func (s *Scheduler) run(ctx context.Context, job Job) (int64, bool, error) {
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, "sweep:"+job.Name)
		if err != nil {
			s.logger.Info("sweep skipped: lock busy", "job", job.Name, "err", err)
			return 0, false, nil
		}
		defer release()
	}
	n, err := job.Run(ctx)
	return n, true, err
}

// RedisLocker takes a single-try redsync mutex per sweep.
type RedisLocker struct {
	rs     *redsync.Redsync
	prefix string
	expiry time.Duration
	logger *slog.Logger
}

func NewRedisLocker(client *redis.Client, prefix string, expiry time.Duration, logger *slog.Logger) *RedisLocker {
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		prefix: prefix,
		expiry: expiry,
		logger: logger,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string) (func(), error) {
	key := name
	if l.prefix != "" {
		key = l.prefix + ":" + name
	}
	mutex := l.rs.NewMutex(key, redsync.WithExpiry(l.expiry), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	return func() {
		if _, err := mutex.UnlockContext(context.Background()); err != nil {
			l.logger.Warn("failed to release sweep lock", "key", key, "err", err)
		}
	}, nil
}
