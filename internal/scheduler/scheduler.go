package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/snow-report/internal/logger"
	"github.com/i474232898/snow-report/internal/logship"
	"github.com/i474232898/snow-report/internal/weather"
)

const (
	DefaultUploadInterval = 300 * time.Second
	jobTimeout            = 30 * time.Second
)

// Shipper uploads a snapshot of the activity log.
type Shipper interface {
	Ship(ctx context.Context) (logship.Upload, error)
}

// Prefetcher warms the forecast cache.
type Prefetcher interface {
	Prefetch(ctx context.Context, locs []weather.Location) int
}

// Config selects which jobs run. A zero interval disables the job.
type Config struct {
	UploadInterval time.Duration
	FetchInterval  time.Duration
	Locations      []weather.Location
}

// Scheduler runs the periodic log upload and the optional forecast prefetch.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	shipper    Shipper
	prefetcher Prefetcher
	cfg        Config
	log        logger.Logger
}

// New creates a new Scheduler. Either dependency may be nil to skip its job.
func New(cfg Config, shipper Shipper, prefetcher Prefetcher, log logger.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:  s,
		shipper:    shipper,
		prefetcher: prefetcher,
		cfg:        cfg,
		log:        log.WithField("component", "scheduler"),
	}
}

// Start schedules the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.shipper != nil && s.cfg.UploadInterval > 0 {
		// The first upload happens one interval after start, like every other.
		_, err := s.scheduler.Every(s.cfg.UploadInterval).SingletonMode().WaitForSchedule().Do(s.shipLog)
		if err != nil {
			return err
		}
		s.log.Infof("log upload scheduled every %s", s.cfg.UploadInterval)
	}

	if s.prefetcher != nil && s.cfg.FetchInterval > 0 && len(s.cfg.Locations) > 0 {
		_, err := s.scheduler.Every(s.cfg.FetchInterval).SingletonMode().Do(s.prefetch)
		if err != nil {
			return err
		}
		s.log.Infof("forecast prefetch for %d resorts scheduled every %s", len(s.cfg.Locations), s.cfg.FetchInterval)
	}

	if s.scheduler.Len() == 0 {
		s.log.Info("no jobs configured; nothing to schedule")
		return nil
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) shipLog() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.shipper.Ship(ctx); err != nil {
		s.log.Errorf("log upload failed: %v", err)
	}
}

func (s *Scheduler) prefetch() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.log.Debug("running forecast prefetch job")
	n := s.prefetcher.Prefetch(ctx, s.cfg.Locations)
	s.log.Debugf("completed forecast prefetch job: %d/%d refreshed", n, len(s.cfg.Locations))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
