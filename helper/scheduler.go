package helper

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
)

// SettlementJobs are the periodic maintenance tasks of the reconciler.
type SettlementJobs interface {
	RetryOrderSync(ctx context.Context) (int, error)
	ExpirePending(ctx context.Context) (int, error)
}

type Schedulers struct {
	orderSync *cron.Cron
	expiry    gocron.Scheduler
}

// StartSchedulers runs order-sync retries on syncSpec (cron syntax) and the
// pending expiry sweep every expiryEvery.
func StartSchedulers(jobs SettlementJobs, syncSpec string, expiryEvery time.Duration) (*Schedulers, error) {
	s := &Schedulers{
		orderSync: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
	}

	if _, err := s.orderSync.AddFunc(syncSpec, func() { retryOrderSync(jobs) }); err != nil {
		return nil, err
	}

	expiry, err := gocron.NewScheduler(gocron.WithLocation(time.FixedZone("ICT", 7*3600)))
	if err != nil {
		return nil, err
	}
	_, err = expiry.NewJob(
		gocron.DurationJob(expiryEvery),
		gocron.NewTask(func() { expirePending(jobs) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		expiry.Shutdown()
		return nil, err
	}
	s.expiry = expiry

	s.orderSync.Start()
	s.expiry.Start()
	log.Infof("Schedulers started (order sync %q, expiry every %s)", syncSpec, expiryEvery)
	return s, nil
}

func retryOrderSync(jobs SettlementJobs) {
	done, err := jobs.RetryOrderSync(context.Background())
	if err != nil {
		log.Errorw("order sync retry failed", "error", err)
		return
	}
	if done > 0 {
		log.Infow("order sync retried", "completed", done)
	}
}

func expirePending(jobs SettlementJobs) {
	if _, err := jobs.ExpirePending(context.Background()); err != nil {
		log.Errorw("expire pending payments failed", "error", err)
	}
}

// Stop waits for running jobs to finish.
func (s *Schedulers) Stop() {
	if s == nil {
		return
	}
	<-s.orderSync.Stop().Done()
	if err := s.expiry.Shutdown(); err != nil {
		log.Warnw("expiry scheduler shutdown", "error", err)
	}
	log.Info("Schedulers stopped")
}
