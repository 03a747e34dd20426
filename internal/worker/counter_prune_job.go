package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// CounterPruner deletes order-number counters that are no longer in use.
type CounterPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NewScheduler returns a cron scheduler that prunes daily order counters
// older than retention on spec. The caller starts and stops it.
func NewScheduler(counters CounterPruner, spec string, retention time.Duration) (*cron.Cron, error) {
	sched := cron.New(cron.WithParser(cronParser))
	_, err := sched.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Counter prune job panicked")
			}
		}()
		pruneCounters(counters, retention, time.Now())
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

func pruneCounters(counters CounterPruner, retention time.Duration, now time.Time) int64 {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := counters.Prune(ctx, now.Add(-retention))
	if err != nil {
		log.Error().Err(err).Msg("Failed to prune order counters")
		return 0
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Msg("Pruned order counters")
	}
	return n
}
