// Package notifier turns newly claimed first-blood records into channel
// notifications.
package notifier

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/webdc/firstblood/internal/models"
	"github.com/webdc/firstblood/pkg/logx"
)

// Source yields records that have not been delivered yet, claiming them on
// the server as a side effect.
type Source interface {
	ClaimNew(ctx context.Context) ([]models.FirstBlood, error)
}

// Dispatcher delivers one notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec models.FirstBlood) error
}

// dedupKey identifies a first blood independent of record content, so a
// re-delivered claim (e.g. after a failed server-side mark) is still
// recognized.
type dedupKey struct {
	EventID     int64
	ChallengeID int64
}

// Poller owns its source, dispatcher, and dedup set; nothing here is
// package-global. Ticks are sequential: the cron chain skips a tick while
// the previous one is still running.
type Poller struct {
	src      Source
	disp     Dispatcher
	interval time.Duration
	timeout  time.Duration
	log      logx.Logger

	seen map[dedupKey]struct{}
}

// New builds a poller. interval defaults to 10s and timeout bounds each
// tick's claim-and-dispatch work.
func New(src Source, disp Dispatcher, interval, timeout time.Duration, log logx.Logger) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = interval
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{
		src:      src,
		disp:     disp,
		interval: interval,
		timeout:  timeout,
		log:      log,
		seen:     make(map[dedupKey]struct{}),
	}
}

// Run ticks until ctx is cancelled, then waits for an in-flight tick to
// finish.
func (p *Poller) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{p.log})))
	_, err := c.AddFunc("@every "+p.interval.String(), func() { p.tick(ctx) })
	if err != nil {
		return err
	}
	c.Start()
	p.log.Info("poller started", logx.Duration("interval", p.interval))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// tick claims new records and dispatches one notification per unseen
// record. A failed claim skips the whole tick; a failed dispatch leaves the
// record out of the dedup set so the next delivery attempt retries it
// (at-least-once).
func (p *Poller) tick(ctx context.Context) {
	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	recs, err := p.src.ClaimNew(tctx)
	if err != nil {
		p.log.Warn("claim failed, skipping tick", logx.Err(err))
		return
	}

	for _, rec := range recs {
		key := dedupKey{EventID: rec.EventID, ChallengeID: rec.ChallengeID}
		if _, ok := p.seen[key]; ok {
			continue
		}
		if err := p.disp.Dispatch(tctx, rec); err != nil {
			p.log.Error("dispatch failed",
				logx.Err(err),
				logx.Int64("event_id", rec.EventID),
				logx.Int64("challenge_id", rec.ChallengeID),
			)
			continue
		}
		p.seen[key] = struct{}{}
		p.log.Info("first blood notified",
			logx.Int64("event_id", rec.EventID),
			logx.Int64("challenge_id", rec.ChallengeID),
			logx.String("username", rec.Username),
		)
	}
}

// cronLogger adapts logx to cron's logging interface.
type cronLogger struct {
	log logx.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, logx.Any("details", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, logx.Err(err), logx.Any("details", keysAndValues))
}
