package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/localsquares/localsquares/internal/model"
	"github.com/localsquares/localsquares/internal/repository"
	"github.com/localsquares/localsquares/pkg/clock"
	"github.com/localsquares/localsquares/pkg/logger"
)

type auditKind int

const (
	auditImpression auditKind = iota + 1
	auditClick
)

type auditJob struct {
	kind      auditKind
	listingID string
	boardID   string
	sessionID string
	clickType string
}

// ImpressionAuditor writes analytics rows off the request path. The exposure
// counter is the load-bearing write and happens synchronously; audit rows are
// best-effort and dropped with a warning when the queue is full.
type ImpressionAuditor struct {
	analytics repository.AnalyticsRepository
	clock     clock.Clock
	ch        chan auditJob
}

func NewImpressionAuditor(analytics repository.AnalyticsRepository, clk clock.Clock, queueSize int) *ImpressionAuditor {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &ImpressionAuditor{analytics: analytics, clock: clk, ch: make(chan auditJob, queueSize)}
}

// Start launches worker goroutines and returns a stop func that drains the
// queue briefly before returning.
func (a *ImpressionAuditor) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case job := <-a.ch:
					a.write(job)
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		timeout := time.After(2 * time.Second)
		for {
			select {
			case <-timeout:
				return nil
			default:
				if len(a.ch) == 0 {
					return nil
				}
				time.Sleep(50 * time.Millisecond)
			}
		}
	}
}

func (a *ImpressionAuditor) write(job auditJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var err error
	switch job.kind {
	case auditImpression:
		err = a.analytics.InsertImpression(ctx, &model.Impression{
			ListingID: job.listingID,
			BoardID:   job.boardID,
			SessionID: job.sessionID,
			CreatedAt: a.clock.Now(),
		})
	case auditClick:
		err = a.analytics.InsertClick(ctx, &model.Click{
			ListingID: job.listingID,
			BoardID:   job.boardID,
			ClickType: job.clickType,
			SessionID: job.sessionID,
			CreatedAt: a.clock.Now(),
		})
	}
	if err != nil {
		logger.Warn("audit write failed", zap.String("listing", job.listingID), zap.Error(err))
	}
}

func (a *ImpressionAuditor) EnqueueImpression(listingID, boardID, sessionID string) {
	select {
	case a.ch <- auditJob{kind: auditImpression, listingID: listingID, boardID: boardID, sessionID: sessionID}:
	default:
		logger.Warn("audit queue full, drop impression", zap.String("listing", listingID))
	}
}

func (a *ImpressionAuditor) EnqueueClick(listingID, boardID, sessionID, clickType string) {
	select {
	case a.ch <- auditJob{kind: auditClick, listingID: listingID, boardID: boardID, sessionID: sessionID, clickType: clickType}:
	default:
		logger.Warn("audit queue full, drop click", zap.String("listing", listingID))
	}
}

// QueueLen returns the current queue length (sampled).
func (a *ImpressionAuditor) QueueLen() int { return len(a.ch) }
