// internal/services/restock_queue.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront/internal/metrics"
)

// RestockEvaluator is the work a RestockQueue worker runs.
type RestockEvaluator interface {
	EvaluateAndGroup(ctx context.Context, productIDs []uuid.UUID) ([]PurchaseOrderRequest, error)
}

// RestockQueue decouples restock evaluation from the adjustment path.
// Schedule never blocks: when the buffer is full the id is dropped, and the
// next adjustment of that product schedules it again.
type RestockQueue struct {
	evaluator RestockEvaluator
	ids       chan uuid.UUID
	workers   int
	timeout   time.Duration

	quit      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewRestockQueue(evaluator RestockEvaluator, size, workers int, timeout time.Duration) *RestockQueue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &RestockQueue{
		evaluator: evaluator,
		ids:       make(chan uuid.UUID, size),
		workers:   workers,
		timeout:   timeout,
		quit:      make(chan struct{}),
	}
}

func (q *RestockQueue) Schedule(productIDs ...uuid.UUID) {
	for _, id := range productIDs {
		select {
		case q.ids <- id:
		default:
			metrics.RestockQueueDropped.Inc()
			logrus.WithField("product_id", id).Warn("Restock queue full, dropping evaluation")
		}
	}
}

// Start launches the workers. They run until ctx is done or Stop is called.
func (q *RestockQueue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.run(ctx)
		}
	})
}

// Stop drains what is already queued, then waits for the workers to exit.
func (q *RestockQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.quit)
	})
	q.wg.Wait()
}

func (q *RestockQueue) run(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.quit:
			if batch := q.collect(nil); len(batch) > 0 {
				q.evaluate(batch)
			}
			return
		case id := <-q.ids:
			q.evaluate(q.collect([]uuid.UUID{id}))
		}
	}
}

// collect takes whatever else is buffered without waiting, so a burst of
// adjustments turns into one evaluation.
func (q *RestockQueue) collect(batch []uuid.UUID) []uuid.UUID {
	for {
		select {
		case id := <-q.ids:
			batch = append(batch, id)
		default:
			return sortedIDs(batch)
		}
	}
}

func (q *RestockQueue) evaluate(ids []uuid.UUID) {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	requests, err := q.evaluator.EvaluateAndGroup(ctx, ids)
	if err != nil {
		logrus.WithError(err).WithField("products", len(ids)).Error("Restock evaluation failed")
		return
	}
	logrus.WithFields(logrus.Fields{
		"products": len(ids),
		"requests": len(requests),
	}).Debug("Restock evaluation completed")
}
