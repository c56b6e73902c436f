// internal/services/bulk_order_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/javajoker/storefront/internal/apperrors"
	"github.com/javajoker/storefront/internal/database"
	"github.com/javajoker/storefront/internal/metrics"
)

const healthCheckTimeout = 2 * time.Second

// BulkOrderService runs many checkouts as one submission. Each entry commits
// or fails on its own; only an unreachable store stops the batch.
type BulkOrderService struct {
	db        *gorm.DB
	orders    *OrderService
	scheduler RestockScheduler
	workers   int
}

type BulkOrderEntry struct {
	// Ref identifies the entry in the result. Defaults to "#<position>".
	Ref   string             `json:"ref,omitempty"`
	Order CreateOrderRequest `json:"order"`
}

type BatchSuccess struct {
	Ref     string    `json:"ref"`
	OrderID uuid.UUID `json:"order_id"`
}

type BatchFailure struct {
	Ref       string         `json:"ref"`
	ErrorKind apperrors.Kind `json:"error_kind"`
	Message   string         `json:"message"`
	ProductID *uuid.UUID     `json:"product_id,omitempty"`
	Requested int            `json:"requested,omitempty"`
	Available int            `json:"available,omitempty"`
	err       error
}

// Unwrap exposes the underlying error. It is nil for entries that never ran.
func (f BatchFailure) Unwrap() error {
	return f.err
}

// BatchResult partitions the input. Both slices follow input order.
type BatchResult struct {
	Successful []BatchSuccess `json:"successful"`
	Failed     []BatchFailure `json:"failed"`
}

func (r *BatchResult) Total() int {
	return len(r.Successful) + len(r.Failed)
}

// Err returns a *PartialBatchFailure when any entry failed.
func (r *BatchResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &PartialBatchFailure{Failed: r.Failed, Total: r.Total()}
}

// PartialBatchFailure reports entries that failed while the rest of the batch
// committed.
type PartialBatchFailure struct {
	Failed []BatchFailure
	Total  int
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("%d of %d orders failed", len(e.Failed), e.Total)
}

// SystemicBatchError means the batch stopped because the store became
// unavailable. Result still partitions every entry.
type SystemicBatchError struct {
	Cause  error
	Result *BatchResult
}

func (e *SystemicBatchError) Error() string {
	return fmt.Sprintf("batch aborted: %v", e.Cause)
}

func (e *SystemicBatchError) Unwrap() error {
	return e.Cause
}

type entryOutcome struct {
	orderID uuid.UUID
	err     error
}

func NewBulkOrderService(db *gorm.DB, orders *OrderService, scheduler RestockScheduler, workers int) *BulkOrderService {
	if scheduler == nil {
		scheduler = noopScheduler{}
	}
	if workers < 1 {
		workers = 1
	}
	return &BulkOrderService{
		db:        db,
		orders:    orders,
		scheduler: scheduler,
		workers:   workers,
	}
}

// ProcessBatch places every entry through the order coordinator on a bounded
// worker pool. Per-order failures land in the result. Cancelling ctx stops
// entries that have not started; committed orders stay committed. A
// persistence failure with the store down aborts the batch and returns a
// *SystemicBatchError.
func (s *BulkOrderService) ProcessBatch(ctx context.Context, entries []BulkOrderEntry) (*BatchResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "BulkOrderService.ProcessBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(entries)))

	outcomes := make([]*entryOutcome, len(entries))
	touched := newIDSet()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range entries {
		if gctx.Err() != nil {
			break
		}

		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			p, err := s.orders.place(gctx, &entries[i].Order)
			if err == nil {
				outcomes[i] = &entryOutcome{orderID: p.order.ID}
				touched.add(p.touched...)
				return nil
			}

			outcomes[i] = &entryOutcome{err: err}
			if apperrors.IsPersistence(err) {
				if pingErr := s.ping(gctx); pingErr != nil {
					return fmt.Errorf("store unavailable: %w", pingErr)
				}
			}
			return nil
		})
	}

	waitErr := g.Wait()
	result := s.collect(entries, outcomes, waitErr != nil)

	if ids := touched.list(); len(ids) > 0 {
		s.scheduler.Schedule(ids...)
	}

	fields := logrus.Fields{
		"entries":    len(entries),
		"successful": len(result.Successful),
		"failed":     len(result.Failed),
		"duration":   time.Since(start).Milliseconds(),
	}
	span.SetAttributes(
		attribute.Int("batch.successful", len(result.Successful)),
		attribute.Int("batch.failed", len(result.Failed)),
	)

	if waitErr != nil {
		metrics.BatchDuration.WithLabelValues("aborted").Observe(time.Since(start).Seconds())
		span.RecordError(waitErr)
		logrus.WithFields(fields).WithError(waitErr).Error("Bulk order batch aborted")
		return result, &SystemicBatchError{Cause: waitErr, Result: result}
	}

	outcome := "complete"
	if len(result.Failed) > 0 {
		outcome = "partial"
	}
	metrics.BatchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	logrus.WithFields(fields).Info("Bulk order batch processed")
	return result, nil
}

func (s *BulkOrderService) collect(entries []BulkOrderEntry, outcomes []*entryOutcome, aborted bool) *BatchResult {
	result := &BatchResult{
		Successful: make([]BatchSuccess, 0, len(entries)),
		Failed:     make([]BatchFailure, 0),
	}

	for i, entry := range entries {
		ref := entry.Ref
		if ref == "" {
			ref = fmt.Sprintf("#%d", i+1)
		}

		outcome := outcomes[i]
		switch {
		case outcome == nil && aborted:
			result.Failed = append(result.Failed, BatchFailure{
				Ref:       ref,
				ErrorKind: apperrors.KindAborted,
				Message:   "not processed: batch aborted",
			})
		case outcome == nil:
			result.Failed = append(result.Failed, BatchFailure{
				Ref:       ref,
				ErrorKind: apperrors.KindCancelled,
				Message:   "not processed: batch cancelled",
			})
		case outcome.err != nil:
			result.Failed = append(result.Failed, failureFor(ref, outcome.err))
		default:
			result.Successful = append(result.Successful, BatchSuccess{Ref: ref, OrderID: outcome.orderID})
		}
	}

	return result
}

func (s *BulkOrderService) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), healthCheckTimeout)
	defer cancel()
	return database.Ping(ctx, s.db)
}

func failureFor(ref string, err error) BatchFailure {
	failure := BatchFailure{
		Ref:       ref,
		ErrorKind: apperrors.KindOf(err),
		Message:   err.Error(),
		err:       err,
	}

	var stockErr *apperrors.InsufficientStockError
	if errors.As(err, &stockErr) {
		productID := stockErr.ProductID
		failure.ProductID = &productID
		failure.Requested = stockErr.Requested
		failure.Available = stockErr.Available
	}
	return failure
}

type idSet struct {
	mu  sync.Mutex
	ids map[uuid.UUID]struct{}
}

func newIDSet() *idSet {
	return &idSet{ids: make(map[uuid.UUID]struct{})}
}

func (s *idSet) add(ids ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

func (s *idSet) list() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}
