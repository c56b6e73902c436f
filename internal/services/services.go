// internal/services/services.go
package services

import (
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/javajoker/storefront/internal/services")

// RestockScheduler accepts products for an asynchronous restock evaluation.
// Schedule must never block the caller.
type RestockScheduler interface {
	Schedule(productIDs ...uuid.UUID)
}

type noopScheduler struct{}

func (noopScheduler) Schedule(...uuid.UUID) {}

// sortedIDs returns ids deduplicated and sorted by their string form.
func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
