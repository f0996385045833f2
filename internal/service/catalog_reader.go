package service

import (
	"context"

	"storefront/internal/gate"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ResolveMode selects which product statuses a resolve returns.
type ResolveMode int

const (
	// Orderable returns active products only.
	Orderable ResolveMode = iota
	// Browse also returns unavailable products, shown as out of stock.
	Browse
)

func (m ResolveMode) accepts(status string) bool {
	switch m {
	case Orderable:
		return status == models.ProductStatusActive
	case Browse:
		return status == models.ProductStatusActive || status == models.ProductStatusUnavailable
	}
	return false
}

// CatalogReader resolves product references against the catalog store.
type CatalogReader struct {
	products ProductRepository
	gate     *gate.Gate
	logger   *zap.Logger
}

// NewCatalogReader creates a new catalog reader
func NewCatalogReader(products ProductRepository, g *gate.Gate) *CatalogReader {
	return &CatalogReader{
		products: products,
		gate:     g,
		logger:   util.GetLogger(),
	}
}

// Resolve returns snapshots keyed by product id. References that do not exist
// or whose status the mode rejects are absent; the caller decides whether an
// absent key is a failure.
func (r *CatalogReader) Resolve(ctx context.Context, refs []string, mode ResolveMode) (map[string]models.ProductSnapshot, error) {
	ctx, span := util.StartSpan(ctx, "CatalogReader.Resolve", attribute.Int("refs", len(refs)))
	defer span.End()

	ids := uniqueRefs(refs)
	result := make(map[string]models.ProductSnapshot, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	if err := r.gate.Require(gate.CatalogStore); err != nil {
		return nil, err
	}

	products, err := r.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, util.RecordError(span, r.gate.Fail(gate.CatalogStore, "read catalog", err))
	}

	for _, p := range products {
		if !mode.accepts(p.Status) {
			continue
		}
		result[p.ID] = p
	}

	if len(result) < len(ids) {
		r.logger.Debug("Unresolved product references",
			zap.Int("requested", len(ids)),
			zap.Int("resolved", len(result)))
	}

	return result, nil
}

func uniqueRefs(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}
