package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	orderNumberPrefix = "ORD"
	sequenceKeyTTL    = 2 * time.Second
)

// OrderNumberGenerator produces "ORD-<unix millis>-<suffix>" numbers. The
// suffix comes from a shared per-millisecond counter when one is configured,
// and from an in-process counter tagged with a per-process node id otherwise,
// so numbers minted in the same millisecond stay distinct.
type OrderNumberGenerator struct {
	seq    SequenceSource
	now    func() time.Time
	node   string
	logger *zap.Logger

	mu         sync.Mutex
	lastMillis int64
	counter    int64
}

// NewOrderNumberGenerator creates a generator. seq may be nil.
func NewOrderNumberGenerator(seq SequenceSource) *OrderNumberGenerator {
	return &OrderNumberGenerator{
		seq:    seq,
		now:    time.Now,
		node:   strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:4]),
		logger: util.GetLogger(),
	}
}

// Next returns a new order number.
func (g *OrderNumberGenerator) Next(ctx context.Context) string {
	millis := g.now().UnixMilli()

	if g.seq != nil {
		n, err := g.seq.NextSequence(ctx, fmt.Sprintf("ordseq:%d", millis), sequenceKeyTTL)
		if err == nil {
			return fmt.Sprintf("%s-%d-%04d", orderNumberPrefix, millis, n)
		}
		g.logger.Warn("Order sequence unavailable, using local suffix", zap.Error(err))
	}

	return fmt.Sprintf("%s-%d-%s%04d", orderNumberPrefix, millis, g.node, g.localSuffix(millis))
}

func (g *OrderNumberGenerator) localSuffix(millis int64) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	// the counter only resets when the clock moves forward
	if millis > g.lastMillis {
		g.lastMillis = millis
		g.counter = 0
	}
	g.counter++
	return g.counter
}
