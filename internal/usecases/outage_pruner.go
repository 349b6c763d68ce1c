package usecases

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mramzani/barghalarm/internal/calendar"
	"github.com/mramzani/barghalarm/internal/observability"
	"github.com/mramzani/barghalarm/internal/repository"
)

// OutagePruner removes outage records of past days
type OutagePruner struct {
	outages repository.OutageRepository
	clock   clockwork.Clock
	loc     *time.Location
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewOutagePruner creates a pruner that judges "today" in loc
func NewOutagePruner(outages repository.OutageRepository, clock clockwork.Clock, loc *time.Location, metrics *observability.Metrics, logger *zap.Logger) *OutagePruner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutagePruner{outages: outages, clock: clock, loc: loc, metrics: metrics, logger: logger}
}

// Prune deletes every outage dated before today and returns the count
func (p *OutagePruner) Prune(ctx context.Context) (int64, error) {
	today := calendar.GregorianToday(p.clock, p.loc)

	n, err := p.outages.DeleteOutagesBefore(ctx, today)
	if err != nil {
		return 0, err
	}
	p.metrics.PrunedOutages.Add(float64(n))
	p.logger.Info("pruned past outages", zap.String("before", today), zap.Int64("deleted", n))
	return n, nil
}
