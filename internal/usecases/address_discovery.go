package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mramzani/barghalarm/internal/integration"
	"github.com/mramzani/barghalarm/internal/observability"
	"github.com/mramzani/barghalarm/internal/repository"
	"github.com/mramzani/barghalarm/internal/resolver"
)

// DiscoveryResult counts the address texts a discovery run looked at
type DiscoveryResult struct {
	Created int // new addresses stored
	Known   int // texts that already resolve
}

// AddressDiscovery stores the portal's address texts that no existing
// address resolves, so that later imports can match them
type AddressDiscovery struct {
	fetcher OutageFetcher
	refs    repository.ReferenceRepository
	alerter Alerter
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAddressDiscovery creates a new discovery use case
func NewAddressDiscovery(fetcher OutageFetcher, refs repository.ReferenceRepository, alerter Alerter, metrics *observability.Metrics, logger *zap.Logger) *AddressDiscovery {
	if alerter == nil {
		alerter = NopAlerter{}
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AddressDiscovery{fetcher: fetcher, refs: refs, alerter: alerter, metrics: metrics, logger: logger}
}

// Discover walks the areas one by one. Areas whose fetch fails are skipped;
// a missing search form aborts the run.
func (d *AddressDiscovery) Discover(ctx context.Context, dateFrom, dateTo string, areaCodes []string) (DiscoveryResult, error) {
	var result DiscoveryResult

	areas, err := d.refs.ListAreas(ctx, areaCodes)
	if err != nil {
		return result, fmt.Errorf("failed to list areas: %w", err)
	}

	res := resolver.New(d.refs)
	seen := make(map[int64]map[string]bool)

	for _, area := range areas {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		log := d.logger.With(zap.String("area", area.Code), zap.Int64("city_id", area.CityID))

		table, err := d.fetcher.FetchOutageRows(ctx, dateFrom, dateTo, area.Code)
		if errors.Is(err, integration.ErrFetchFailed) {
			log.Warn("failed to fetch area, skipping", zap.Error(err))
			d.metrics.AreaFetchFailures.Inc()
			continue
		}
		if err != nil {
			if errors.Is(err, integration.ErrFormNotFound) {
				msg := fmt.Sprintf("Address discovery %s..%s aborted: %v", dateFrom, dateTo, err)
				if alertErr := d.alerter.Alert(context.WithoutCancel(ctx), msg); alertErr != nil {
					log.Warn("failed to alert operator", zap.Error(alertErr))
				}
			}
			return result, fmt.Errorf("area %s: %w", area.Code, err)
		}

		if seen[area.CityID] == nil {
			seen[area.CityID] = make(map[string]bool)
		}
		for _, row := range dataRows(table) {
			if len(row) < minCells {
				continue
			}
			text := strings.TrimSpace(row[colAddress])
			if text == "" || seen[area.CityID][text] {
				continue
			}
			seen[area.CityID][text] = true

			_, _, err := res.Resolve(ctx, area.CityID, text)
			if err == nil {
				result.Known++
				continue
			}
			if !errors.Is(err, resolver.ErrAddressNotFound) {
				return result, fmt.Errorf("area %s: %w", area.Code, err)
			}

			id, created, err := d.refs.CreateAddress(ctx, area.CityID, text)
			if err != nil {
				return result, fmt.Errorf("area %s: %w", area.Code, err)
			}
			if !created {
				result.Known++
				continue
			}
			res.Forget(area.CityID)
			result.Created++
			d.metrics.DiscoveredAddresses.Inc()
			log.Info("discovered address", zap.Int64("address_id", id), zap.String("address", text))
		}
	}

	d.logger.Info("address discovery finished",
		zap.Int("created", result.Created),
		zap.Int("known", result.Known),
	)
	return result, nil
}
