// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mramzani/barghalarm/internal/calendar"
	"github.com/mramzani/barghalarm/internal/entities"
	"github.com/mramzani/barghalarm/internal/identity"
	"github.com/mramzani/barghalarm/internal/integration"
	"github.com/mramzani/barghalarm/internal/observability"
	"github.com/mramzani/barghalarm/internal/repository"
	"github.com/mramzani/barghalarm/internal/resolver"
)

// Columns of a portal results row
const (
	colDate    = 0
	colStart   = 1
	colEnd     = 2
	colAddress = 4
	minCells   = colAddress + 1
)

// OutageFetcher fetches the outage table of one area from the portal
type OutageFetcher interface {
	FetchOutageRows(ctx context.Context, dateFrom, dateTo, areaCode string) (integration.Table, error)
}

// Alerter notifies the operator about failures that need a human
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// NopAlerter drops every alert
type NopAlerter struct{}

func (NopAlerter) Alert(context.Context, string) error { return nil }

// ImportResult holds the aggregate counts of an import run
type ImportResult struct {
	Created int
	Updated int
	Skipped int
}

func (r *ImportResult) add(o ImportResult) {
	r.Created += o.Created
	r.Updated += o.Updated
	r.Skipped += o.Skipped
}

// Total is the number of rows the run looked at
func (r ImportResult) Total() int {
	return r.Created + r.Updated + r.Skipped
}

// BlackoutImporter pulls outage rows per area from the portal and stores
// them as deduplicated outage records
type BlackoutImporter struct {
	fetcher OutageFetcher
	outages repository.OutageRepository
	refs    repository.ReferenceRepository
	alerter Alerter
	metrics *observability.Metrics
	logger  *zap.Logger
	workers int
}

// NewBlackoutImporter creates a new importer. workers bounds how many areas
// are processed at once; values below 1 mean sequential processing.
func NewBlackoutImporter(
	fetcher OutageFetcher,
	outages repository.OutageRepository,
	refs repository.ReferenceRepository,
	alerter Alerter,
	metrics *observability.Metrics,
	logger *zap.Logger,
	workers int,
) *BlackoutImporter {
	if alerter == nil {
		alerter = NopAlerter{}
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	return &BlackoutImporter{
		fetcher: fetcher,
		outages: outages,
		refs:    refs,
		alerter: alerter,
		metrics: metrics,
		logger:  logger,
		workers: workers,
	}
}

// Import fetches the outages between the Jalali dates dateFrom and dateTo
// for every area, or only the areas whose codes are listed, and upserts
// them. A failed fetch skips the area; a missing search form, a storage
// error or cancellation ends the run with the counts gathered so far.
func (uc *BlackoutImporter) Import(ctx context.Context, dateFrom, dateTo string, areaCodes []string) (ImportResult, error) {
	start := time.Now()
	defer func() {
		uc.metrics.ImportDuration.Observe(time.Since(start).Seconds())
	}()

	uc.logger.Info("starting outage import",
		zap.String("date_from", dateFrom),
		zap.String("date_to", dateTo),
		zap.Strings("areas", areaCodes),
	)

	areas, err := uc.refs.ListAreas(ctx, areaCodes)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to list areas: %w", err)
	}
	if len(areas) == 0 {
		uc.logger.Warn("no areas to import")
		return ImportResult{}, nil
	}

	res := resolver.New(uc.refs)

	var (
		mu    sync.Mutex
		total ImportResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.workers)
	for _, area := range areas {
		area := area
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r, err := uc.importArea(gctx, res, area, dateFrom, dateTo)
			mu.Lock()
			total.add(r)
			mu.Unlock()
			return err
		})
	}
	err = g.Wait()

	if errors.Is(err, integration.ErrFormNotFound) {
		uc.logger.Error("portal search form not found, aborting import", zap.Error(err))
		msg := fmt.Sprintf("Outage import %s..%s aborted: %v", dateFrom, dateTo, err)
		if alertErr := uc.alerter.Alert(context.WithoutCancel(ctx), msg); alertErr != nil {
			uc.logger.Warn("failed to alert operator", zap.Error(alertErr))
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return total, err
	}

	uc.logger.Info("outage import finished",
		zap.Int("created", total.Created),
		zap.Int("updated", total.Updated),
		zap.Int("skipped", total.Skipped),
		zap.Duration("took", time.Since(start)),
	)
	return total, nil
}

func (uc *BlackoutImporter) importArea(ctx context.Context, res *resolver.Resolver, area entities.Area, dateFrom, dateTo string) (ImportResult, error) {
	var result ImportResult
	log := uc.logger.With(zap.String("area", area.Code), zap.Int64("city_id", area.CityID))

	table, err := uc.fetcher.FetchOutageRows(ctx, dateFrom, dateTo, area.Code)
	if err != nil {
		if errors.Is(err, integration.ErrFetchFailed) {
			log.Warn("failed to fetch area, skipping", zap.Error(err))
			uc.metrics.AreaFetchFailures.Inc()
			return result, nil
		}
		return result, fmt.Errorf("area %s: %w", area.Code, err)
	}
	log.Debug("fetched area", zap.Int("rows", len(table.Rows)))

	for _, row := range dataRows(table) {
		rec, ok, err := uc.buildRecord(ctx, res, area, row, log)
		if err != nil {
			return result, err
		}
		if !ok {
			result.Skipped++
			uc.metrics.Outages.WithLabelValues("skipped").Inc()
			continue
		}

		upserted, err := uc.outages.UpsertOutage(ctx, rec)
		if err != nil {
			return result, fmt.Errorf("area %s: %w", area.Code, err)
		}
		switch upserted {
		case repository.OutageCreated:
			result.Created++
		case repository.OutageUpdated:
			result.Updated++
		default:
			result.Skipped++
		}
		uc.metrics.Outages.WithLabelValues(resultLabel(upserted)).Inc()
	}

	log.Info("imported area",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// buildRecord turns a portal row into an outage record. ok is false when
// the row has to be skipped; err is only set for storage failures.
func (uc *BlackoutImporter) buildRecord(ctx context.Context, res *resolver.Resolver, area entities.Area, row []string, log *zap.Logger) (entities.OutageRecord, bool, error) {
	var rec entities.OutageRecord

	if len(row) < minCells {
		log.Debug("skipping short row", zap.Strings("row", row))
		return rec, false, nil
	}
	rawAddress := strings.TrimSpace(row[colAddress])
	if rawAddress == "" {
		log.Debug("skipping row without address", zap.Strings("row", row))
		return rec, false, nil
	}

	date, err := calendar.JalaliToGregorian(row[colDate])
	if err != nil {
		log.Warn("skipping row with bad date", zap.String("date", row[colDate]), zap.Error(err))
		return rec, false, nil
	}
	startTime, err := NormalizeTime(row[colStart])
	if err != nil {
		log.Warn("skipping row with bad start time", zap.String("start", row[colStart]), zap.Error(err))
		return rec, false, nil
	}
	endTime, err := NormalizeTime(row[colEnd])
	if err != nil {
		log.Warn("skipping row with bad end time", zap.String("end", row[colEnd]), zap.Error(err))
		return rec, false, nil
	}

	addressID, tier, err := res.Resolve(ctx, area.CityID, rawAddress)
	if err != nil && !errors.Is(err, resolver.ErrAddressNotFound) {
		return rec, false, fmt.Errorf("area %s: %w", area.Code, err)
	}
	uc.metrics.AddressResolutions.WithLabelValues(tier.String()).Inc()
	if err != nil {
		log.Debug("skipping row with unresolved address", zap.String("address", rawAddress))
		return rec, false, nil
	}

	rec = entities.OutageRecord{
		OutageNumber: identity.OutageNumber(area.ID, area.CityID, addressID, date, startTime),
		AreaID:       area.ID,
		CityID:       area.CityID,
		AddressID:    addressID,
		OutageDate:   date,
		StartTime:    startTime,
		EndTime:      endTime,
	}
	return rec, true, nil
}

// dataRows returns the table rows without any row that repeats the header
func dataRows(t integration.Table) [][]string {
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if len(t.Header) > 0 && equalCells(row, t.Header) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func equalCells(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func resultLabel(r repository.UpsertResult) string {
	if r == repository.OutageUnchanged {
		return "skipped"
	}
	return r.String()
}

var clockTimeRe = regexp.MustCompile(`^(\d{1,2}):(\d{1,2})(?::(\d{1,2}))?$`)

// NormalizeTime converts a portal time such as 8:00 or ۰۸:۳۰ into HH:MM:SS.
// An empty cell is an unknown time and yields "". 24:00 is kept as the end
// of the day.
func NormalizeTime(s string) (string, error) {
	s = strings.TrimSpace(calendar.ASCIIDigits(s))
	if s == "" {
		return "", nil
	}
	m := clockTimeRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("invalid time %q", s)
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	sec := 0
	if m[3] != "" {
		sec, _ = strconv.Atoi(m[3])
	}
	if minute > 59 || sec > 59 || h > 24 || (h == 24 && (minute != 0 || sec != 0)) {
		return "", fmt.Errorf("invalid time %q", s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, minute, sec), nil
}
