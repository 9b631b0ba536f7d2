package report

import (
	"context"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"funnelboard/internal/ads"
	"funnelboard/internal/crm"
	"funnelboard/internal/funnel"
	"funnelboard/internal/models"
)

// Query is one dashboard request: a date window plus the selected center
// names (empty means every configured center).
type Query struct {
	From    time.Time
	To      time.Time
	Centers []string
}

// Service owns the per-request aggregation pipeline: fan out to the CRM and
// ads APIs per center, aggregate, join, reduce. The center roster is injected
// once at construction; nothing here reaches for global config.
type Service struct {
	centers      []models.Center
	crm          *crm.Client
	ads          *ads.Client
	cache        *gocache.Cache
	batchTimeout time.Duration
	log          *slog.Logger
}

func New(centers []models.Center, crmClient *crm.Client, adsClient *ads.Client, cacheTTL, batchTimeout time.Duration, log *slog.Logger) *Service {
	return &Service{
		centers:      centers,
		crm:          crmClient,
		ads:          adsClient,
		cache:        gocache.New(cacheTTL, 2*cacheTTL),
		batchTimeout: batchTimeout,
		log:          log,
	}
}

// Funnel aggregates pipeline opportunities per center, filtered on the given
// date field. One result per selected center, in roster order; failures are
// per-center error variants, never a batch abort.
func (s *Service) Funnel(ctx context.Context, q Query, field funnel.DateField) []models.Result[models.CenterFunnel] {
	key := s.cacheKey("funnel:"+string(field), q)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.Result[models.CenterFunnel])
	}

	centers := s.selectCenters(q.Centers)
	start, end := funnel.Window(q.From, q.To)
	out := fanOut(ctx, s.batchTimeout, centers, func(ctx context.Context, c models.Center) models.Result[models.CenterFunnel] {
		return s.centerFunnel(ctx, c, start, end, field)
	})

	s.cache.SetDefault(key, out)
	return out
}

// Ads fetches Meta insights per center. Errors live inside each record's
// metrics, matching the dashboard's per-center error display.
func (s *Service) Ads(ctx context.Context, q Query) []models.CenterAds {
	key := s.cacheKey("ads", q)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.CenterAds)
	}

	centers := s.selectCenters(q.Centers)
	out := fanOut(ctx, s.batchTimeout, centers, func(ctx context.Context, c models.Center) models.CenterAds {
		return s.centerAds(ctx, c, q.From, q.To)
	})

	s.cache.SetDefault(key, out)
	return out
}

// Appointments buckets each center's calendar appointments by day and
// reduces them to running totals and ratios.
func (s *Service) Appointments(ctx context.Context, q Query) []models.Result[models.AppointmentSummary] {
	key := s.cacheKey("appointments", q)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.Result[models.AppointmentSummary])
	}

	centers := s.selectCenters(q.Centers)
	start, end := funnel.Window(q.From, q.To)
	out := fanOut(ctx, s.batchTimeout, centers, func(ctx context.Context, c models.Center) models.Result[models.AppointmentSummary] {
		return s.centerAppointments(ctx, c, start, end)
	})

	s.cache.SetDefault(key, out)
	return out
}

// Performance joins created-leads funnel metrics with ads metrics per center.
func (s *Service) Performance(ctx context.Context, q Query) []models.CombinedRecord {
	key := s.cacheKey("performance", q)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.CombinedRecord)
	}

	created := s.Funnel(ctx, q, funnel.FieldCreatedAt)
	adsRows := s.Ads(ctx, q)
	out := JoinPerformance(created, adsRows)

	s.cache.SetDefault(key, out)
	return out
}

// Summary reduces the combined records to fleet totals. ok is false when no
// center produced valid data.
func (s *Service) Summary(ctx context.Context, q Query) (models.Summary, bool) {
	return Summarize(s.Performance(ctx, q))
}

func (s *Service) centerFunnel(ctx context.Context, center models.Center, start, end time.Time, field funnel.DateField) models.Result[models.CenterFunnel] {
	fail := func(msg string) models.Result[models.CenterFunnel] {
		return models.Fail[models.CenterFunnel](models.ErrorInfo{
			CenterName: center.CenterName, City: center.City, Message: msg,
		})
	}

	pipelines, err := s.crm.Pipelines(ctx, center)
	if err != nil {
		return fail("failed to fetch pipelines: " + err.Error())
	}
	target, found := lo.Find(pipelines, func(p crm.Pipeline) bool { return p.Name == center.PipelineName })
	if !found {
		return fail("pipeline not found")
	}

	idToName := make(map[string]string, len(target.Stages))
	for _, st := range target.Stages {
		idToName[st.ID] = st.Name
	}

	opps := s.crm.Opportunities(ctx, center, target.ID)
	records := make([]funnel.Record, len(opps))
	for i, o := range opps {
		records[i] = funnel.Record{StageID: o.PipelineStageID, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt}
	}

	metrics, stats := funnel.Aggregate(records, idToName, field, start, end)
	return models.Ok(models.CenterFunnel{
		CenterName: center.CenterName,
		City:       center.City,
		Pipeline:   models.PipelineRef{ID: target.ID, Name: target.Name},
		StageStats: stats,
		Metrics:    metrics,
		Filter: models.Window{
			StartDate: start.Format(time.RFC3339),
			EndDate:   end.Format(time.RFC3339),
		},
	})
}

func (s *Service) centerAds(ctx context.Context, center models.Center, from, to time.Time) models.CenterAds {
	row := models.CenterAds{
		CenterName: center.CenterName,
		City:       center.City,
		BusinessID: center.BusinessID,
	}
	if center.BusinessID == "" || center.BusinessID == "None" {
		row.Metrics = models.AdsMetrics{Error: "No business ID configured"}
		return row
	}
	row.Metrics = s.ads.Insights(ctx, center.BusinessID, from, to)
	return row
}

func (s *Service) centerAppointments(ctx context.Context, center models.Center, from, to time.Time) models.Result[models.AppointmentSummary] {
	if center.CalendarID == "" && center.CalendarID2 == "" {
		return models.Fail[models.AppointmentSummary](models.ErrorInfo{
			CenterName: center.CenterName, City: center.City, Message: "no calendar configured",
		})
	}

	// Both calendars are fetched independently and concatenated without
	// dedup: an appointment present on both is counted twice, matching the
	// upstream dashboard's behavior. A single calendar failing is logged and
	// skipped; when every configured calendar fails (including on batch
	// deadline expiry) the center reports an error instead of posing as an
	// empty window.
	var all []crm.Appointment
	fetched := 0
	var lastErr error
	for _, cal := range []string{center.CalendarID, center.CalendarID2} {
		if cal == "" {
			continue
		}
		appts, err := s.crm.Appointments(ctx, center, cal, from, to)
		if err != nil {
			s.log.Warn("calendar fetch failed",
				slog.String("center", center.CenterName),
				slog.String("calendar", cal),
				slog.String("err", err.Error()))
			lastErr = err
			continue
		}
		fetched++
		all = append(all, appts...)
	}
	if fetched == 0 {
		return models.Fail[models.AppointmentSummary](models.ErrorInfo{
			CenterName: center.CenterName, City: center.City,
			Message: "all calendar fetches failed: " + lastErr.Error(),
		})
	}

	byDay := BucketByDay(all)
	totals, total, ratios := ReduceAppointments(byDay)
	return models.Ok(models.AppointmentSummary{
		CenterName:        center.CenterName,
		City:              center.City,
		LocationID:        center.LocationID,
		CalendarID:        center.CalendarID,
		CalendarID2:       center.CalendarID2,
		AppointmentsByDay: byDay,
		Totals:            totals,
		TotalAppointments: total,
		Ratios:            ratios,
	})
}

// selectCenters filters the roster by name, preserving roster order. Unknown
// names are ignored; an empty selection means all centers.
func (s *Service) selectCenters(names []string) []models.Center {
	if len(names) == 0 {
		return s.centers
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = struct{}{}
	}
	return lo.Filter(s.centers, func(c models.Center, _ int) bool {
		_, ok := want[c.CenterName]
		return ok
	})
}

func (s *Service) cacheKey(op string, q Query) string {
	names := q.Centers
	if len(names) == 0 {
		names = lo.Map(s.centers, func(c models.Center, _ int) string { return c.CenterName })
	}
	return op + "|" + q.From.Format("2006-01-02") + "|" + q.To.Format("2006-01-02") + "|" + strings.Join(names, ",")
}

// fanOut runs fn once per center under a shared batch deadline and joins all
// results. Each goroutine writes only its own slot, so output order always
// matches input order, not completion order.
func fanOut[T any](ctx context.Context, timeout time.Duration, centers []models.Center, fn func(context.Context, models.Center) T) []T {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := make([]T, len(centers))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range centers {
		i, c := i, c
		g.Go(func() error {
			out[i] = fn(ctx, c)
			return nil
		})
	}
	g.Wait() // workers never return errors; failures are data
	return out
}
