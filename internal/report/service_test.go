package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"funnelboard/internal/ads"
	"funnelboard/internal/crm"
	"funnelboard/internal/funnel"
	"funnelboard/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testQuery(centers ...string) Query {
	from, _ := time.Parse("2006-01-02", "2025-06-01")
	to, _ := time.Parse("2006-01-02", "2025-06-30")
	return Query{From: from, To: to, Centers: centers}
}

func center(name, loc string) models.Center {
	return models.Center{
		CenterName:   name,
		City:         name,
		APIKey:       "key-" + loc,
		LocationID:   loc,
		PipelineName: "RDV",
	}
}

// crmHandler serves pipelines, opportunities and appointments for any
// location except the ones listed in failing, whose pipeline list 500s.
func crmHandler(pipelineCalls *atomic.Int64, failing ...string) http.Handler {
	failSet := make(map[string]bool, len(failing))
	for _, loc := range failing {
		failSet[loc] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc := r.Header.Get("Location-Id")
		switch r.URL.Path {
		case "/v1/pipelines/":
			if pipelineCalls != nil {
				pipelineCalls.Add(1)
			}
			if failSet[loc] {
				http.Error(w, "upstream down", http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `{"pipelines":[{"id":"p1","name":"RDV","stages":[{"id":"s1","name":"Confirmé"},{"id":"s2","name":"Concrétisé"}]}]}`)
		case "/v1/pipelines/p1/opportunities":
			fmt.Fprint(w, `{"opportunities":[
				{"id":"o1","pipelineStageId":"s1","createdAt":"2025-06-10T10:00:00Z","updatedAt":"2025-06-10T10:00:00Z"},
				{"id":"o2","pipelineStageId":"s2","createdAt":"2025-06-11T10:00:00Z","updatedAt":"2025-06-11T10:00:00Z"}
			],"meta":{}}`)
		case "/v1/appointments/":
			fmt.Fprint(w, `{"appointments":[{"id":"a1","startTime":"2025-06-10T09:00:00Z","appointmentStatus":"confirmed"}]}`)
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestService(t *testing.T, centers []models.Center, crmSrv *httptest.Server) *Service {
	t.Helper()
	adsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"spend":"100","actions":[{"action_type":"lead","value":"5"}]}]}`)
	}))
	t.Cleanup(adsSrv.Close)

	crmClient := crm.New(crmSrv.URL, crmSrv.Client(), testLogger())
	adsClient := ads.New(adsSrv.URL, "tok", adsSrv.Client(), testLogger())
	return New(centers, crmClient, adsClient, time.Minute, 10*time.Second, testLogger())
}

// One center's pipeline fetch failing yields exactly one error variant, in
// roster position, with every other center's result intact.
func TestFunnelPartialFailureIsolation(t *testing.T) {
	roster := []models.Center{
		center("Paris Centre", "loc-1"),
		center("Lyon Sud", "loc-bad"),
		center("Nice Est", "loc-2"),
	}
	srv := httptest.NewServer(crmHandler(nil, "loc-bad"))
	defer srv.Close()

	out := newTestService(t, roster, srv).Funnel(context.Background(), testQuery(), funnel.FieldCreatedAt)
	require.Len(t, out, 3)

	require.True(t, out[0].OK())
	require.Equal(t, "Paris Centre", out[0].Value.CenterName)
	require.Equal(t, 2, out[0].Value.Metrics.TotalRDVPlanifies)

	require.False(t, out[1].OK())
	require.Equal(t, "Lyon Sud", out[1].Err.CenterName)
	require.Contains(t, out[1].Err.Message, "failed to fetch pipelines")

	require.True(t, out[2].OK())
	require.Equal(t, "Nice Est", out[2].Value.CenterName)
}

func TestFunnelPipelineNotFound(t *testing.T) {
	c := center("Paris Centre", "loc-1")
	c.PipelineName = "No Such Pipeline"
	srv := httptest.NewServer(crmHandler(nil))
	defer srv.Close()

	out := newTestService(t, []models.Center{c}, srv).Funnel(context.Background(), testQuery(), funnel.FieldCreatedAt)
	require.Len(t, out, 1)
	require.False(t, out[0].OK())
	require.Equal(t, "pipeline not found", out[0].Err.Message)
}

// The same appointment served by both configured calendars is counted twice.
func TestAppointmentsTwoCalendarsDoubleCount(t *testing.T) {
	c := center("Paris Centre", "loc-1")
	c.CalendarID = "cal-a"
	c.CalendarID2 = "cal-b"
	srv := httptest.NewServer(crmHandler(nil))
	defer srv.Close()

	out := newTestService(t, []models.Center{c}, srv).Appointments(context.Background(), testQuery())
	require.Len(t, out, 1)
	require.True(t, out[0].OK())
	require.Equal(t, 2, out[0].Value.TotalAppointments)
	require.Equal(t, 2, out[0].Value.Totals["confirmed"])
}

// Every configured calendar failing must surface as an error variant, not as
// a valid summary with zero appointments.
func TestAppointmentsAllCalendarsFailed(t *testing.T) {
	c := center("Paris Centre", "loc-1")
	c.CalendarID = "cal-a"
	c.CalendarID2 = "cal-b"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	out := newTestService(t, []models.Center{c}, srv).Appointments(context.Background(), testQuery())
	require.Len(t, out, 1)
	require.False(t, out[0].OK())
	require.Contains(t, out[0].Err.Message, "all calendar fetches failed")
	require.Contains(t, out[0].Err.Message, "HTTP 500")
}

// One of two calendars failing still returns the surviving calendar's data.
func TestAppointmentsPartialCalendarFailure(t *testing.T) {
	c := center("Paris Centre", "loc-1")
	c.CalendarID = "cal-ok"
	c.CalendarID2 = "cal-bad"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("calendarId") == "cal-bad" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"appointments":[{"id":"a1","startTime":"2025-06-10T09:00:00Z","appointmentStatus":"confirmed"}]}`)
	}))
	defer srv.Close()

	out := newTestService(t, []models.Center{c}, srv).Appointments(context.Background(), testQuery())
	require.Len(t, out, 1)
	require.True(t, out[0].OK())
	require.Equal(t, 1, out[0].Value.TotalAppointments)
}

// An expired batch deadline fails every calendar fetch, so the center must
// report an error result rather than empty data.
func TestAppointmentsBatchDeadlineExpiry(t *testing.T) {
	c := center("Paris Centre", "loc-1")
	c.CalendarID = "cal-a"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{"appointments":[]}`)
	}))
	defer srv.Close()

	log := testLogger()
	svc := New([]models.Center{c}, crm.New(srv.URL, srv.Client(), log), nil, time.Minute, 10*time.Millisecond, log)
	out := svc.Appointments(context.Background(), testQuery())
	require.Len(t, out, 1)
	require.False(t, out[0].OK())
	require.Contains(t, out[0].Err.Message, "all calendar fetches failed")
}

func TestAppointmentsNoCalendarConfigured(t *testing.T) {
	srv := httptest.NewServer(crmHandler(nil))
	defer srv.Close()

	out := newTestService(t, []models.Center{center("Paris Centre", "loc-1")}, srv).Appointments(context.Background(), testQuery())
	require.Len(t, out, 1)
	require.False(t, out[0].OK())
	require.Equal(t, "no calendar configured", out[0].Err.Message)
}

func TestAdsMissingBusinessID(t *testing.T) {
	roster := []models.Center{center("Paris Centre", "loc-1")}
	srv := httptest.NewServer(crmHandler(nil))
	defer srv.Close()

	out := newTestService(t, roster, srv).Ads(context.Background(), testQuery())
	require.Len(t, out, 1)
	require.Equal(t, "No business ID configured", out[0].Metrics.Error)
	require.Equal(t, 0.0, out[0].Metrics.Spend)
}

// A repeated identical query is served from cache without touching upstream.
func TestFunnelResultsCached(t *testing.T) {
	var pipelineCalls atomic.Int64
	srv := httptest.NewServer(crmHandler(&pipelineCalls))
	defer srv.Close()

	svc := newTestService(t, []models.Center{center("Paris Centre", "loc-1")}, srv)
	q := testQuery()

	first := svc.Funnel(context.Background(), q, funnel.FieldCreatedAt)
	after := pipelineCalls.Load()
	second := svc.Funnel(context.Background(), q, funnel.FieldCreatedAt)

	require.Equal(t, after, pipelineCalls.Load())
	require.Equal(t, first, second)
}

// Selection preserves roster order regardless of the requested order, and
// unknown names are dropped.
func TestSelectCentersRosterOrder(t *testing.T) {
	roster := []models.Center{
		center("Paris Centre", "loc-1"),
		center("Lyon Sud", "loc-2"),
		center("Nice Est", "loc-3"),
	}
	svc := New(roster, nil, nil, time.Minute, time.Second, testLogger())

	got := svc.selectCenters([]string{"Nice Est", "Paris Centre", "Bordeaux"})
	require.Len(t, got, 2)
	require.Equal(t, "Paris Centre", got[0].CenterName)
	require.Equal(t, "Nice Est", got[1].CenterName)

	require.Len(t, svc.selectCenters(nil), 3)
}

func TestPerformanceJoinsBothSources(t *testing.T) {
	c := center("Paris Centre", "loc-1")
	c.BusinessID = "act_1"
	srv := httptest.NewServer(crmHandler(nil))
	defer srv.Close()

	out := newTestService(t, []models.Center{c}, srv).Performance(context.Background(), testQuery())
	require.Len(t, out, 1)
	require.Equal(t, 2, out[0].TotalCreated)
	require.Equal(t, 5, out[0].MetaLeads)
	require.Equal(t, 100.0, out[0].Spend)
	require.Equal(t, 20.0, out[0].CPL)
	require.False(t, out[0].HasMetaError)
	require.False(t, out[0].HasCreatedError)
}
