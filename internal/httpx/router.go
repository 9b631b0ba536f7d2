package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"funnelboard/internal/funnel"
	"funnelboard/internal/report"
	"funnelboard/internal/utils"
)

type router struct {
	svc *report.Service
}

func NewRouter(log *slog.Logger, svc *report.Service) http.Handler {
	rt := &router{svc: svc}

	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))
	mux.Use(utils.Metrics)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ready")) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.Get("/api/funnel", rt.funnel)
	mux.Get("/api/ads", rt.ads)
	mux.Get("/api/appointments", rt.appointments)
	mux.Get("/api/performance", rt.performance)
	mux.Get("/api/summary", rt.summary)

	return mux
}

func (rt *router) funnel(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	field, err := funnel.ParseDateField(r.URL.Query().Get("dateField"))
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	writeJSON(w, rt.svc.Funnel(r.Context(), q, field))
}

func (rt *router) ads(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	writeJSON(w, rt.svc.Ads(r.Context(), q))
}

func (rt *router) appointments(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	writeJSON(w, rt.svc.Appointments(r.Context(), q))
}

func (rt *router) performance(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	writeJSON(w, rt.svc.Performance(r.Context(), q))
}

func (rt *router) summary(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	sum, ok := rt.svc.Summary(r.Context(), q)
	if !ok {
		writeJSON(w, map[string]string{"error": "No valid data available"})
		return
	}
	writeJSON(w, sum)
}

// parseQuery reads from/to (YYYY-MM-DD, defaulting to the last 30 days) and
// the optional comma-separated centers filter.
func parseQuery(r *http.Request) (report.Query, error) {
	v := r.URL.Query()
	q := report.Query{
		From: time.Now().UTC().AddDate(0, 0, -30),
		To:   time.Now().UTC(),
	}
	if s := v.Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return q, err
		}
		q.From = t
	}
	if s := v.Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return q, err
		}
		q.To = t
	}
	if s := v.Get("centers"); s != "" {
		for _, name := range strings.Split(s, ",") {
			if name = strings.TrimSpace(name); name != "" {
				q.Centers = append(q.Centers, name)
			}
		}
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}
