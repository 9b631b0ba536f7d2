package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"funnelboard/internal/models"
)

const (
	pageSize = 100
	// Upstream pagination metadata is not trusted blindly: a cursor that
	// stops advancing or an absurd page count ends the fetch with whatever
	// was collected so far.
	maxPages = 1000
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the HighLevel REST API. Every fetch is at-most-once and
// best-effort: no retries, failures truncate rather than discard.
type Client struct {
	httpc HTTPClient
	base  string
	log   *slog.Logger
}

func New(base string, httpc HTTPClient, log *slog.Logger) *Client {
	return &Client{httpc: httpc, base: base, log: log}
}

type PipelineStage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Pipeline struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Stages []PipelineStage `json:"stages"`
}

type Opportunity struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PipelineStageID string `json:"pipelineStageId"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

type Appointment struct {
	ID                string `json:"id"`
	CalendarID        string `json:"calendarId"`
	StartTime         string `json:"startTime"`
	AppointmentStatus string `json:"appointmentStatus"`
	Status            string `json:"status"`
}

type pageMeta struct {
	NextPageURL  string      `json:"nextPageUrl"`
	StartAfterID string      `json:"startAfterId"`
	StartAfter   json.Number `json:"startAfter"`
}

type opportunityPage struct {
	Opportunities []Opportunity `json:"opportunities"`
	Meta          pageMeta      `json:"meta"`
}

// Pipelines lists the location's pipelines with their stage id/name pairs.
func (c *Client) Pipelines(ctx context.Context, center models.Center) ([]Pipeline, error) {
	var resp struct {
		Pipelines []Pipeline `json:"pipelines"`
	}
	if err := c.getJSON(ctx, c.base+"/v1/pipelines/", center, &resp); err != nil {
		return nil, err
	}
	return resp.Pipelines, nil
}

// Opportunities pulls every page of a pipeline's opportunities. Termination:
// the response omits nextPageUrl, a non-200 status, a transport error, or a
// cursor that fails to advance. In every case the items collected so far are
// returned rather than discarded.
func (c *Client) Opportunities(ctx context.Context, center models.Center, pipelineID string) []Opportunity {
	var items []Opportunity
	var afterID, after string

	for page := 0; page < maxPages; page++ {
		u := fmt.Sprintf("%s/v1/pipelines/%s/opportunities?limit=%d", c.base, url.PathEscape(pipelineID), pageSize)
		if afterID != "" && after != "" {
			u += "&startAfterId=" + url.QueryEscape(afterID) + "&startAfter=" + url.QueryEscape(after)
		}

		var resp opportunityPage
		if err := c.getJSON(ctx, u, center, &resp); err != nil {
			c.log.Warn("opportunity fetch truncated",
				slog.String("center", center.CenterName),
				slog.Int("page", page),
				slog.String("err", err.Error()))
			break
		}
		items = append(items, resp.Opportunities...)

		if resp.Meta.NextPageURL == "" {
			break
		}
		nextID, next := resp.Meta.StartAfterID, resp.Meta.StartAfter.String()
		if nextID == afterID && next == after {
			c.log.Warn("pagination cursor did not advance",
				slog.String("center", center.CenterName),
				slog.Int("page", page))
			break
		}
		afterID, after = nextID, next
	}
	return items
}

// Appointments lists one calendar's appointments in [from, to], expressed as
// epoch milliseconds on the wire. A failed calendar yields an empty list.
func (c *Client) Appointments(ctx context.Context, center models.Center, calendarID string, from, to time.Time) ([]Appointment, error) {
	q := url.Values{}
	q.Set("startDate", strconv.FormatInt(from.UTC().UnixMilli(), 10))
	q.Set("endDate", strconv.FormatInt(to.UTC().UnixMilli(), 10))
	q.Set("calendarId", calendarID)
	q.Set("includeAll", "true")

	var resp struct {
		Appointments []Appointment `json:"appointments"`
	}
	if err := c.getJSON(ctx, c.base+"/v1/appointments/?"+q.Encode(), center, &resp); err != nil {
		return nil, err
	}
	return resp.Appointments, nil
}

func (c *Client) getJSON(ctx context.Context, u string, center models.Center, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+center.APIKey)
	req.Header.Set("Location-Id", center.LocationID)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
