package ads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"funnelboard/internal/models"
)

const insightFields = "ctr,cpm,spend,impressions,inline_link_clicks,conversions,actions,video_30_sec_watched_actions"

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches ad-account insights from the Meta Graph API. Failures never
// propagate as errors: they become a zero-valued metrics record carrying an
// error string, so one account's outage stays visible without breaking the
// rest of the batch.
type Client struct {
	httpc HTTPClient
	base  string
	token string
	log   *slog.Logger
}

func New(base, accessToken string, httpc HTTPClient, log *slog.Logger) *Client {
	return &Client{httpc: httpc, base: base, token: accessToken, log: log}
}

// Insights returns the account's aggregated metrics over [since, until]
// (ISO dates, inclusive).
func (c *Client) Insights(ctx context.Context, accountID string, since, until time.Time) models.AdsMetrics {
	q := url.Values{}
	q.Set("fields", insightFields)
	q.Set("time_range", fmt.Sprintf("{'since':'%s','until':'%s'}",
		since.Format("2006-01-02"), until.Format("2006-01-02")))
	q.Set("access_token", c.token)
	u := fmt.Sprintf("%s/v21.0/%s/insights?%s", c.base, url.PathEscape(accountID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errMetrics(err.Error())
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return errMetrics(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return errMetrics(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(b)))
	}

	var payload insightsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return errMetrics("malformed insights response: " + err.Error())
	}
	if len(payload.Data) == 0 {
		// An empty window is valid: the account simply ran nothing.
		return models.AdsMetrics{}
	}
	return Extract(payload.Data[0])
}

func errMetrics(msg string) models.AdsMetrics {
	return models.AdsMetrics{Error: msg}
}
