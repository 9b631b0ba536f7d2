package ads

import (
	"strconv"
	"strings"

	"funnelboard/internal/models"
	"funnelboard/internal/utils"
)

// Number tolerates the Graph API's habit of serializing numerics as either
// JSON numbers or quoted strings. Anything unparsable reads as zero.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number(strings.Trim(string(b), `"`))
	return nil
}

func (n Number) Float64() float64 {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0
	}
	return f
}

func (n Number) Int() int {
	if v, err := strconv.Atoi(string(n)); err == nil {
		return v
	}
	return int(n.Float64())
}

// Ok reports whether the value parses as a number at all.
func (n Number) Ok() bool {
	_, err := strconv.ParseFloat(string(n), 64)
	return err == nil
}

type insightsResponse struct {
	Data []InsightRow `json:"data"`
}

type actionEntry struct {
	ActionType string `json:"action_type"`
	Value      Number `json:"value"`
}

type InsightRow struct {
	Spend             Number        `json:"spend"`
	CPM               Number        `json:"cpm"`
	CTR               Number        `json:"ctr"`
	Impressions       Number        `json:"impressions"`
	InlineLinkClicks  Number        `json:"inline_link_clicks"`
	Conversions       []actionEntry `json:"conversions"`
	Actions           []actionEntry `json:"actions"`
	Video30SecWatched []actionEntry `json:"video_30_sec_watched_actions"`
}

// Extract turns one insights row into an AdsMetrics record.
//
// Leads use a two-tier priority: conversions tagged schedule_total first,
// falling back to actions tagged lead only when that sum is zero. Link clicks
// prefer the direct inline_link_clicks field when nonzero. Malformed video
// entries are skipped rather than failing the extraction, and every derived
// rate is zero when its denominator is.
func Extract(row InsightRow) models.AdsMetrics {
	spend := row.Spend.Float64()
	impressions := row.Impressions.Int()

	leads := sumActions(row.Conversions, "schedule_total")
	if leads == 0 {
		leads = sumActions(row.Actions, "lead")
	}

	linkClicks := row.InlineLinkClicks.Int()
	if linkClicks == 0 {
		linkClicks = sumActions(row.Actions, "link_click")
	}

	video30s := 0
	for _, v := range row.Video30SecWatched {
		if !v.Value.Ok() {
			continue
		}
		video30s += v.Value.Int()
	}

	return models.AdsMetrics{
		Leads:             leads,
		Spend:             spend,
		CPM:               row.CPM.Float64(),
		CTR:               row.CTR.Float64(),
		CPR:               utils.Round2(utils.SafeDiv(spend, float64(leads))),
		Impressions:       impressions,
		InlineLinkClicks:  linkClicks,
		Video30SecWatched: video30s,
		HookRate:          utils.Pct(video30s, impressions),
		ConversionRate:    utils.Pct(leads, linkClicks),
	}
}

func sumActions(entries []actionEntry, actionType string) int {
	total := 0
	for _, e := range entries {
		if e.ActionType != actionType || !e.Value.Ok() {
			continue
		}
		total += e.Value.Int()
	}
	return total
}
