package models

import "encoding/json"

// Center is one business location, loaded once from the roster file and
// never mutated.
type Center struct {
	CenterName   string `json:"centerName"`
	City         string `json:"city"`
	APIKey       string `json:"apiKey"`
	LocationID   string `json:"locationId"`
	PipelineName string `json:"pipelineName"`
	BusinessID   string `json:"businessId,omitempty"`
	CalendarID   string `json:"calendarId,omitempty"`
	CalendarID2  string `json:"calendarId2,omitempty"`
}

// ErrorInfo is the error-as-data record attached to a failed per-center unit
// of work. One center failing never aborts the batch.
type ErrorInfo struct {
	CenterName string `json:"centerName"`
	City       string `json:"city"`
	Message    string `json:"error"`
}

// Result is the tagged union returned by every per-center aggregation:
// either a value or an ErrorInfo, never both.
type Result[T any] struct {
	Value T
	Err   *ErrorInfo
}

func Ok[T any](v T) Result[T] { return Result[T]{Value: v} }
func Fail[T any](e ErrorInfo) Result[T] { return Result[T]{Err: &e} }

func (r Result[T]) OK() bool { return r.Err == nil }

func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(r.Err)
	}
	return json.Marshal(r.Value)
}

type PipelineRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Window struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// FunnelDetails are the per-stage counts after removing the database
// reactivation bucket.
type FunnelDetails struct {
	Annule      int `json:"annule"`
	Confirme    int `json:"confirme"`
	PasVenu     int `json:"pasVenu"`
	Present     int `json:"present"`
	Concretise  int `json:"concretise"`
	NonConfirme int `json:"nonConfirme"`
}

// FunnelMetrics carries both the numeric rates (for color coding and
// downstream joins) and the formatted strings shown in dashboard tables.
type FunnelMetrics struct {
	TotalRDVPlanifies int    `json:"totalRDVPlanifies"`
	RDVConfirmes      int    `json:"rdvConfirmes"`
	ShowUp            int    `json:"showUp"`
	TauxConfirmation  string `json:"tauxConfirmation"`
	TauxAnnulation    string `json:"tauxAnnulation"`
	TauxNoShow        string `json:"tauxNoShow"`
	TauxPresence      string `json:"tauxPresence"`
	TauxConversion    string `json:"tauxConversion"`

	ConfirmationRateNum float64 `json:"confirmationRateNum"`
	CancellationRateNum float64 `json:"cancellationRateNum"`
	NoShowRateNum       float64 `json:"noShowRateNum"`
	PresenceRateNum     float64 `json:"presenceRateNum"`
	ConversionRateNum   float64 `json:"conversionRateNum"`

	Details FunnelDetails `json:"details"`
}

// CenterFunnel is the per-center funnel aggregation result.
type CenterFunnel struct {
	CenterName string         `json:"centerName"`
	City       string         `json:"city"`
	Pipeline   PipelineRef    `json:"pipeline"`
	StageStats map[string]int `json:"stageStats"`
	Metrics    FunnelMetrics  `json:"metrics"`
	Filter     Window         `json:"filter"`
}

// AdsMetrics is one ads account's insight window. Any rate whose denominator
// is zero or whose source field is absent is 0, never an error value.
type AdsMetrics struct {
	Leads             int     `json:"leads"`
	Spend             float64 `json:"spend"`
	CPM               float64 `json:"cpm"`
	CTR               float64 `json:"ctr"`
	CPR               float64 `json:"cpr"`
	Impressions       int     `json:"impressions"`
	InlineLinkClicks  int     `json:"inline_link_clicks"`
	Video30SecWatched int     `json:"video_30_sec_watched"`
	HookRate          float64 `json:"hook_rate"`
	ConversionRate    float64 `json:"conversion_rate"`
	Error             string  `json:"error,omitempty"`
}

func (m AdsMetrics) HasError() bool { return m.Error != "" }

type CenterAds struct {
	CenterName string     `json:"centerName"`
	City       string     `json:"city"`
	BusinessID string     `json:"businessId"`
	Metrics    AdsMetrics `json:"metrics"`
}

// DayCounts is one calendar day's appointment tally.
type DayCounts struct {
	Total    int            `json:"total"`
	Statuses map[string]int `json:"statuses"`
}

type AppointmentRatios struct {
	ConfirmationRate float64 `json:"confirmationRate"`
	CancellationRate float64 `json:"cancellationRate"`
	NoShowRate       float64 `json:"noShowRate"`
	ShowUpRate       float64 `json:"showUpRate"`
}

type AppointmentSummary struct {
	CenterName        string               `json:"centerName"`
	City              string               `json:"city"`
	LocationID        string               `json:"locationId"`
	CalendarID        string               `json:"calendarId"`
	CalendarID2       string               `json:"calendarId2,omitempty"`
	AppointmentsByDay map[string]DayCounts `json:"appointmentsByDay"`
	Totals            map[string]int       `json:"totals"`
	TotalAppointments int                  `json:"totalAppointments"`
	Ratios            AppointmentRatios    `json:"ratios"`
}

// CombinedRecord joins one center's created-leads funnel with its ads spend.
// The two error flags are independent so a partial failure on one side does
// not suppress the other side's data.
type CombinedRecord struct {
	CenterName string `json:"centerName"`
	City       string `json:"city"`

	MetaLeads int     `json:"meta_leads"`
	Spend     float64 `json:"spend"`
	CPM       float64 `json:"cpm"`
	CTR       float64 `json:"ctr"`
	CPR       float64 `json:"cpr"`

	TotalCreated     int     `json:"total_created"`
	Concretise       int     `json:"concretise"`
	ConfirmationRate float64 `json:"confirmation_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
	CancellationRate float64 `json:"cancellation_rate"`
	NoShowRate       float64 `json:"no_show_rate"`

	CPA                   float64 `json:"cpa"`
	CPL                   float64 `json:"cpl"`
	LeadToSaleRate        float64 `json:"lead_to_sale_rate"`
	LeadToAppointmentRate float64 `json:"lead_to_appointment_rate"`

	HasMetaError    bool   `json:"has_meta_error"`
	HasCreatedError bool   `json:"has_created_error"`
	MetaError       string `json:"meta_error,omitempty"`
	CreatedError    string `json:"created_error,omitempty"`
}

func (r CombinedRecord) Valid() bool { return !r.HasMetaError && !r.HasCreatedError }

// Summary is the fleet-wide reduction over valid combined records.
type Summary struct {
	TotalCenters    int     `json:"total_centers"`
	TotalSpend      float64 `json:"total_spend"`
	TotalMetaLeads  int     `json:"total_meta_leads"`
	TotalCreated    int     `json:"total_created"`
	TotalConcretise int     `json:"total_concretise"`

	AvgCPA float64 `json:"avg_cpa"`
	AvgCPL float64 `json:"avg_cpl"`
	AvgCPM float64 `json:"avg_cpm"`
	AvgCTR float64 `json:"avg_ctr"`
	AvgCPR float64 `json:"avg_cpr"`

	OverallLeadToAppointment float64 `json:"overall_lead_to_appointment"`
	OverallLeadToSale        float64 `json:"overall_lead_to_sale"`
	OverallConversionRate    float64 `json:"overall_conversion_rate"`
	OverallConfirmationRate  float64 `json:"overall_confirmation_rate"`
	OverallCancellationRate  float64 `json:"overall_cancellation_rate"`
	OverallNoShowRate        float64 `json:"overall_no_show_rate"`
}
