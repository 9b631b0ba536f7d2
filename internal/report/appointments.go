package report

import (
	"strings"

	"funnelboard/internal/crm"
	"funnelboard/internal/models"
	"funnelboard/internal/utils"
)

// dateKey truncates an ISO timestamp to its date portion; appointments with
// no start time land in the "unknown" bucket instead of being dropped.
func dateKey(iso string) string {
	if iso == "" {
		return "unknown"
	}
	return strings.SplitN(iso, "T", 2)[0]
}

// BucketByDay tallies appointments per calendar date and per status. Status
// comes from appointmentStatus, falling back to status, lower-cased,
// "unknown" when absent.
func BucketByDay(appts []crm.Appointment) map[string]models.DayCounts {
	out := make(map[string]models.DayCounts)
	for _, a := range appts {
		status := a.AppointmentStatus
		if status == "" {
			status = a.Status
		}
		if status == "" {
			status = "unknown"
		}
		status = strings.ToLower(status)

		day := out[dateKey(a.StartTime)]
		if day.Statuses == nil {
			day.Statuses = make(map[string]int)
		}
		day.Total++
		day.Statuses[status]++
		out[dateKey(a.StartTime)] = day
	}
	return out
}

// ReduceAppointments folds the per-day buckets into center-level totals and
// the four status ratios. The confirmation denominator is the number of
// appointments that reached a definite outcome: confirmed + showed + noshow.
func ReduceAppointments(byDay map[string]models.DayCounts) (map[string]int, int, models.AppointmentRatios) {
	totals := make(map[string]int)
	total := 0
	for _, day := range byDay {
		total += day.Total
		for status, n := range day.Statuses {
			totals[status] += n
		}
	}

	confirmedTotal := totals["confirmed"] + totals["showed"] + totals["noshow"]
	ratios := models.AppointmentRatios{
		ConfirmationRate: utils.Pct(confirmedTotal, total),
		CancellationRate: utils.Pct(totals["cancelled"], total),
		NoShowRate:       utils.Pct(totals["noshow"], confirmedTotal),
		ShowUpRate:       utils.Pct(totals["showed"], confirmedTotal),
	}
	return totals, total, ratios
}
