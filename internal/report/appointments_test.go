package report

import (
	"testing"

	"github.com/stretchr/testify/require"

	"funnelboard/internal/crm"
	"funnelboard/internal/models"
)

func TestBucketByDay(t *testing.T) {
	appts := []crm.Appointment{
		{StartTime: "2025-06-10T09:00:00Z", AppointmentStatus: "Confirmed"},
		{StartTime: "2025-06-10T14:00:00Z", Status: "showed"},
		{StartTime: "2025-06-11T09:00:00Z", AppointmentStatus: "cancelled"},
		{StartTime: "2025-06-11T10:00:00Z"},
		{StartTime: ""},
	}

	byDay := BucketByDay(appts)
	require.Len(t, byDay, 3)
	require.Equal(t, 2, byDay["2025-06-10"].Total)
	require.Equal(t, map[string]int{"confirmed": 1, "showed": 1}, byDay["2025-06-10"].Statuses)
	require.Equal(t, map[string]int{"cancelled": 1, "unknown": 1}, byDay["2025-06-11"].Statuses)
	require.Equal(t, 1, byDay["unknown"].Total)
}

// appointmentStatus wins over status when both are present.
func TestBucketByDayStatusPrecedence(t *testing.T) {
	byDay := BucketByDay([]crm.Appointment{
		{StartTime: "2025-06-10T09:00:00Z", AppointmentStatus: "noshow", Status: "confirmed"},
	})
	require.Equal(t, map[string]int{"noshow": 1}, byDay["2025-06-10"].Statuses)
}

func TestReduceAppointments(t *testing.T) {
	byDay := map[string]models.DayCounts{
		"2025-06-10": {Total: 4, Statuses: map[string]int{"confirmed": 2, "showed": 1, "cancelled": 1}},
		"2025-06-11": {Total: 4, Statuses: map[string]int{"noshow": 1, "confirmed": 1, "cancelled": 2}},
	}

	totals, total, ratios := ReduceAppointments(byDay)
	require.Equal(t, 8, total)
	require.Equal(t, map[string]int{"confirmed": 3, "showed": 1, "cancelled": 3, "noshow": 1}, totals)

	// confirmed+showed+noshow = 5 out of 8
	require.Equal(t, 62.5, ratios.ConfirmationRate)
	require.Equal(t, 37.5, ratios.CancellationRate)
	require.Equal(t, 20.0, ratios.NoShowRate)
	require.Equal(t, 20.0, ratios.ShowUpRate)
}

func TestReduceAppointmentsEmpty(t *testing.T) {
	totals, total, ratios := ReduceAppointments(nil)
	require.Empty(t, totals)
	require.Equal(t, 0, total)
	require.Equal(t, models.AppointmentRatios{}, ratios)
}
