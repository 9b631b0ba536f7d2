package funnel

import (
	"fmt"
	"time"

	"funnelboard/internal/models"
	"funnelboard/internal/utils"
)

// DateField selects which opportunity timestamp the window filter applies to.
type DateField string

const (
	FieldCreatedAt DateField = "createdAt"
	FieldUpdatedAt DateField = "updatedAt"
)

// ParseDateField accepts the two wire values; "" defaults to updatedAt.
func ParseDateField(s string) (DateField, error) {
	switch s {
	case "", string(FieldUpdatedAt):
		return FieldUpdatedAt, nil
	case string(FieldCreatedAt):
		return FieldCreatedAt, nil
	}
	return "", fmt.Errorf("invalid dateField %q", s)
}

// Record is one opportunity as the aggregator sees it: the raw stage id plus
// the two timestamps, still unparsed.
type Record struct {
	StageID   string
	CreatedAt string
	UpdatedAt string
}

// StageCounts is a fixed-size counter over the closed canonical vocabulary.
// Unknown doubles as the overflow bucket for unrecognized stage names; the
// excluded stage is never tallied here.
type StageCounts struct {
	Annule      int
	Confirme    int
	PasVenu     int
	Present     int
	Concretise  int
	NonConfirme int
	NonQualifie int
	SansReponse int
	Unknown     int
}

func (c *StageCounts) Add(s Stage) {
	switch s {
	case StageAnnule:
		c.Annule++
	case StageConfirme:
		c.Confirme++
	case StagePasVenu:
		c.PasVenu++
	case StagePresent:
		c.Present++
	case StageConcretise:
		c.Concretise++
	case StageNonConfirme:
		c.NonConfirme++
	case StageNonQualifie:
		c.NonQualifie++
	case StageSansReponse:
		c.SansReponse++
	default:
		c.Unknown++
	}
}

// Total counts every tallied record, named buckets and overflow alike.
func (c StageCounts) Total() int {
	return c.Annule + c.Confirme + c.PasVenu + c.Present + c.Concretise +
		c.NonConfirme + c.NonQualifie + c.SansReponse + c.Unknown
}

// Stats returns the nonzero buckets keyed by canonical name, the shape the
// dashboard's stage breakdown expects.
func (c StageCounts) Stats() map[string]int {
	out := map[string]int{}
	for stage, n := range map[Stage]int{
		StageAnnule:      c.Annule,
		StageConfirme:    c.Confirme,
		StagePasVenu:     c.PasVenu,
		StagePresent:     c.Present,
		StageConcretise:  c.Concretise,
		StageNonConfirme: c.NonConfirme,
		StageNonQualifie: c.NonQualifie,
		StageSansReponse: c.SansReponse,
		StageUnknown:     c.Unknown,
	} {
		if n > 0 {
			out[stage.String()] = n
		}
	}
	return out
}

// Aggregate filters records to the [start, end] window on the selected date
// field, canonicalizes each record's stage via idToName, drops the excluded
// bucket entirely and derives the five funnel rates. Records whose timestamp
// is missing or unparsable are skipped.
func Aggregate(records []Record, idToName map[string]string, field DateField, start, end time.Time) (models.FunnelMetrics, map[string]int) {
	var counts StageCounts
	for _, r := range records {
		ts := r.UpdatedAt
		if field == FieldCreatedAt {
			ts = r.CreatedAt
		}
		if ts == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		if t.Before(start) || t.After(end) {
			continue
		}
		stage := Canonical(idToName[r.StageID])
		if stage == StageExcluded {
			continue
		}
		counts.Add(stage)
	}

	total := counts.Total()
	confirmes := counts.Confirme + counts.PasVenu + counts.Present + counts.Concretise
	showUp := counts.Present + counts.Concretise

	m := models.FunnelMetrics{
		TotalRDVPlanifies: total,
		RDVConfirmes:      confirmes,
		ShowUp:            showUp,

		TauxConfirmation: utils.PctStr(confirmes, total),
		TauxAnnulation:   utils.PctStr(counts.Annule, total),
		TauxNoShow:       utils.PctStr(counts.PasVenu, confirmes),
		TauxPresence:     utils.PctStr(showUp, confirmes),
		TauxConversion:   utils.PctStr(counts.Concretise, showUp),

		ConfirmationRateNum: utils.Pct(confirmes, total),
		CancellationRateNum: utils.Pct(counts.Annule, total),
		NoShowRateNum:       utils.Pct(counts.PasVenu, confirmes),
		PresenceRateNum:     utils.Pct(showUp, confirmes),
		ConversionRateNum:   utils.Pct(counts.Concretise, showUp),

		Details: models.FunnelDetails{
			Annule:      counts.Annule,
			Confirme:    counts.Confirme,
			PasVenu:     counts.PasVenu,
			Present:     counts.Present,
			Concretise:  counts.Concretise,
			NonConfirme: counts.NonConfirme,
		},
	}
	return m, counts.Stats()
}

// Window expands two calendar dates into the inclusive UTC aggregation
// window: start-of-day on from, end-of-day on to.
func Window(from, to time.Time) (time.Time, time.Time) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 999999999, time.UTC)
	return start, end
}
