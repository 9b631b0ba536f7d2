package report

import (
	"strings"

	"github.com/samber/lo"

	"funnelboard/internal/models"
	"funnelboard/internal/utils"
)

// joinKey normalizes a center name for joining: the CRM roster and the ads
// account list disagree on case and stray whitespace, and a mismatch must not
// silently drop a row.
func joinKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// JoinPerformance joins per-center created-leads funnel results with ads
// metrics by normalized center name. Unmatched ads rows leave the ads fields
// at zero; each side's error flag is carried independently so a failure on
// one never hides the other's data.
func JoinPerformance(created []models.Result[models.CenterFunnel], adsRows []models.CenterAds) []models.CombinedRecord {
	adsByName := make(map[string]models.CenterAds, len(adsRows))
	for _, a := range adsRows {
		adsByName[joinKey(a.CenterName)] = a
	}

	out := make([]models.CombinedRecord, 0, len(created))
	for _, res := range created {
		var rec models.CombinedRecord
		if res.Err != nil {
			rec.CenterName = res.Err.CenterName
			rec.City = res.Err.City
			rec.HasCreatedError = true
			rec.CreatedError = res.Err.Message
		} else {
			cf := res.Value
			rec.CenterName = cf.CenterName
			rec.City = cf.City
			rec.TotalCreated = cf.Metrics.TotalRDVPlanifies
			rec.Concretise = cf.Metrics.Details.Concretise
			rec.ConfirmationRate = cf.Metrics.ConfirmationRateNum
			rec.ConversionRate = cf.Metrics.ConversionRateNum
			rec.CancellationRate = cf.Metrics.CancellationRateNum
			rec.NoShowRate = cf.Metrics.NoShowRateNum
		}

		if a, ok := adsByName[joinKey(rec.CenterName)]; ok {
			m := a.Metrics
			rec.MetaLeads = m.Leads
			rec.Spend = m.Spend
			rec.CPM = m.CPM
			rec.CTR = m.CTR
			rec.CPR = m.CPR
			rec.HasMetaError = m.HasError()
			rec.MetaError = m.Error
		}

		rec.CPA = utils.Round2(utils.SafeDiv(rec.Spend, float64(rec.Concretise)))
		rec.CPL = utils.Round2(utils.SafeDiv(rec.Spend, float64(rec.MetaLeads)))
		rec.LeadToSaleRate = utils.Pct(rec.Concretise, rec.MetaLeads)
		rec.LeadToAppointmentRate = utils.Pct(rec.TotalCreated, rec.MetaLeads)

		out = append(out, rec)
	}
	return out
}

// Summarize reduces combined records to fleet-wide totals. Records carrying
// either error flag are excluded first, so a single bad center cannot
// corrupt the totals. Volume metrics are plain sums; cpm/ctr/cpr are
// spend-weighted averages (zero-spend records skipped from the weighting);
// the funnel rates are simple arithmetic means across centers. The asymmetry
// mirrors how the fleet is reviewed.
func Summarize(rows []models.CombinedRecord) (models.Summary, bool) {
	valid := lo.Filter(rows, func(r models.CombinedRecord, _ int) bool { return r.Valid() })
	if len(valid) == 0 {
		return models.Summary{}, false
	}

	totalSpend := lo.SumBy(valid, func(r models.CombinedRecord) float64 { return r.Spend })
	totalLeads := lo.SumBy(valid, func(r models.CombinedRecord) int { return r.MetaLeads })
	totalCreated := lo.SumBy(valid, func(r models.CombinedRecord) int { return r.TotalCreated })
	totalConcretise := lo.SumBy(valid, func(r models.CombinedRecord) int { return r.Concretise })

	spenders := lo.Filter(valid, func(r models.CombinedRecord, _ int) bool { return r.Spend > 0 })
	weightedCPM := lo.SumBy(spenders, func(r models.CombinedRecord) float64 { return r.CPM * r.Spend })
	weightedCTR := lo.SumBy(spenders, func(r models.CombinedRecord) float64 { return r.CTR * r.Spend })
	weightedCPR := lo.SumBy(spenders, func(r models.CombinedRecord) float64 { return r.CPR * r.Spend })

	n := float64(len(valid))
	meanConfirmation := lo.SumBy(valid, func(r models.CombinedRecord) float64 { return r.ConfirmationRate }) / n
	meanCancellation := lo.SumBy(valid, func(r models.CombinedRecord) float64 { return r.CancellationRate }) / n
	meanNoShow := lo.SumBy(valid, func(r models.CombinedRecord) float64 { return r.NoShowRate }) / n

	return models.Summary{
		TotalCenters:    len(valid),
		TotalSpend:      totalSpend,
		TotalMetaLeads:  totalLeads,
		TotalCreated:    totalCreated,
		TotalConcretise: totalConcretise,

		AvgCPA: utils.Round2(utils.SafeDiv(totalSpend, float64(totalConcretise))),
		AvgCPL: utils.Round2(utils.SafeDiv(totalSpend, float64(totalLeads))),
		AvgCPM: utils.Round2(utils.SafeDiv(weightedCPM, totalSpend)),
		AvgCTR: utils.Round2(utils.SafeDiv(weightedCTR, totalSpend)),
		AvgCPR: utils.Round2(utils.SafeDiv(weightedCPR, totalSpend)),

		OverallLeadToAppointment: utils.Pct(totalCreated, totalLeads),
		OverallLeadToSale:        utils.Pct(totalConcretise, totalLeads),
		OverallConversionRate:    utils.Pct(totalConcretise, totalCreated),
		OverallConfirmationRate:  utils.Round1(meanConfirmation),
		OverallCancellationRate:  utils.Round1(meanCancellation),
		OverallNoShowRate:        utils.Round1(meanNoShow),
	}, true
}
