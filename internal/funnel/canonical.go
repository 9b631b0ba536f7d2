package funnel

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Stage is the canonical pipeline-stage vocabulary. Every center names its
// stages differently ("Confirmé", "RDV Confirmé", "Confirmed", ...); all
// cross-center counting happens on these values.
type Stage int

const (
	StageUnknown Stage = iota
	StageAnnule
	StageConfirme
	StagePasVenu
	StagePresent
	StageConcretise
	StageNonConfirme
	StageNonQualifie
	StageSansReponse
	// StageExcluded is the database-reactivation bucket, removed from every
	// count including the total.
	StageExcluded
)

var stageNames = map[Stage]string{
	StageUnknown:     "unknown",
	StageAnnule:      "annule",
	StageConfirme:    "confirme",
	StagePasVenu:     "pas_venu",
	StagePresent:     "present",
	StageConcretise:  "concretise",
	StageNonConfirme: "non_confirme",
	StageNonQualifie: "non_qualifie",
	StageSansReponse: "sans_reponse",
	StageExcluded:    "database_reactivation",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "unknown"
}

// variants maps folded display names to their canonical stage. Keys must be
// in folded form (lower case, no diacritics, single spaces).
var variants = map[string]Stage{
	"annule":       StageAnnule,
	"annulee":      StageAnnule,
	"rdv annule":   StageAnnule,
	"cancelled":    StageAnnule,
	"canceled":     StageAnnule,
	"confirme":     StageConfirme,
	"rdv confirme": StageConfirme,
	"confirmed":    StageConfirme,
	"pas venu":     StagePasVenu,
	"no show":      StagePasVenu,
	"no-show":      StagePasVenu,
	"noshow":       StagePasVenu,
	"present":      StagePresent,
	"venu":         StagePresent,
	"showed":       StagePresent,
	"concretise":   StageConcretise,
	"vente":        StageConcretise,
	"gagne":        StageConcretise,
	"closed won":   StageConcretise,
	"non confirme": StageNonConfirme,
	"pas confirme": StageNonConfirme,
	"unconfirmed":  StageNonConfirme,
	"nouveau rdv":  StageNonConfirme,
	"non qualifie": StageNonQualifie,
	"disqualified": StageNonQualifie,
	"perdu":        StageNonQualifie,
	"sans reponse": StageSansReponse,
	"no response":  StageSansReponse,
	"injoignable":  StageSansReponse,

	"database reactivation":        StageExcluded,
	"reactivation base de donnees": StageExcluded,
	"reactivation bdd":             StageExcluded,
}

// Canonical maps a free-text stage display name to its canonical stage.
// Total: any unrecognized input, including "", is StageUnknown.
func Canonical(displayName string) Stage {
	if s, ok := variants[fold(displayName)]; ok {
		return s
	}
	return StageUnknown
}

// fold lower-cases, strips diacritics and collapses whitespace so that
// "Concrétisé " and "concretise" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
