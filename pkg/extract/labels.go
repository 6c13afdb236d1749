package extract

// labelSet names the table labels a jurisdiction's portal uses. Amount
// labels are tried in order; the first one that yields a plausible figure
// wins.
type labelSet struct {
	amounts  []string
	values   []string
	owners   []string
	address  []string
	taxYears []string
	dueDates []string
}

var genericLabels = labelSet{
	amounts: []string{
		"total amount due", "current amount due", "amount due",
		"total due", "taxes due", "balance due", "total tax",
	},
	values: []string{
		"assessed value", "market value", "appraised value", "total value",
	},
	owners:   []string{"owner name", "owner"},
	address:  []string{"property address", "situs address", "situs"},
	taxYears: []string{"tax year"},
	dueDates: []string{"due date", "date due", "delinquent after"},
}

// Portal-specific overrides. Only the amount labels differ in practice;
// everything else falls through to the generic set.
var routineLabels = map[string][]string{
	// ACT tax sites show two totals; "current" is the open balance.
	"montgomery":  {"current amount due", "total amount due"},
	"aldine":      {"due amount", "total due"},
	"fort bend":   {"total amount due", "total due"},
	"goose creek": {"total due", "amount due"},
}

// labelsFor returns the label set for a routine, overlaying any
// portal-specific amount labels on the generic defaults.
func labelsFor(routine string) labelSet {
	ls := genericLabels
	if override, ok := routineLabels[routine]; ok {
		merged := make([]string, 0, len(override)+len(ls.amounts))
		merged = append(merged, override...)
		merged = append(merged, ls.amounts...)
		ls.amounts = merged
	}
	return ls
}
