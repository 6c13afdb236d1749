package amount

// Validator decides whether a number looks like a real-property tax bill or
// like something else on the page (most often the assessed value). The
// bounds are empirically chosen defaults, not tax policy; they are exposed
// so operators can tune them per portfolio.
//
// It is a filter, not a transformer: on rejection callers search for the
// next candidate amount, never coerce the value.
type Validator struct {
	// MinTax/MaxTax bound standalone amounts. Below MinTax is too small
	// to be a real-property bill; above MaxTax is more likely an
	// assessed value.
	MinTax float64
	MaxTax float64
	// MinRatio/MaxRatio bound the effective tax rate when the property's
	// value is independently known. Real rates fall roughly in
	// 0.1%..5%; anything outside means we probably grabbed the wrong
	// number.
	MinRatio float64
	MaxRatio float64
}

// NewValidator returns a Validator with the default bounds.
func NewValidator() Validator {
	return Validator{
		MinTax:   100,
		MaxTax:   100_000,
		MinRatio: 0.001,
		MaxRatio: 0.05,
	}
}

// Plausible reports whether amount falls inside the standalone tax bounds.
func (v Validator) Plausible(amount float64) bool {
	return amount >= v.MinTax && amount <= v.MaxTax
}

// PlausibleAgainst additionally checks the amount against a known property
// value. A propertyValue of zero (or negative) disables the ratio check.
// This is the guard that keeps a property's market value from being reported
// as its tax due.
func (v Validator) PlausibleAgainst(amount, propertyValue float64) bool {
	if !v.Plausible(amount) {
		return false
	}
	if propertyValue > 0 {
		rate := amount / propertyValue
		if rate < v.MinRatio || rate > v.MaxRatio {
			return false
		}
	}
	return true
}

// FilterPlausible keeps the amounts that pass PlausibleAgainst, preserving
// order. propertyValue may be zero.
func (v Validator) FilterPlausible(amounts []float64, propertyValue float64) []float64 {
	var kept []float64
	for _, a := range amounts {
		if v.PlausibleAgainst(a, propertyValue) {
			kept = append(kept, a)
		}
	}
	return kept
}

// FirstPlausible returns the first amount passing PlausibleAgainst.
func (v Validator) FirstPlausible(amounts []float64, propertyValue float64) (float64, bool) {
	for _, a := range amounts {
		if v.PlausibleAgainst(a, propertyValue) {
			return a, true
		}
	}
	return 0, false
}
