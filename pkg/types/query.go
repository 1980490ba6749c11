package types

// DataResidencyAny means the user accepts data stored in any region
const DataResidencyAny = "any"

// Constraints are the user's required-feature flags
type Constraints struct {
	RequireSSO        bool
	RequireAuditLog   bool
	DataResidency     string   // Region code such as "japan"; empty or "any" means no requirement
	RequiredLanguages []string // UI languages such as "ja", "en"
}

// RequiresDataResidency reports whether a specific storage region is required
func (c Constraints) RequiresDataResidency() bool {
	return c.DataResidency != "" && c.DataResidency != DataResidencyAny
}

// Query is the structured requirement input of one search.
// It is immutable for the duration of the search.
type Query struct {
	Category        Category
	Problems        []string
	ProblemFreeText string
	Constraints     Constraints
}
