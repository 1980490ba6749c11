package types

import "slices"

// CandidateID identifies a catalog product being ranked
type CandidateID string

// ContentID identifies a retrievable content unit (document chunk)
type ContentID string

// Category is a back-office business category
type Category string

const (
	CategoryAccounting  Category = "accounting"
	CategoryExpense     Category = "expense"
	CategoryAttendance  Category = "attendance"
	CategoryHR          Category = "hr"
	CategoryWorkflow    Category = "workflow"
	CategoryEContract   Category = "e_contract"
	CategoryInvoice     Category = "invoice"
	CategoryProcurement Category = "procurement"
)

// Categories lists every category in catalog order
var Categories = []Category{
	CategoryAccounting,
	CategoryExpense,
	CategoryAttendance,
	CategoryHR,
	CategoryWorkflow,
	CategoryEContract,
	CategoryInvoice,
	CategoryProcurement,
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// FactType names a structured product fact
type FactType string

const (
	FactSSO           FactType = "sso"
	FactAuditLog      FactType = "audit_log"
	FactDataResidency FactType = "data_residency"
	FactAPI           FactType = "api"
	FactMobile        FactType = "mobile"
	FactOffline       FactType = "offline"
	FactSupport       FactType = "support"
	FactCompliance    FactType = "compliance"
)

// FactValueSupported marks a boolean capability as present
const FactValueSupported = "supported"

// Confidence grades how well a fact is verified
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Fact is a verified statement about a candidate (e.g. sso=supported)
type Fact struct {
	Type        FactType
	Value       string
	EvidenceURL string
	Confidence  Confidence
}

// Candidate is an admissible catalog product with its externally attached
// category and facts. The ranking core treats it as read-only.
type Candidate struct {
	ID       CandidateID
	Name     string
	Vendor   string
	Category Category
	Facts    []Fact
}

// Fact returns the first fact of the given type
func (c *Candidate) Fact(factType FactType) (Fact, bool) {
	for _, f := range c.Facts {
		if f.Type == factType {
			return f, true
		}
	}
	return Fact{}, false
}

// Validate checks that the candidate can be ranked
func (c *Candidate) Validate() error {
	if c.ID == "" {
		return ErrInvalidCandidateID
	}
	return nil
}

// CandidateIDs returns the identifiers of candidates in order
func CandidateIDs(candidates []Candidate) []CandidateID {
	ids := make([]CandidateID, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ID
	}
	return ids
}
