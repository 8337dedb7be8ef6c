// Package validation parses assembled bulk CSV content and classifies it into
// a structural failure, a row/column error report, or a validated record set.
// The engine is generic; concrete column layouts and rule sets are supplied
// per batch kind by a Schema.
package validation

import "github.com/wastetrack/bulk-engine/internal/domain"

// Rule checks one trimmed field value and returns an error reason, or "" when
// the value is acceptable.
type Rule func(value string) string

// Column declares one CSV column: its wire name and the rules applied to it.
// Column order in a Schema is the declared order used for error grouping.
type Column struct {
	Name  string
	Rules []Rule
}

// Violation is one cross-field failure attributed to a column.
type Violation struct {
	Column string
	Reason string
}

// CrossRule checks consistency across the fields of one row. Fields are
// indexed by declared column order and already trimmed.
type CrossRule func(fields []string) []Violation

// Schema describes a batch kind's CSV layout: header rows to skip, columns in
// declared order, cross-field rules, and the mapping from a valid row to a
// waste record.
type Schema struct {
	Kind       domain.BatchKind
	HeaderRows int
	Columns    []Column
	CrossRules []CrossRule
	Map        func(rowNumber int, fields []string) domain.WasteRecord
}

func (s Schema) columnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// SchemaFor returns the schema registered for a batch kind.
func SchemaFor(kind domain.BatchKind) (Schema, bool) {
	switch kind {
	case domain.KindAnnexVII:
		return AnnexVIISchema(), true
	case domain.KindUkWasteMovements:
		return UkWasteMovementsSchema(), true
	}
	return Schema{}, false
}
