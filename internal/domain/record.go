package domain

import (
	"fmt"
	"strings"
)

// QuantityType discriminates measured from estimated waste quantities.
type QuantityType string

const (
	QuantityActual   QuantityType = "ActualData"
	QuantityEstimate QuantityType = "EstimateData"
)

func (q QuantityType) String() string { return string(q) }

func (q QuantityType) IsValid() bool {
	return q == QuantityActual || q == QuantityEstimate
}

func ParseQuantityTypeFromString(s string) (QuantityType, error) {
	q := QuantityType(strings.TrimSpace(s))
	if !q.IsValid() {
		return "", fmt.Errorf("%w: invalid quantity type %q", ErrValidation, s)
	}
	return q, nil
}

// DateType discriminates confirmed from estimated collection dates.
type DateType string

const (
	DateActual   DateType = "ActualDate"
	DateEstimate DateType = "EstimateDate"
)

func (d DateType) String() string { return string(d) }

func (d DateType) IsValid() bool {
	return d == DateActual || d == DateEstimate
}

// Quantity is the declared amount of waste in one movement.
type Quantity struct {
	Type  QuantityType `json:"type"`
	Unit  string       `json:"unit"`
	Value float64      `json:"value"`
}

// CollectionDate is the declared collection date of one movement, kept as the
// day/month/year components the CSV carries.
type CollectionDate struct {
	Type  DateType `json:"type"`
	Day   string   `json:"day"`
	Month string   `json:"month"`
	Year  string   `json:"year"`
}

// WasteRecord is one validated waste movement parsed from a batch row.
// It is the superset of the Annex VII and UK waste movement schemas; fields a
// schema does not carry stay zero.
type WasteRecord struct {
	RowNumber        int            `json:"rowNumber"`
	Reference        string         `json:"reference"`
	BaselCode        string         `json:"baselCode,omitempty"`
	EwcCode          string         `json:"ewcCode"`
	WasteDescription string         `json:"wasteDescription"`
	PhysicalForm     string         `json:"physicalForm,omitempty"`
	ProducerName     string         `json:"producerName,omitempty"`
	ProducerPostcode string         `json:"producerPostcode,omitempty"`
	ReceiverName     string         `json:"receiverName,omitempty"`
	Quantity         Quantity       `json:"quantity"`
	CollectionDate   CollectionDate `json:"collectionDate"`
}

// UsesEstimates reports whether the record declares an estimated quantity or
// an estimated collection date instead of actual data.
func (r WasteRecord) UsesEstimates() bool {
	return r.Quantity.Type == QuantityEstimate || r.CollectionDate.Type == DateEstimate
}

// RowError aggregates all validation failures of a single CSV row.
type RowError struct {
	RowNumber    int      `json:"rowNumber"`
	ErrorAmount  int      `json:"errorAmount"`
	ErrorDetails []string `json:"errorDetails"`
}

// ColumnErrorDetail is one failure inside a column bucket.
type ColumnErrorDetail struct {
	RowNumber   int    `json:"rowNumber"`
	ErrorReason string `json:"errorReason"`
}

// ColumnError regroups the same validation failures by column for UI display.
type ColumnError struct {
	ColumnName   string              `json:"columnName"`
	ErrorAmount  int                 `json:"errorAmount"`
	ErrorDetails []ColumnErrorDetail `json:"errorDetails"`
}
