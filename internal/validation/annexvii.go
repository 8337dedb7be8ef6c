package validation

import (
	"regexp"
	"strings"

	"github.com/wastetrack/bulk-engine/internal/domain"
)

var (
	referencePattern = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)
	baselPattern     = regexp.MustCompile(`^[AB][0-9]{4}$`)
	ewcPattern       = regexp.MustCompile(`^[0-9]{6}$`)
)

const (
	colReference        = "Reference"
	colBaselCode        = "BaselAnnexIXCode"
	colEwcCode          = "EwcCode"
	colWasteDescription = "WasteDescription"
	colQuantityType     = "WasteQuantityType"
	colQuantityUnit     = "WasteQuantityUnit"
	colQuantityValue    = "WasteQuantity"
	colDateType         = "CollectionDateType"
	colCollectionDate   = "CollectionDate"
	colReceiverName     = "ReceiverName"
)

// AnnexVIISchema is the column layout and rule set for Annex VII green list
// waste export batches. Data rows start at line 3; the first two lines carry
// the template title and column headings.
func AnnexVIISchema() Schema {
	return Schema{
		Kind:       domain.KindAnnexVII,
		HeaderRows: 2,
		Columns: []Column{
			{Name: colReference, Rules: []Rule{
				Required("unique reference"),
				MaxLen("unique reference", 20),
				Pattern(referencePattern, "The unique reference must only include letters, numbers and hyphens"),
			}},
			{Name: colBaselCode, Rules: []Rule{
				Pattern(baselPattern, "Enter a Basel Annex IX code in the format B1010"),
			}},
			{Name: colEwcCode, Rules: []Rule{
				Required("European Waste Catalogue code"),
				Pattern(ewcPattern, "The European Waste Catalogue code must be 6 digits"),
			}},
			{Name: colWasteDescription, Rules: []Rule{
				Required("waste description"),
				MaxLen("waste description", 100),
			}},
			{Name: colQuantityType, Rules: []Rule{
				Required("waste quantity type"),
				OneOf("waste quantity type", string(domain.QuantityActual), string(domain.QuantityEstimate)),
			}},
			{Name: colQuantityUnit, Rules: []Rule{
				Required("waste quantity unit"),
				OneOf("waste quantity unit", "Tonnes", "CubicMetres", "Kilograms"),
			}},
			{Name: colQuantityValue, Rules: []Rule{
				Required("waste quantity"),
				PositiveNumber("waste quantity"),
			}},
			{Name: colDateType, Rules: []Rule{
				Required("collection date type"),
				OneOf("collection date type", string(domain.DateActual), string(domain.DateEstimate)),
			}},
			{Name: colCollectionDate, Rules: []Rule{
				Required("collection date"),
				DateDMY("collection date"),
			}},
			{Name: colReceiverName, Rules: []Rule{
				Required("receiver name"),
				MaxLen("receiver name", 250),
			}},
		},
		CrossRules: []CrossRule{annexVIIQuantityBound},
		Map:        mapAnnexVIIRecord,
	}
}

// annexVIIQuantityBound enforces the hard cap that applies to actual
// quantities only; estimated quantities are declared ahead of weighing and
// carry no upper bound.
func annexVIIQuantityBound(fields []string) []Violation {
	if fields[4] != string(domain.QuantityActual) {
		return nil
	}
	value, ok := parseQuantityValue(fields[6])
	if !ok {
		return nil
	}
	if fields[5] == "Tonnes" && value > 1000 {
		return []Violation{{
			Column: colQuantityValue,
			Reason: "The actual waste quantity must be 1000 tonnes or less",
		}}
	}
	return nil
}

func mapAnnexVIIRecord(rowNumber int, fields []string) domain.WasteRecord {
	// The quantity type rule ran before mapping, so the parse cannot fail here.
	quantityType, _ := domain.ParseQuantityTypeFromString(fields[4])
	value, _ := parseQuantityValue(fields[6])
	day, month, year := splitDMY(fields[8])

	return domain.WasteRecord{
		RowNumber:        rowNumber,
		Reference:        fields[0],
		BaselCode:        fields[1],
		EwcCode:          fields[2],
		WasteDescription: fields[3],
		ReceiverName:     fields[9],
		Quantity: domain.Quantity{
			Type:  quantityType,
			Unit:  fields[5],
			Value: value,
		},
		CollectionDate: domain.CollectionDate{
			Type:  domain.DateType(fields[7]),
			Day:   day,
			Month: month,
			Year:  year,
		},
	}
}

func splitDMY(date string) (day, month, year string) {
	parts := strings.SplitN(date, "/", 3)
	if len(parts) != 3 {
		return "", "", ""
	}
	return parts[0], parts[1], parts[2]
}
