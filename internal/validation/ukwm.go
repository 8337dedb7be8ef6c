package validation

import (
	"regexp"

	"github.com/wastetrack/bulk-engine/internal/domain"
)

var postcodePattern = regexp.MustCompile(`^[A-Za-z]{1,2}[0-9][A-Za-z0-9]? ?[0-9][A-Za-z]{2}$`)

const (
	colProducerName     = "ProducerOrganisationName"
	colProducerPostcode = "ProducerPostcode"
	colPhysicalForm     = "PhysicalForm"
)

// UkWasteMovementsSchema is the column layout and rule set for UK waste
// movement batches. Data rows start at line 3, matching the published
// template.
func UkWasteMovementsSchema() Schema {
	return Schema{
		Kind:       domain.KindUkWasteMovements,
		HeaderRows: 2,
		Columns: []Column{
			{Name: colReference, Rules: []Rule{
				Required("unique reference"),
				MaxLen("unique reference", 20),
				Pattern(referencePattern, "The unique reference must only include letters, numbers and hyphens"),
			}},
			{Name: colProducerName, Rules: []Rule{
				Required("producer organisation name"),
				MaxLen("producer organisation name", 250),
			}},
			{Name: colProducerPostcode, Rules: []Rule{
				Required("producer postcode"),
				Pattern(postcodePattern, "Enter the producer postcode in the correct format"),
			}},
			{Name: colEwcCode, Rules: []Rule{
				Required("European Waste Catalogue code"),
				Pattern(ewcPattern, "The European Waste Catalogue code must be 6 digits"),
			}},
			{Name: colWasteDescription, Rules: []Rule{
				Required("waste description"),
				MaxLen("waste description", 100),
			}},
			{Name: colPhysicalForm, Rules: []Rule{
				Required("physical form"),
				OneOf("physical form", "Gas", "Liquid", "Solid", "Sludge", "Powder", "Mixed"),
			}},
			{Name: colQuantityType, Rules: []Rule{
				Required("waste quantity type"),
				OneOf("waste quantity type", string(domain.QuantityActual), string(domain.QuantityEstimate)),
			}},
			{Name: colQuantityUnit, Rules: []Rule{
				Required("waste quantity unit"),
				OneOf("waste quantity unit", "Tonnes", "Kilograms"),
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
		},
		CrossRules: []CrossRule{ukwmKilogramBound},
		Map:        mapUkWasteMovementRecord,
	}
}

// ukwmKilogramBound caps actual kilogram quantities; amounts above the cap
// must be declared in tonnes. Estimates are exempt.
func ukwmKilogramBound(fields []string) []Violation {
	if fields[6] != string(domain.QuantityActual) || fields[7] != "Kilograms" {
		return nil
	}
	value, ok := parseQuantityValue(fields[8])
	if !ok {
		return nil
	}
	if value > 25000 {
		return []Violation{{
			Column: colQuantityValue,
			Reason: "Actual quantities above 25000 kilograms must be entered in tonnes",
		}}
	}
	return nil
}

func mapUkWasteMovementRecord(rowNumber int, fields []string) domain.WasteRecord {
	quantityType, _ := domain.ParseQuantityTypeFromString(fields[6])
	value, _ := parseQuantityValue(fields[8])
	day, month, year := splitDMY(fields[10])

	return domain.WasteRecord{
		RowNumber:        rowNumber,
		Reference:        fields[0],
		ProducerName:     fields[1],
		ProducerPostcode: fields[2],
		EwcCode:          fields[3],
		WasteDescription: fields[4],
		PhysicalForm:     fields[5],
		Quantity: domain.Quantity{
			Type:  quantityType,
			Unit:  fields[7],
			Value: value,
		},
		CollectionDate: domain.CollectionDate{
			Type:  domain.DateType(fields[9]),
			Day:   day,
			Month: month,
			Year:  year,
		},
	}
}
