package validation

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wastetrack/bulk-engine/internal/domain"
)

// Outcome is the result of validating an assembled CSV buffer. Exactly one of
// the three shapes is populated: CsvError (structural failure), RowErrors and
// ColumnErrors (rule failures), or Records (clean parse).
type Outcome struct {
	CsvError     string
	RowErrors    []domain.RowError
	ColumnErrors []domain.ColumnError
	Records      []domain.WasteRecord
	HasEstimates bool
}

// StructuralFailure reports whether the CSV could not be parsed into rows.
func (o Outcome) StructuralFailure() bool { return o.CsvError != "" }

// Passed reports whether every row satisfied the schema's rules.
func (o Outcome) Passed() bool {
	return o.CsvError == "" && len(o.RowErrors) == 0
}

type cellError struct {
	rowNumber int
	column    string
	reason    string
}

// Validate parses raw against the schema and classifies the whole buffer.
// Structural parse failures take precedence: no row/column report is built
// when the buffer cannot be split into rows of the declared width. Error
// ordering is deterministic for identical input: rows ascending, columns in
// declared schema order.
func Validate(raw []byte, schema Schema) Outcome {
	rows, err := parseRows(raw, schema)
	if err != nil {
		return Outcome{CsvError: err.Error()}
	}
	if len(rows) == 0 {
		return Outcome{CsvError: "the file contains no data rows"}
	}

	var cells []cellError
	records := make([]domain.WasteRecord, 0, len(rows))
	hasEstimates := false

	for _, row := range rows {
		fields := row.fields
		before := len(cells)

		for col, column := range schema.Columns {
			for _, rule := range column.Rules {
				if reason := rule(fields[col]); reason != "" {
					cells = append(cells, cellError{rowNumber: row.line, column: column.Name, reason: reason})
				}
			}
		}
		for _, cross := range schema.CrossRules {
			for _, v := range cross(fields) {
				cells = append(cells, cellError{rowNumber: row.line, column: v.Column, reason: v.Reason})
			}
		}

		if len(cells) > before {
			continue
		}

		record := schema.Map(row.line, fields)
		if record.UsesEstimates() {
			hasEstimates = true
		}
		records = append(records, record)
	}

	if len(cells) > 0 {
		rowErrors, columnErrors := groupErrors(cells, schema)
		return Outcome{RowErrors: rowErrors, ColumnErrors: columnErrors}
	}

	return Outcome{Records: records, HasEstimates: hasEstimates}
}

// parsedRow is one retained data row tagged with its 1-based CSV line number.
// Blank lines are skipped but still advance the line count, so reported row
// numbers always point at the line as the uploader sees it.
type parsedRow struct {
	line   int
	fields []string
}

// parseRows splits the buffer into trimmed field rows, skipping the schema's
// header rows and blank lines.
func parseRows(raw []byte, schema Schema) ([]parsedRow, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []parsedRow
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("the file could not be read at line %d", line)
		}
		if line <= schema.HeaderRows {
			continue
		}
		if isBlankRow(record) {
			continue
		}
		if len(record) != len(schema.Columns) {
			return nil, fmt.Errorf(
				"line %d has %d columns, expected %d", line, len(record), len(schema.Columns))
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		rows = append(rows, parsedRow{line: line, fields: record})
	}

	return rows, nil
}

func isBlankRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// groupErrors derives both error views from the same cell failures so the two
// groupings can never diverge.
func groupErrors(cells []cellError, schema Schema) ([]domain.RowError, []domain.ColumnError) {
	byRow := make(map[int][]string)
	rowOrder := make([]int, 0)
	byColumn := make(map[string][]domain.ColumnErrorDetail)

	for _, c := range cells {
		if _, seen := byRow[c.rowNumber]; !seen {
			rowOrder = append(rowOrder, c.rowNumber)
		}
		byRow[c.rowNumber] = append(byRow[c.rowNumber], c.reason)
		byColumn[c.column] = append(byColumn[c.column], domain.ColumnErrorDetail{
			RowNumber:   c.rowNumber,
			ErrorReason: c.reason,
		})
	}

	// Cells are collected in row order, so rowOrder is already ascending.
	rowErrors := make([]domain.RowError, 0, len(rowOrder))
	for _, rowNumber := range rowOrder {
		details := byRow[rowNumber]
		rowErrors = append(rowErrors, domain.RowError{
			RowNumber:    rowNumber,
			ErrorAmount:  len(details),
			ErrorDetails: details,
		})
	}

	columnErrors := make([]domain.ColumnError, 0, len(byColumn))
	for _, column := range schema.Columns {
		details, ok := byColumn[column.Name]
		if !ok {
			continue
		}
		columnErrors = append(columnErrors, domain.ColumnError{
			ColumnName:   column.Name,
			ErrorAmount:  len(details),
			ErrorDetails: details,
		})
	}

	return rowErrors, columnErrors
}
