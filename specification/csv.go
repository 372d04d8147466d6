package specification

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Column headers of the OHDSI field-level CSV.
const (
	ColumnTable        = "cdmTableName"
	ColumnField        = "cdmFieldName"
	ColumnDatatype     = "cdmDatatype"
	ColumnRequired     = "isRequired"
	ColumnPrimaryKey   = "isPrimaryKey"
	ColumnUserGuidance = "userGuidance"

	// DefaultDatatype is used when a row has no datatype.
	DefaultDatatype = "VARCHAR(MAX)"
)

// ParseCSV parses an OHDSI field-level CSV into tables keyed by lowercase
// table name. Fields keep their row order.
func ParseCSV(r io.Reader) (map[string]CDMTableSpec, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("specification csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, required := range []string{ColumnTable, ColumnField} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("specification csv is missing column %q", required)
		}
	}

	get := func(row []string, col string) (string, bool) {
		i, ok := cols[col]
		if !ok || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}

	tables := make(map[string]CDMTableSpec)
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		tableName, _ := get(row, ColumnTable)
		fieldName, _ := get(row, ColumnField)
		if tableName == "" || fieldName == "" {
			return nil, fmt.Errorf("csv line %d: table and field names are required", line)
		}
		tableName = strings.ToLower(tableName)
		fieldName = strings.ToLower(fieldName)

		table, ok := tables[tableName]
		if !ok {
			table = CDMTableSpec{Name: tableName, Fields: []CDMFieldSpec{}, PrimaryKey: []string{}}
		}

		datatype, ok := get(row, ColumnDatatype)
		if !ok || datatype == "" {
			datatype = DefaultDatatype
		}
		description, _ := get(row, ColumnUserGuidance)
		if description == "" {
			description = fieldName
		}

		table.Fields = append(table.Fields, CDMFieldSpec{
			Name:        fieldName,
			Type:        datatype,
			Required:    isYes(get(row, ColumnRequired)),
			Description: description,
		})
		if isYes(get(row, ColumnPrimaryKey)) {
			table.PrimaryKey = append(table.PrimaryKey, fieldName)
		}
		tables[tableName] = table
	}
	return tables, nil
}

func isYes(v string, _ bool) bool {
	return strings.EqualFold(v, "yes")
}
