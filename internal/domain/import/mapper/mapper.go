// Package mapper proposes and holds the mapping from spreadsheet columns to
// canonical transaction fields. The suggestion is advisory: callers may
// overwrite any entry before handing the mapping to the row parser.
package mapper

import (
	"fmt"
	"strings"
)

// Field is a canonical transaction attribute a column can map onto.
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldAmount      Field = "amount"
	FieldType        Field = "type"
	FieldCategory    Field = "category"
	FieldTags        Field = "tags"
	FieldIgnore      Field = "ignore"
)

// FieldFromString parses a client-supplied field name.
func FieldFromString(s string) (Field, bool) {
	switch Field(s) {
	case FieldDate, FieldDescription, FieldAmount, FieldType, FieldCategory, FieldTags, FieldIgnore:
		return Field(s), true
	}
	return "", false
}

// fieldKeywords drives header auto-detection. Matching is case-insensitive
// substring containment; the first field whose vocabulary matches a header
// claims that column. Kept as a table so locales extend data, not code.
var fieldKeywords = []struct {
	field    Field
	keywords []string
}{
	{FieldDate, []string{"data", "date"}},
	{FieldDescription, []string{"desc", "memo", "obs"}},
	{FieldAmount, []string{"valor", "amount", "montante"}},
	{FieldType, []string{"tipo", "type"}},
	{FieldCategory, []string{"categoria", "category"}},
	{FieldTags, []string{"tag", "etiqueta"}},
}

// Mapping assigns one canonical field to each spreadsheet column. At most one
// column maps to each non-ignore field.
type Mapping struct {
	Headers []string
	Fields  []Field
	// Warnings records duplicate-claim conflicts found during auto-detection.
	// The mapping still applies last-write-wins but the conflict is surfaced
	// instead of being silently resolved.
	Warnings []string
}

// NewPositional builds an all-ignore mapping of the given width for headerless
// files; every assignment then comes from the caller via Assign.
func NewPositional(columns int) *Mapping {
	fields := make([]Field, columns)
	for i := range fields {
		fields[i] = FieldIgnore
	}
	return &Mapping{Fields: fields}
}

// Suggest inspects a header row and proposes an initial mapping. When two
// columns match the same field the later column takes the field, the earlier
// one reverts to ignore, and a warning names both.
func Suggest(headers []string) *Mapping {
	m := &Mapping{
		Headers: headers,
		Fields:  make([]Field, len(headers)),
	}
	claimed := make(map[Field]int, len(fieldKeywords))

	for col, header := range headers {
		m.Fields[col] = FieldIgnore

		h := strings.ToLower(strings.TrimSpace(header))
		if h == "" {
			continue
		}

		for _, entry := range fieldKeywords {
			if !containsAny(h, entry.keywords) {
				continue
			}
			if prev, taken := claimed[entry.field]; taken {
				m.Fields[prev] = FieldIgnore
				m.Warnings = append(m.Warnings, fmt.Sprintf(
					"column %d (%q) overrides column %d (%q) for field %s",
					col+1, headers[col], prev+1, headers[prev], entry.field))
			}
			claimed[entry.field] = col
			m.Fields[col] = entry.field
			break
		}
	}

	return m
}

// Assign overwrites the field for one column, keeping the one-column-per-field
// invariant: any other column holding the same non-ignore field is reset.
func (m *Mapping) Assign(column int, field Field) {
	if column < 0 || column >= len(m.Fields) {
		return
	}
	if field != FieldIgnore {
		for i, f := range m.Fields {
			if f == field && i != column {
				m.Fields[i] = FieldIgnore
			}
		}
	}
	m.Fields[column] = field
}

// ColumnOf returns the column index mapped to the given field, or -1.
func (m *Mapping) ColumnOf(field Field) int {
	for i, f := range m.Fields {
		if f == field {
			return i
		}
	}
	return -1
}

// Value extracts the cell for the given field from a row, returning the empty
// string when the field is unmapped or the row is too short.
func (m *Mapping) Value(row []string, field Field) string {
	col := m.ColumnOf(field)
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
