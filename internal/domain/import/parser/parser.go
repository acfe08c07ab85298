// Package parser turns a decoded grid plus a column mapping into structured
// transaction records. Parsing is total: malformed rows are dropped and
// reported by row number, never aborting the file.
package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/decoder"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/mapper"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/normalizer"
)

// Transaction is the canonical unit handed to reconciliation, validation and,
// on confirmation, the persistence layer. Amount is always the absolute value;
// polarity is carried exclusively by Type.
type Transaction struct {
	Date        string // ISO 8601 when the source shape was recognized
	Description string
	Amount      decimal.Decimal
	Type        normalizer.TransactionType
	Category    string   // raw category text as it appeared
	CategoryKey string   // normalized comparison key, empty when no category
	Tags        []string // raw tag names
	TagKeys     []string // normalized keys, parallel to Tags
	Reference   string   // "<SOURCE>-<row>" traceability tag
	SourceRow   int      // 1-based row number in the input file

	// ValidationErrors is attached by the validator; empty until then.
	ValidationErrors []string
}

// Config controls row parsing for one file.
type Config struct {
	Source           string // reference tag prefix, e.g. "CSV" or "XLSX"
	HasHeader        bool   // first grid row is a header, not data
	DecimalSeparator rune   // handed through to the amount normalizer
}

// Result pairs the parsed transactions with the rows that were silently
// dropped, so callers can observe the gap without diffing counts.
type Result struct {
	Transactions []Transaction
	SkippedRows  []int // 1-based source row numbers of dropped rows
	TotalRows    int   // data rows seen, including dropped ones
}

// ParseGrid transforms every data row of the grid. A row is dropped when any
// mandatory field (date, description, amount) is empty, or when the amount is
// unparseable or exactly zero.
func ParseGrid(grid *decoder.RawGrid, m *mapper.Mapping, cfg Config) *Result {
	result := &Result{
		Transactions: make([]Transaction, 0, len(grid.Rows)),
	}

	source := cfg.Source
	if source == "" {
		source = "IMPORT"
	}

	rows := grid.Rows
	offset := 1 // source rows are 1-based
	if cfg.HasHeader {
		if len(rows) > 0 {
			rows = rows[1:]
		}
		offset = 2
	}

	for i, row := range rows {
		sourceRow := i + offset
		result.TotalRows++

		tx, ok := parseRow(row, m, cfg, source, sourceRow)
		if !ok {
			result.SkippedRows = append(result.SkippedRows, sourceRow)
			continue
		}
		result.Transactions = append(result.Transactions, tx)
	}

	return result
}

func parseRow(row []string, m *mapper.Mapping, cfg Config, source string, sourceRow int) (Transaction, bool) {
	dateStr := m.Value(row, mapper.FieldDate)
	description := cleanDescription(m.Value(row, mapper.FieldDescription))
	amountStr := m.Value(row, mapper.FieldAmount)

	if dateStr == "" || description == "" || amountStr == "" {
		return Transaction{}, false
	}

	amount, ok := normalizer.ParseAmount(amountStr, cfg.DecimalSeparator)
	if !ok || amount.IsZero() {
		return Transaction{}, false
	}

	txType, ok := normalizer.NormalizeType(m.Value(row, mapper.FieldType))
	if !ok {
		// No usable type column: the raw amount's sign decides polarity.
		if amount.IsNegative() {
			txType = normalizer.TypeExpense
		} else {
			txType = normalizer.TypeIncome
		}
	}

	category := m.Value(row, mapper.FieldCategory)
	tags, tagKeys := splitTags(m.Value(row, mapper.FieldTags))

	return Transaction{
		Date:        normalizer.FormatDate(dateStr),
		Description: description,
		Amount:      amount.Abs(),
		Type:        txType,
		Category:    category,
		CategoryKey: normalizer.NormalizeKey(category),
		Tags:        tags,
		TagKeys:     tagKeys,
		Reference:   fmt.Sprintf("%s-%d", source, sourceRow),
		SourceRow:   sourceRow,
	}, true
}

// splitTags splits a tags cell on commas, trimming entries and dropping the
// empty ones. Keys stay parallel to the raw names.
func splitTags(cell string) ([]string, []string) {
	if cell == "" {
		return nil, nil
	}

	parts := strings.Split(cell, ",")
	tags := make([]string, 0, len(parts))
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		key := normalizer.NormalizeKey(tag)
		if key == "" {
			continue
		}
		tags = append(tags, tag)
		keys = append(keys, key)
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return tags, keys
}

func cleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
