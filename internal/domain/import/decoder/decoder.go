// Package decoder turns raw spreadsheet files (CSV or XLSX) into untyped cell
// grids. It owns sheet classification and delimiter handling; everything
// downstream works on the resulting RawGrid and never touches file bytes again.
package decoder

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format discriminates the supported input file formats.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// GridKind classifies what a decoded sheet contains.
type GridKind string

const (
	GridTransactions GridKind = "transactions"
	GridCategories   GridKind = "categories"
)

var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrNoRows            = errors.New("sheet has no rows")
	ErrUnsplittable      = errors.New("could not split rows with the configured delimiter")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// RawGrid is an immutable grid of untyped cell strings from one sheet.
type RawGrid struct {
	Sheet string
	Kind  GridKind
	Rows  [][]string
}

// CSVOptions configures CSV decoding. DecimalSeparator is not used by the
// decoder itself; it is carried so the caller can hand it to the normalizer
// together with the grid.
type CSVOptions struct {
	Delimiter        rune   // ',', ';' or '\t'; zero means comma
	HasHeader        bool   // treat the first row as a header row
	DecimalSeparator rune   // '.' or ','
	Encoding         string // "", "utf-8", "utf-16", "windows-1252", "iso-8859-1"
}

// Result holds every classified grid decoded from one file. Categories is nil
// when the file carries no dedicated categories sheet; callers then derive
// categories from transaction data instead.
type Result struct {
	Transactions *RawGrid
	Categories   *RawGrid
	SheetNames   []string
}

// Sheet name fragments used for classification, matched case-insensitively.
var (
	transactionSheetHints = []string{"transa", "transaction", "dados"}
	categorySheetHints    = []string{"categor"}
)

// Decode parses file bytes into classified grids. It is the only stage of the
// import pipeline that can fail outright: unreadable input, zero rows, or a
// CSV that does not split under the configured delimiter all abort the job.
func Decode(data []byte, format Format, opts CSVOptions) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	switch format {
	case FormatCSV:
		return decodeCSV(data, opts)
	case FormatXLSX:
		return decodeXLSX(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func decodeCSV(data []byte, opts CSVOptions) (*Result, error) {
	utf8Reader, err := NewUTF8Reader(bytes.NewReader(data), opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}

	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}

	reader := csv.NewReader(utf8Reader)
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("decode csv: %w", readErr)
		}

		for i, cell := range record {
			record[i] = stripWrappingQuotes(strings.TrimSpace(cell))
		}
		if isBlankRow(record) {
			continue
		}
		rows = append(rows, record)
	}

	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	// A single column across the whole file means the delimiter did not split
	// anything; a real statement always carries at least date and amount.
	if maxWidth(rows) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrUnsplittable, string(delimiter))
	}

	grid := &RawGrid{Sheet: "csv", Kind: GridTransactions, Rows: rows}
	return &Result{Transactions: grid, SheetNames: []string{"csv"}}, nil
}

func decodeXLSX(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	result := &Result{SheetNames: f.GetSheetList()}

	for _, sheet := range result.SheetNames {
		kind, ok := classifySheet(sheet)
		if !ok {
			continue
		}
		// First classified sheet of each kind wins.
		if kind == GridTransactions && result.Transactions != nil {
			continue
		}
		if kind == GridCategories && result.Categories != nil {
			continue
		}

		rows, rowsErr := f.GetRows(sheet)
		if rowsErr != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, rowsErr)
		}

		grid := &RawGrid{Sheet: sheet, Kind: kind, Rows: trimBlankRows(rows)}
		if kind == GridTransactions {
			result.Transactions = grid
		} else {
			result.Categories = grid
		}
	}

	if result.Transactions == nil || len(result.Transactions.Rows) == 0 {
		return nil, ErrNoRows
	}

	return result, nil
}

// classifySheet decides whether a sheet holds transactions or categories based
// on its name. Unrecognized sheets are skipped entirely.
func classifySheet(name string) (GridKind, bool) {
	lower := strings.ToLower(name)
	for _, hint := range transactionSheetHints {
		if strings.Contains(lower, hint) {
			return GridTransactions, true
		}
	}
	for _, hint := range categorySheetHints {
		if strings.Contains(lower, hint) {
			return GridCategories, true
		}
	}
	return "", false
}

func stripWrappingQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		if !isBlankRow(row) {
			out = append(out, row)
		}
	}
	return out
}

func maxWidth(rows [][]string) int {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}
