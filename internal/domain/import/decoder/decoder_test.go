package decoder

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDecode_CSV(t *testing.T) {
	t.Run("comma delimited", func(t *testing.T) {
		data := []byte("Data,Descrição,Valor\n2024-01-15,Mercado,10.50\n")
		result, err := Decode(data, FormatCSV, CSVOptions{HasHeader: true})
		require.NoError(t, err)

		require.NotNil(t, result.Transactions)
		assert.Equal(t, GridTransactions, result.Transactions.Kind)
		require.Len(t, result.Transactions.Rows, 2)
		assert.Equal(t, []string{"Data", "Descrição", "Valor"}, result.Transactions.Rows[0])
		assert.Nil(t, result.Categories)
	})

	t.Run("semicolon delimited", func(t *testing.T) {
		data := []byte("Data;Valor\n2024-01-15;10,50\n")
		result, err := Decode(data, FormatCSV, CSVOptions{Delimiter: ';'})
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-01-15", "10,50"}, result.Transactions.Rows[1])
	})

	t.Run("blank rows dropped", func(t *testing.T) {
		data := []byte("a,b\n\n ,\t\n1,2\n")
		result, err := Decode(data, FormatCSV, CSVOptions{})
		require.NoError(t, err)
		assert.Len(t, result.Transactions.Rows, 2)
	})

	t.Run("wrapping quotes stripped", func(t *testing.T) {
		data := []byte("\"Data\",\"Valor\"\n\"2024-01-15\",\"10.50\"\n")
		result, err := Decode(data, FormatCSV, CSVOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Data", "Valor"}, result.Transactions.Rows[0])
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := Decode(nil, FormatCSV, CSVOptions{})
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("only blank rows", func(t *testing.T) {
		_, err := Decode([]byte("\n\n  \n"), FormatCSV, CSVOptions{})
		assert.ErrorIs(t, err, ErrNoRows)
	})

	t.Run("wrong delimiter yields single column", func(t *testing.T) {
		data := []byte("a;b;c\n1;2;3\n")
		_, err := Decode(data, FormatCSV, CSVOptions{Delimiter: ','})
		assert.ErrorIs(t, err, ErrUnsplittable)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := Decode([]byte("x"), Format("pdf"), CSVOptions{})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestDecode_CSV_Windows1252(t *testing.T) {
	// "Alimentação" in Windows-1252.
	data := []byte("Categoria,Valor\nAlimenta\xe7\xe3o,10.50\n")
	result, err := Decode(data, FormatCSV, CSVOptions{Encoding: "windows-1252"})
	require.NoError(t, err)
	assert.Equal(t, "Alimentação", result.Transactions.Rows[1][0])
}

func TestDecode_CSV_UTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Data,Valor\n2024-01-15,10.50\n")...)
	result, err := Decode(data, FormatCSV, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Data", result.Transactions.Rows[0][0], "BOM must not leak into the first cell")
}

func buildWorkbook(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cells := make([]interface{}, len(row))
			for j, cell := range row {
				cells[j] = cell
			}
			addr, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, addr, &cells))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestDecode_XLSX(t *testing.T) {
	data := buildWorkbook(t, map[string][][]string{
		"Transações": {
			{"Data", "Descrição", "Valor"},
			{"2024-01-15", "Mercado", "10,50"},
		},
		"Categorias": {
			{"Nome", "Tipo"},
			{"Alimentação", "Despesa"},
		},
		"Notas": {
			{"irrelevant"},
		},
	})

	result, err := Decode(data, FormatXLSX, CSVOptions{})
	require.NoError(t, err)

	require.NotNil(t, result.Transactions)
	assert.Equal(t, "Transações", result.Transactions.Sheet)
	require.Len(t, result.Transactions.Rows, 2)
	assert.Equal(t, "Mercado", result.Transactions.Rows[1][1])

	require.NotNil(t, result.Categories)
	assert.Equal(t, GridCategories, result.Categories.Kind)
	assert.Equal(t, "Alimentação", result.Categories.Rows[1][0])

	assert.Len(t, result.SheetNames, 3)
}

func TestDecode_XLSX_NoTransactionSheet(t *testing.T) {
	data := buildWorkbook(t, map[string][][]string{
		"Notas": {{"nothing", "here"}},
	})

	_, err := Decode(data, FormatXLSX, CSVOptions{})
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestClassifySheet(t *testing.T) {
	tests := []struct {
		name   string
		kind   GridKind
		wantOK bool
	}{
		{"Transações", GridTransactions, true},
		{"transactions", GridTransactions, true},
		{"Dados", GridTransactions, true},
		{"Categorias", GridCategories, true},
		{"Categories", GridCategories, true},
		{"Sheet1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := classifySheet(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}
