package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/decoder"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/mapper"
)

func TestCSV(t *testing.T) {
	data, err := CSV()
	require.NoError(t, err)

	content := string(data)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.GreaterOrEqual(t, len(lines), 2, "header plus example rows")
	assert.Equal(t, "Data,Descrição,Valor,Tipo,Categoria,Tags", lines[0])

	t.Run("headers are auto-mappable", func(t *testing.T) {
		m := mapper.Suggest(strings.Split(lines[0], ","))
		assert.Equal(t, mapper.FieldDate, m.Fields[0])
		assert.Equal(t, mapper.FieldDescription, m.Fields[1])
		assert.Equal(t, mapper.FieldAmount, m.Fields[2])
		assert.Equal(t, mapper.FieldType, m.Fields[3])
		assert.Equal(t, mapper.FieldCategory, m.Fields[4])
		assert.Equal(t, mapper.FieldTags, m.Fields[5])
		assert.Empty(t, m.Warnings)
	})
}

func TestXLSX(t *testing.T) {
	data, err := XLSX()
	require.NoError(t, err)

	// The rendered workbook must round-trip through the decoder.
	result, decodeErr := decoder.Decode(data, decoder.FormatXLSX, decoder.CSVOptions{})
	require.NoError(t, decodeErr)

	require.NotNil(t, result.Transactions)
	assert.Equal(t, "Transações", result.Transactions.Sheet)
	require.GreaterOrEqual(t, len(result.Transactions.Rows), 2)
	assert.Equal(t, "Data", result.Transactions.Rows[0][0])

	require.NotNil(t, result.Categories)
	assert.Equal(t, "Nome", result.Categories.Rows[0][0])
	assert.Contains(t, result.Categories.Rows[1], "Alimentação")
}
