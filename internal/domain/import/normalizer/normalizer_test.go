package normalizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase passthrough", "mercado", "mercado"},
		{"accents stripped", "Alimentação ", "alimentacao"},
		{"cedilla and tilde", "Cartão de Crédito", "cartao de credito"},
		{"punctuation collapses", "Saúde & Bem-Estar", "saude bem estar"},
		{"multiple spaces", "  Lazer    e   Cultura ", "lazer e cultura"},
		{"digits survive", "Conta 123", "conta 123"},
		{"only punctuation", "!!!", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.input))
		})
	}
}

func TestNormalizeKey_Idempotent(t *testing.T) {
	inputs := []string{"Alimentação", "Saúde & Bem-Estar", "TRANSPORTE público", "já normalizado"}
	for _, input := range inputs {
		once := NormalizeKey(input)
		assert.Equal(t, once, NormalizeKey(once), "key for %q must be stable", input)
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		input  string
		want   TransactionType
		wantOK bool
	}{
		{"Receita", TypeIncome, true},
		{"RECEITA FIXA", TypeIncome, true},
		{"income", TypeIncome, true},
		{"Entrada", TypeIncome, true},
		{"Despesa", TypeExpense, true},
		{"expense", TypeExpense, true},
		{"Saída", TypeExpense, true},
		{"saida", TypeExpense, true},
		{"Gasto mensal", TypeExpense, true},
		{"transferência", "", false},
		{"", "", false},
		{"   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NormalizeType(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		decimalSep rune
		want       string
		wantOK     bool
	}{
		{"plain dot decimal", "1234.56", '.', "1234.56", true},
		{"comma decimal with thousands", "1.234,56", ',', "1234.56", true},
		{"brl currency prefix", "R$ 1.234,56", ',', "1234.56", true},
		{"dollar prefix", "$99.90", '.', "99.9", true},
		{"euro suffix", "42,00 €", ',', "42", true},
		{"negative sign kept", "-250,00", ',', "-250", true},
		{"accounting parentheses", "(123.45)", '.', "-123.45", true},
		{"thousands commas dropped", "1,234,567.89", '.', "1234567.89", true},
		{"integer", "500", '.', "500", true},
		{"garbage", "abc", '.', "0", false},
		{"empty", "", '.', "0", false},
		{"lone symbol", "R$", ',', "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmount(tt.input, tt.decimalSep)
			require.Equal(t, tt.wantOK, ok)
			want, err := decimal.NewFromString(tt.want)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "want %s, got %s", want, got)
		})
	}
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2024-01-15", "2024-01-15"},
		{"15/01/2024", "2024-01-15"},
		{"15-01-2024", "2024-01-15"},
		{"2024/01/15", "2024-01-15"},
		{" 15/01/2024 ", "2024-01-15"},
		{"Jan 15 2024", "Jan 15 2024"}, // unrecognized shape passes through
		{"15/1/2024", "15/1/2024"},     // single-digit month is not rewritten
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDate(tt.input))
		})
	}
}

func TestFormatDate_Idempotent(t *testing.T) {
	inputs := []string{"15/01/2024", "2024-01-15", "31-12-2023"}
	for _, input := range inputs {
		once := FormatDate(input)
		assert.Equal(t, once, FormatDate(once))
	}
}
