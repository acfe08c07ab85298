// Package template generates downloadable import templates so users start
// from a file whose headers the mapper recognizes out of the box.
package template

import (
	"bytes"
	"fmt"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

// templateRow is one example transaction in the downloadable template. The
// csv tags double as the header row, which keeps the template and the
// column-mapping keywords in lockstep.
type templateRow struct {
	Date        string `csv:"Data"`
	Description string `csv:"Descrição"`
	Amount      string `csv:"Valor"`
	Type        string `csv:"Tipo"`
	Category    string `csv:"Categoria"`
	Tags        string `csv:"Tags"`
}

// categoryRow is one example entry on the categories sheet of the XLSX
// template.
type categoryRow struct {
	Name  string
	Type  string
	Color string
	Order int
}

var exampleTransactions = []templateRow{
	{Date: "2024-01-15", Description: "Supermercado Pão de Açúcar", Amount: "-245,90", Type: "Despesa", Category: "Alimentação", Tags: "mercado"},
	{Date: "2024-01-20", Description: "Salário", Amount: "5.000,00", Type: "Receita", Category: "Salário", Tags: ""},
	{Date: "2024-01-22", Description: "Uber", Amount: "-32,50", Type: "Despesa", Category: "Transporte", Tags: "trabalho, corrida"},
}

var exampleCategories = []categoryRow{
	{Name: "Alimentação", Type: "Despesa", Color: "#ef4444", Order: 1},
	{Name: "Transporte", Type: "Despesa", Color: "#f97316", Order: 2},
	{Name: "Salário", Type: "Receita", Color: "#22c55e", Order: 3},
}

// CSV renders the single-sheet CSV template with example rows.
func CSV() ([]byte, error) {
	out, err := gocsv.MarshalString(&exampleTransactions)
	if err != nil {
		return nil, fmt.Errorf("marshal csv template: %w", err)
	}
	return []byte(out), nil
}

// XLSX renders the two-sheet workbook template: a transactions sheet and a
// categories sheet, both named so the decoder classifies them.
func XLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const txSheet = "Transações"
	const catSheet = "Categorias"

	if err := f.SetSheetName("Sheet1", txSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(catSheet); err != nil {
		return nil, fmt.Errorf("create categories sheet: %w", err)
	}

	txHeader := []interface{}{"Data", "Descrição", "Valor", "Tipo", "Categoria", "Tags"}
	if err := f.SetSheetRow(txSheet, "A1", &txHeader); err != nil {
		return nil, fmt.Errorf("write transactions header: %w", err)
	}
	for i, row := range exampleTransactions {
		cells := []interface{}{row.Date, row.Description, row.Amount, row.Type, row.Category, row.Tags}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("address row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(txSheet, cell, &cells); err != nil {
			return nil, fmt.Errorf("write transactions row %d: %w", i+2, err)
		}
	}

	catHeader := []interface{}{"Nome", "Tipo", "Cor", "Ordem"}
	if err := f.SetSheetRow(catSheet, "A1", &catHeader); err != nil {
		return nil, fmt.Errorf("write categories header: %w", err)
	}
	for i, row := range exampleCategories {
		cells := []interface{}{row.Name, row.Type, row.Color, row.Order}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("address row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(catSheet, cell, &cells); err != nil {
			return nil, fmt.Errorf("write categories row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
