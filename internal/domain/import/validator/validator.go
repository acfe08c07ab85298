// Package validator re-walks parsed transactions and reconciliation decisions
// to produce the import report: blocking row errors, non-blocking warnings,
// and aggregate statistics. The report is recomputed fully on every pass and
// never updated in place.
package validator

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/parser"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/reconcile"
)

// Stats aggregates counts over one validation pass. The transaction counts
// always conserve: Valid + Invalid == Total.
type Stats struct {
	TotalTransactions   int `json:"total_transactions"`
	ValidTransactions   int `json:"valid_transactions"`
	InvalidTransactions int `json:"invalid_transactions"`
	TotalCategories     int `json:"total_categories"`
	MappedCategories    int `json:"mapped_categories"`
	UnmappedCategories  int `json:"unmapped_categories"`
	TotalTags           int `json:"total_tags"`
	MappedTags          int `json:"mapped_tags"`
	UnmappedTags        int `json:"unmapped_tags"`
}

// Report is the aggregate validation artifact shown to the user before commit.
// IsValid is true iff no blocking errors exist; warnings never block.
type Report struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Stats    Stats    `json:"stats"`
}

// Validate checks every transaction and attaches its errors in place, then
// folds the reconciliation decisions into warnings and statistics. Category
// mapping state comes from the matcher's decisions rather than a separate
// existence check, so report and decisions can never disagree.
func Validate(transactions []parser.Transaction, categoryDecisions, tagDecisions []reconcile.Decision) *Report {
	report := &Report{}

	mappedCategories := decisionActions(categoryDecisions)

	for i := range transactions {
		tx := &transactions[i]
		tx.ValidationErrors = tx.ValidationErrors[:0]

		if !isRealDate(tx.Date) {
			tx.ValidationErrors = append(tx.ValidationErrors,
				fmt.Sprintf("invalid date %q", tx.Date))
		}
		if utf8.RuneCountInString(tx.Description) < 2 {
			tx.ValidationErrors = append(tx.ValidationErrors,
				"description must be at least 2 characters")
		}
		if !tx.Amount.IsPositive() {
			tx.ValidationErrors = append(tx.ValidationErrors,
				"amount must be greater than zero")
		}

		report.Stats.TotalTransactions++
		if len(tx.ValidationErrors) > 0 {
			report.Stats.InvalidTransactions++
			for _, msg := range tx.ValidationErrors {
				report.Errors = append(report.Errors,
					fmt.Sprintf("row %d: %s", tx.SourceRow, msg))
			}
		} else {
			report.Stats.ValidTransactions++
		}

		if tx.CategoryKey != "" && mappedCategories[tx.CategoryKey] != reconcile.ActionMap {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("row %d: category %q is not mapped to an existing category yet",
					tx.SourceRow, tx.Category))
		}
	}

	report.Stats.TotalCategories = len(categoryDecisions)
	for _, d := range categoryDecisions {
		if d.Action == reconcile.ActionMap {
			report.Stats.MappedCategories++
		} else {
			report.Stats.UnmappedCategories++
		}
	}

	report.Stats.TotalTags = len(tagDecisions)
	for _, d := range tagDecisions {
		if d.Action == reconcile.ActionMap {
			report.Stats.MappedTags++
		} else {
			report.Stats.UnmappedTags++
		}
	}

	report.IsValid = len(report.Errors) == 0
	return report
}

func decisionActions(decisions []reconcile.Decision) map[string]reconcile.Action {
	actions := make(map[string]reconcile.Action, len(decisions))
	for _, d := range decisions {
		actions[d.Key] = d.Action
	}
	return actions
}

// isRealDate accepts only ISO-shaped dates that exist on the calendar, so
// 2024-02-30 fails even though it matches the shape.
func isRealDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
