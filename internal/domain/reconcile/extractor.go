// Package reconcile derives the distinct categories and tags referenced by a
// parsed import and decides, per entity, whether it maps onto the existing
// catalog or needs to be created. Everything here is a pure function of its
// inputs; the catalog snapshot is fetched once per job by the caller and
// treated as immutable for the whole run.
package reconcile

import (
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/normalizer"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/parser"
)

// ExtractedCategory is a distinct category referenced by the parsed rows.
type ExtractedCategory struct {
	Name  string // raw name as it first appeared
	Key   string // normalized comparison key
	Type  normalizer.TransactionType
	Count int // occurrences across all parsed rows
}

// ExtractedTag is a distinct tag referenced by the parsed rows.
type ExtractedTag struct {
	Name  string
	Key   string
	Count int
}

// ExtractEntities walks the parsed transactions and collects distinct
// categories (with inferred polarity) and tags, in first-seen order.
//
// Polarity inference: the first transaction referencing a category sets its
// type; a later transaction of the opposite type demotes the category to
// expense, the tie-break default for ambiguous categories.
func ExtractEntities(transactions []parser.Transaction) ([]ExtractedCategory, []ExtractedTag) {
	var categories []ExtractedCategory
	var tags []ExtractedTag
	categoryIndex := make(map[string]int)
	tagIndex := make(map[string]int)

	for _, tx := range transactions {
		if tx.CategoryKey != "" {
			if idx, seen := categoryIndex[tx.CategoryKey]; seen {
				categories[idx].Count++
				if categories[idx].Type != tx.Type {
					categories[idx].Type = normalizer.TypeExpense
				}
			} else {
				categoryIndex[tx.CategoryKey] = len(categories)
				categories = append(categories, ExtractedCategory{
					Name:  tx.Category,
					Key:   tx.CategoryKey,
					Type:  tx.Type,
					Count: 1,
				})
			}
		}

		for i, key := range tx.TagKeys {
			if idx, seen := tagIndex[key]; seen {
				tags[idx].Count++
				continue
			}
			tagIndex[key] = len(tags)
			tags = append(tags, ExtractedTag{
				Name:  tx.Tags[i],
				Key:   key,
				Count: 1,
			})
		}
	}

	return categories, tags
}
