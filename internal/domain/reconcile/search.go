package reconcile

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/normalizer"
)

// catalogDocument is the searchable projection of one catalog entry.
type catalogDocument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`  // normalized comparison key, exact-matchable
	Kind string `json:"kind"` // "category" or "tag"
	Type string `json:"type"` // polarity, categories only
}

// CatalogHit is a search result with its relevance score.
type CatalogHit struct {
	ID    uuid.UUID
	Name  string
	Kind  string
	Score float64
}

// CatalogSearch is an in-memory full-text index over the catalog snapshot.
// It backs the manual-override UI: when the user reassigns a reconciliation
// decision they search existing entities here instead of scrolling the whole
// catalog. The index lives only as long as the process; it is rebuilt from the
// snapshot on demand.
type CatalogSearch struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewCatalogSearch builds an in-memory index over the given categories and
// tags.
func NewCatalogSearch(categories, tags []CatalogEntry) (*CatalogSearch, error) {
	index, err := bleve.NewMemOnly(buildCatalogMapping())
	if err != nil {
		return nil, fmt.Errorf("create catalog index: %w", err)
	}

	cs := &CatalogSearch{index: index}
	if err := cs.indexEntries("category", categories); err != nil {
		return nil, err
	}
	if err := cs.indexEntries("tag", tags); err != nil {
		return nil, err
	}
	return cs, nil
}

func buildCatalogMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = simple.Name

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("name", textField)
	docMapping.AddFieldMappingsAt("key", keywordField)
	docMapping.AddFieldMappingsAt("kind", keywordField)
	docMapping.AddFieldMappingsAt("type", keywordField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

func (cs *CatalogSearch) indexEntries(kind string, entries []CatalogEntry) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	batch := cs.index.NewBatch()
	for _, entry := range entries {
		doc := catalogDocument{
			ID:   entry.ID.String(),
			Name: entry.Name,
			Key:  normalizer.NormalizeKey(entry.Name),
			Kind: kind,
			Type: string(entry.Type),
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("index %s %s: %w", kind, entry.ID, err)
		}
	}
	if err := cs.index.Batch(batch); err != nil {
		return fmt.Errorf("batch index %s entries: %w", kind, err)
	}
	return nil
}

// Search runs a typo-tolerant match query over entity names.
func (cs *CatalogSearch) Search(query string, limit int) ([]CatalogHit, error) {
	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetFuzziness(1)
	return cs.run(bleve.NewSearchRequest(matchQuery), limit)
}

// SearchPrefix runs an autocomplete-style prefix query.
func (cs *CatalogSearch) SearchPrefix(prefix string, limit int) ([]CatalogHit, error) {
	return cs.run(bleve.NewSearchRequest(bleve.NewPrefixQuery(prefix)), limit)
}

func (cs *CatalogSearch) run(request *bleve.SearchRequest, limit int) ([]CatalogHit, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	request.Size = limit
	request.Fields = []string{"name", "kind"}

	searchResults, err := cs.index.Search(request)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	hits := make([]CatalogHit, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		id, parseErr := uuid.Parse(hit.ID)
		if parseErr != nil {
			continue
		}
		h := CatalogHit{ID: id, Score: hit.Score}
		if name, ok := hit.Fields["name"].(string); ok {
			h.Name = name
		}
		if kind, ok := hit.Fields["kind"].(string); ok {
			h.Kind = kind
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// Close releases the index.
func (cs *CatalogSearch) Close() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.index.Close()
}
