// Package service orchestrates the import pipeline: decode, map, parse,
// extract, reconcile, validate, and finally commit. Every stage is a pure
// transformation of the previous stage's output; the service only threads the
// values through, fetches the catalog snapshot once per job, and talks to the
// repository at the explicit commit step.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/decoder"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/mapper"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/normalizer"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/parser"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/repository"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/validator"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/reconcile"
	"github.com/Ghost8002/fynance-18-sub001/pkg/money"
)

// Options selects the file format and its CSV sub-configuration for one job.
type Options struct {
	Format decoder.Format
	CSV    decoder.CSVOptions
	Source string // reference tag prefix; defaults to the upper-cased format
}

// Analysis is the first artifact shown to the user: detected sheets, the
// suggested column mapping, and a handful of sample rows for the mapping UI.
type Analysis struct {
	SheetNames       []string
	Headers          []string
	Mapping          *mapper.Mapping
	SampleRows       [][]string
	HasCategorySheet bool
}

// SheetCategory is a category definition read from a dedicated categories
// sheet, carrying presentation fields the transaction rows cannot provide.
type SheetCategory struct {
	Name      string
	Type      normalizer.TransactionType
	Color     string
	SortOrder int
}

// PreviewResult bundles everything the confirmation UI needs: the parsed
// rows, both decision sets, and the validation report.
type PreviewResult struct {
	Mapping           *mapper.Mapping
	Transactions      []parser.Transaction
	SkippedRows       []int
	TotalRows         int
	CategoryDecisions []reconcile.Decision
	TagDecisions      []reconcile.Decision
	Report            *validator.Report

	// SheetCategories keeps per-key presentation data from the categories
	// sheet so a later commit can materialize them faithfully.
	SheetCategories map[string]SheetCategory
}

// CommitResult summarizes a confirmed import.
type CommitResult struct {
	TransactionsImported int
	CategoriesCreated    int
	TagsCreated          int
	SkippedInvalid       int
}

// ImportService runs import jobs. Concurrent jobs are independent: each gets
// its own pipeline values and its own catalog snapshot.
type ImportService struct {
	repo     repository.ImportRepository
	logger   *slog.Logger
	tracer   trace.Tracer
	currency string
}

// NewImportService creates a new import service.
func NewImportService(repo repository.ImportRepository, logger *slog.Logger, currencyCode string) *ImportService {
	if currencyCode == "" {
		currencyCode = money.DefaultCurrency
	}
	return &ImportService{
		repo:     repo,
		logger:   logger,
		tracer:   otel.Tracer("import"),
		currency: currencyCode,
	}
}

// Analyze decodes the file and proposes a column mapping without touching the
// catalog. The mapping is advisory; the user may revise it before Preview.
func (s *ImportService) Analyze(ctx context.Context, fileData []byte, opts Options) (*Analysis, error) {
	_, span := s.tracer.Start(ctx, "import.analyze")
	defer span.End()

	result, err := decoder.Decode(fileData, opts.Format, opts.CSV)
	if err != nil {
		return nil, fmt.Errorf("analyze file: %w", err)
	}

	grid := result.Transactions
	analysis := &Analysis{
		SheetNames:       result.SheetNames,
		HasCategorySheet: result.Categories != nil,
	}

	if hasHeader(opts) && len(grid.Rows) > 0 {
		analysis.Headers = grid.Rows[0]
		analysis.Mapping = mapper.Suggest(grid.Rows[0])
	} else {
		analysis.Mapping = mapper.NewPositional(gridWidth(grid))
	}

	sampleStart := 0
	if analysis.Headers != nil {
		sampleStart = 1
	}
	for i := sampleStart; i < len(grid.Rows) && len(analysis.SampleRows) < 5; i++ {
		analysis.SampleRows = append(analysis.SampleRows, grid.Rows[i])
	}

	return analysis, nil
}

// Preview runs the whole pipeline short of persistence. The catalog snapshot
// is fetched once here and treated as immutable for the rest of the job.
func (s *ImportService) Preview(ctx context.Context, userID uuid.UUID, fileData []byte, opts Options, override *mapper.Mapping) (*PreviewResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.preview")
	defer span.End()

	started := time.Now()

	decoded, err := decoder.Decode(fileData, opts.Format, opts.CSV)
	if err != nil {
		importsTotal.WithLabelValues("decode_error").Inc()
		return nil, fmt.Errorf("decode file: %w", err)
	}

	grid := decoded.Transactions
	withHeader := hasHeader(opts)

	mapping := override
	if mapping == nil {
		if withHeader && len(grid.Rows) > 0 {
			mapping = mapper.Suggest(grid.Rows[0])
		} else {
			mapping = mapper.NewPositional(gridWidth(grid))
		}
	}

	parsed := parser.ParseGrid(grid, mapping, parser.Config{
		Source:           sourceTag(opts),
		HasHeader:        withHeader,
		DecimalSeparator: opts.CSV.DecimalSeparator,
	})

	categories, tags := reconcile.ExtractEntities(parsed.Transactions)
	sheetCategories := parseCategorySheet(decoded.Categories)
	categories = mergeSheetCategories(categories, sheetCategories)

	catalogCategories, catalogTags, err := s.catalogSnapshot(ctx, userID)
	if err != nil {
		importsTotal.WithLabelValues("catalog_error").Inc()
		return nil, err
	}

	categoryDecisions := reconcile.MatchCategories(categories, catalogCategories)
	tagDecisions := reconcile.MatchTags(tags, catalogTags)
	report := validator.Validate(parsed.Transactions, categoryDecisions, tagDecisions)

	rowsParsedTotal.Add(float64(len(parsed.Transactions)))
	rowsSkippedTotal.Add(float64(len(parsed.SkippedRows)))
	importsTotal.WithLabelValues("previewed").Inc()

	s.logger.InfoContext(ctx, "import previewed",
		slog.String("user_id", userID.String()),
		slog.Int("rows_total", parsed.TotalRows),
		slog.Int("rows_parsed", len(parsed.Transactions)),
		slog.Int("rows_skipped", len(parsed.SkippedRows)),
		slog.Int("categories_detected", len(categoryDecisions)),
		slog.Int("tags_detected", len(tagDecisions)),
		slog.Bool("is_valid", report.IsValid),
		slog.Duration("elapsed", time.Since(started)),
	)

	return &PreviewResult{
		Mapping:           mapping,
		Transactions:      parsed.Transactions,
		SkippedRows:       parsed.SkippedRows,
		TotalRows:         parsed.TotalRows,
		CategoryDecisions: categoryDecisions,
		TagDecisions:      tagDecisions,
		Report:            report,
		SheetCategories:   sheetCategories,
	}, nil
}

// Commit materializes a confirmed preview: create-decisions become catalog
// entities, then every valid transaction is inserted with its resolved
// category and tag identifiers. Rows with validation errors are skipped, so a
// partially valid file can still be imported.
func (s *ImportService) Commit(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID, preview *PreviewResult) (*CommitResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.commit")
	defer span.End()

	result := &CommitResult{}

	categoryIDs, created, err := s.resolveCategories(ctx, userID, preview)
	if err != nil {
		importsTotal.WithLabelValues("commit_error").Inc()
		return nil, err
	}
	result.CategoriesCreated = created

	tagIDs, created, err := s.resolveTags(ctx, userID, preview.TagDecisions)
	if err != nil {
		importsTotal.WithLabelValues("commit_error").Inc()
		return nil, err
	}
	result.TagsCreated = created

	records := make([]repository.TransactionRecord, 0, len(preview.Transactions))
	for _, tx := range preview.Transactions {
		if len(tx.ValidationErrors) > 0 {
			result.SkippedInvalid++
			continue
		}

		date, parseErr := time.Parse("2006-01-02", tx.Date)
		if parseErr != nil {
			result.SkippedInvalid++
			continue
		}

		record := repository.TransactionRecord{
			UserID:      userID,
			AccountID:   accountID,
			Description: tx.Description,
			AmountCents: money.SignedMinorUnits(tx.Amount, tx.Type, s.currency),
			Date:        date,
			Reference:   tx.Reference,
		}
		if id, ok := categoryIDs[tx.CategoryKey]; ok {
			categoryID := id
			record.CategoryID = &categoryID
		}
		for _, key := range tx.TagKeys {
			if id, ok := tagIDs[key]; ok {
				record.TagIDs = append(record.TagIDs, id)
			}
		}
		records = append(records, record)
	}

	inserted, err := s.repo.InsertTransactions(ctx, records)
	if err != nil {
		importsTotal.WithLabelValues("commit_error").Inc()
		return nil, fmt.Errorf("insert transactions: %w", err)
	}
	result.TransactionsImported = inserted
	importsTotal.WithLabelValues("committed").Inc()

	s.logger.InfoContext(ctx, "import committed",
		slog.String("user_id", userID.String()),
		slog.Int("transactions_imported", result.TransactionsImported),
		slog.Int("categories_created", result.CategoriesCreated),
		slog.Int("tags_created", result.TagsCreated),
		slog.Int("skipped_invalid", result.SkippedInvalid),
	)

	return result, nil
}

// SearchCatalog answers manual-override lookups against a fresh snapshot.
func (s *ImportService) SearchCatalog(ctx context.Context, userID uuid.UUID, query string, limit int) ([]reconcile.CatalogHit, error) {
	categories, tags, err := s.catalogSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	index, err := reconcile.NewCatalogSearch(categories, tags)
	if err != nil {
		return nil, err
	}
	defer index.Close()

	return index.Search(query, limit)
}

func (s *ImportService) catalogSnapshot(ctx context.Context, userID uuid.UUID) ([]reconcile.CatalogEntry, []reconcile.CatalogEntry, error) {
	categories, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch categories: %w", err)
	}
	tags, err := s.repo.ListTags(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch tags: %w", err)
	}

	categoryEntries := make([]reconcile.CatalogEntry, len(categories))
	for i, c := range categories {
		categoryEntries[i] = reconcile.CatalogEntry{ID: c.ID, Name: c.Name, Type: c.Type}
	}
	tagEntries := make([]reconcile.CatalogEntry, len(tags))
	for i, t := range tags {
		tagEntries[i] = reconcile.CatalogEntry{ID: t.ID, Name: t.Name}
	}
	return categoryEntries, tagEntries, nil
}

// resolveCategories turns decisions into concrete identifiers, creating the
// catalog entities behind create-decisions. Ignored entities resolve to
// nothing, leaving their transactions uncategorized.
func (s *ImportService) resolveCategories(ctx context.Context, userID uuid.UUID, preview *PreviewResult) (map[string]uuid.UUID, int, error) {
	ids := make(map[string]uuid.UUID, len(preview.CategoryDecisions))
	created := 0

	for i, d := range preview.CategoryDecisions {
		switch d.Action {
		case reconcile.ActionMap:
			if d.SystemID != nil {
				ids[d.Key] = *d.SystemID
			}
		case reconcile.ActionCreate:
			category := repository.Category{
				UserID:    userID,
				Name:      d.Name,
				Type:      d.Type,
				SortOrder: i,
			}
			if sheet, ok := preview.SheetCategories[d.Key]; ok {
				category.Color = sheet.Color
				category.SortOrder = sheet.SortOrder
				if sheet.Type != "" {
					category.Type = sheet.Type
				}
			}
			if err := s.repo.CreateCategory(ctx, &category); err != nil {
				return nil, created, fmt.Errorf("create category %q: %w", d.Name, err)
			}
			ids[d.Key] = category.ID
			created++
		case reconcile.ActionIgnore:
			// Nothing to resolve.
		}
	}

	return ids, created, nil
}

func (s *ImportService) resolveTags(ctx context.Context, userID uuid.UUID, decisions []reconcile.Decision) (map[string]uuid.UUID, int, error) {
	ids := make(map[string]uuid.UUID, len(decisions))
	created := 0

	for _, d := range decisions {
		switch d.Action {
		case reconcile.ActionMap:
			if d.SystemID != nil {
				ids[d.Key] = *d.SystemID
			}
		case reconcile.ActionCreate:
			tag := repository.Tag{UserID: userID, Name: d.Name}
			if err := s.repo.CreateTag(ctx, &tag); err != nil {
				return nil, created, fmt.Errorf("create tag %q: %w", d.Name, err)
			}
			ids[d.Key] = tag.ID
			created++
		case reconcile.ActionIgnore:
		}
	}

	return ids, created, nil
}

// parseCategorySheet reads a dedicated categories sheet (Name/Type/Color/
// Order). A missing sheet yields an empty map and categories are derived from
// transaction data alone.
func parseCategorySheet(grid *decoder.RawGrid) map[string]SheetCategory {
	sheet := make(map[string]SheetCategory)
	if grid == nil || len(grid.Rows) < 2 {
		return sheet
	}

	for _, row := range grid.Rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		cat := SheetCategory{Name: strings.TrimSpace(row[0]), Type: normalizer.TypeExpense}
		if len(row) > 1 {
			if t, ok := normalizer.NormalizeType(row[1]); ok {
				cat.Type = t
			}
		}
		if len(row) > 2 {
			cat.Color = strings.TrimSpace(row[2])
		}
		if len(row) > 3 {
			if order, ok := normalizer.ParseAmount(row[3], '.'); ok {
				cat.SortOrder = int(order.IntPart())
			}
		}
		sheet[normalizer.NormalizeKey(cat.Name)] = cat
	}
	return sheet
}

// mergeSheetCategories appends sheet-declared categories the transactions
// never referenced, so they still get reconciliation decisions.
func mergeSheetCategories(extracted []reconcile.ExtractedCategory, sheet map[string]SheetCategory) []reconcile.ExtractedCategory {
	seen := make(map[string]struct{}, len(extracted))
	for _, c := range extracted {
		seen[c.Key] = struct{}{}
	}
	for key, cat := range sheet {
		if _, ok := seen[key]; ok {
			continue
		}
		extracted = append(extracted, reconcile.ExtractedCategory{
			Name: cat.Name,
			Key:  key,
			Type: cat.Type,
		})
	}
	return extracted
}

func hasHeader(opts Options) bool {
	if opts.Format == decoder.FormatXLSX {
		// Template workbooks always carry a header row.
		return true
	}
	return opts.CSV.HasHeader
}

func gridWidth(grid *decoder.RawGrid) int {
	width := 0
	for _, row := range grid.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

func sourceTag(opts Options) string {
	if opts.Source != "" {
		return opts.Source
	}
	return strings.ToUpper(string(opts.Format))
}
