package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/decoder"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/mapper"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/normalizer"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/repository"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/reconcile"
)

// fakeRepo is an in-memory ImportRepository for service-level tests.
type fakeRepo struct {
	categories []repository.Category
	tags       []repository.Tag
	inserted   []repository.TransactionRecord
}

func (f *fakeRepo) ListCategories(ctx context.Context, userID uuid.UUID) ([]repository.Category, error) {
	return f.categories, nil
}

func (f *fakeRepo) ListTags(ctx context.Context, userID uuid.UUID) ([]repository.Tag, error) {
	return f.tags, nil
}

func (f *fakeRepo) CreateCategory(ctx context.Context, category *repository.Category) error {
	category.ID = uuid.New()
	f.categories = append(f.categories, *category)
	return nil
}

func (f *fakeRepo) CreateTag(ctx context.Context, tag *repository.Tag) error {
	tag.ID = uuid.New()
	f.tags = append(f.tags, *tag)
	return nil
}

func (f *fakeRepo) InsertTransactions(ctx context.Context, records []repository.TransactionRecord) (int, error) {
	f.inserted = append(f.inserted, records...)
	return len(records), nil
}

func newTestService(repo *fakeRepo) *ImportService {
	return NewImportService(repo, slog.Default(), "BRL")
}

var sampleCSV = []byte("Data;Descrição;Valor;Tipo;Categoria;Tags\n" +
	"15/01/2024;Supermercado Pão de Açúcar;R$ 245,90;Despesa;Alimentação;mercado\n" +
	"20/01/2024;Salário;5.000,00;Receita;Salário;\n" +
	"22/01/2024;Uber;32,50;Despesa;Transporte;trabalho, corrida\n")

var sampleOpts = Options{
	Format: decoder.FormatCSV,
	CSV: decoder.CSVOptions{
		Delimiter:        ';',
		HasHeader:        true,
		DecimalSeparator: ',',
	},
}

func TestImportService_Analyze(t *testing.T) {
	svc := newTestService(&fakeRepo{})

	analysis, err := svc.Analyze(context.Background(), sampleCSV, sampleOpts)
	require.NoError(t, err)

	assert.Equal(t, []string{"Data", "Descrição", "Valor", "Tipo", "Categoria", "Tags"}, analysis.Headers)
	assert.Equal(t, mapper.FieldDate, analysis.Mapping.Fields[0])
	assert.Equal(t, mapper.FieldAmount, analysis.Mapping.Fields[2])
	assert.Len(t, analysis.SampleRows, 3)
	assert.False(t, analysis.HasCategorySheet)
}

func TestImportService_Analyze_EmptyFile(t *testing.T) {
	svc := newTestService(&fakeRepo{})

	_, err := svc.Analyze(context.Background(), nil, sampleOpts)
	assert.ErrorIs(t, err, decoder.ErrEmptyFile)
}

func TestImportService_Preview(t *testing.T) {
	userID := uuid.New()
	existingCategory := repository.Category{
		ID:     uuid.New(),
		UserID: userID,
		Name:   "Alimentação",
		Type:   normalizer.TypeExpense,
	}
	repo := &fakeRepo{categories: []repository.Category{existingCategory}}
	svc := newTestService(repo)

	preview, err := svc.Preview(context.Background(), userID, sampleCSV, sampleOpts, nil)
	require.NoError(t, err)

	require.Len(t, preview.Transactions, 3)
	assert.Equal(t, 3, preview.TotalRows)
	assert.Empty(t, preview.SkippedRows)
	assert.True(t, preview.Report.IsValid)

	require.Len(t, preview.CategoryDecisions, 3)
	byKey := make(map[string]reconcile.Decision)
	for _, d := range preview.CategoryDecisions {
		byKey[d.Key] = d
	}

	food := byKey["alimentacao"]
	assert.Equal(t, reconcile.ActionMap, food.Action)
	require.NotNil(t, food.SystemID)
	assert.Equal(t, existingCategory.ID, *food.SystemID)

	assert.Equal(t, reconcile.ActionCreate, byKey["salario"].Action)
	assert.Equal(t, reconcile.ActionCreate, byKey["transporte"].Action)

	require.Len(t, preview.TagDecisions, 3)
	for _, d := range preview.TagDecisions {
		assert.Equal(t, reconcile.ActionCreate, d.Action, d.Key)
	}
}

func TestImportService_Preview_MappingOverride(t *testing.T) {
	svc := newTestService(&fakeRepo{})

	override := mapper.NewPositional(6)
	override.Assign(0, mapper.FieldDate)
	override.Assign(1, mapper.FieldDescription)
	override.Assign(2, mapper.FieldAmount)
	// Type, category and tags deliberately ignored.

	preview, err := svc.Preview(context.Background(), uuid.New(), sampleCSV, sampleOpts, override)
	require.NoError(t, err)

	require.Len(t, preview.Transactions, 3)
	assert.Empty(t, preview.CategoryDecisions)
	assert.Empty(t, preview.TagDecisions)

	// Without a type column polarity comes from the amount's sign; the sample
	// amounts are unsigned so everything lands as income.
	for _, transaction := range preview.Transactions {
		assert.Equal(t, normalizer.TypeIncome, transaction.Type)
	}
}

func TestImportService_Commit(t *testing.T) {
	userID := uuid.New()
	existingCategory := repository.Category{
		ID:     uuid.New(),
		UserID: userID,
		Name:   "Alimentação",
		Type:   normalizer.TypeExpense,
	}
	repo := &fakeRepo{categories: []repository.Category{existingCategory}}
	svc := newTestService(repo)

	preview, err := svc.Preview(context.Background(), userID, sampleCSV, sampleOpts, nil)
	require.NoError(t, err)

	result, err := svc.Commit(context.Background(), userID, nil, preview)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TransactionsImported)
	assert.Equal(t, 2, result.CategoriesCreated, "salário and transporte are new")
	assert.Equal(t, 3, result.TagsCreated)
	assert.Zero(t, result.SkippedInvalid)

	require.Len(t, repo.inserted, 3)

	var food repository.TransactionRecord
	for _, record := range repo.inserted {
		if record.Reference == "CSV-2" {
			food = record
		}
	}
	assert.Equal(t, int64(-24590), food.AmountCents, "expenses are persisted negative")
	require.NotNil(t, food.CategoryID)
	assert.Equal(t, existingCategory.ID, *food.CategoryID)
	require.Len(t, food.TagIDs, 1)

	var salary repository.TransactionRecord
	for _, record := range repo.inserted {
		if record.Reference == "CSV-3" {
			salary = record
		}
	}
	assert.Equal(t, int64(500000), salary.AmountCents, "income stays positive")
}

func TestImportService_Commit_IgnoredDecision(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{}
	svc := newTestService(repo)

	preview, err := svc.Preview(context.Background(), userID, sampleCSV, sampleOpts, nil)
	require.NoError(t, err)

	for i := range preview.CategoryDecisions {
		if preview.CategoryDecisions[i].Key == "transporte" {
			preview.CategoryDecisions[i].Action = reconcile.ActionIgnore
		}
	}

	result, err := svc.Commit(context.Background(), userID, nil, preview)
	require.NoError(t, err)
	assert.Equal(t, 2, result.CategoriesCreated)

	for _, record := range repo.inserted {
		if record.Reference == "CSV-4" {
			assert.Nil(t, record.CategoryID, "ignored category leaves the row uncategorized")
		}
	}
}

func TestImportService_Commit_SkipsInvalidRows(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{}
	svc := newTestService(repo)

	data := []byte("Data;Descrição;Valor\n" +
		"15/01/2024;ok;10,00\n" +
		"31/02/2024;impossible date;10,00\n")

	preview, err := svc.Preview(context.Background(), userID, data, sampleOpts, nil)
	require.NoError(t, err)
	assert.False(t, preview.Report.IsValid)

	result, err := svc.Commit(context.Background(), userID, nil, preview)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TransactionsImported)
	assert.Equal(t, 1, result.SkippedInvalid)
}

func TestImportService_Preview_CategorySheet(t *testing.T) {
	workbook := buildTwoSheetWorkbook(t)
	repo := &fakeRepo{}
	svc := newTestService(repo)

	preview, err := svc.Preview(context.Background(), uuid.New(), workbook, Options{Format: decoder.FormatXLSX, CSV: decoder.CSVOptions{DecimalSeparator: ','}}, nil)
	require.NoError(t, err)

	// "Lazer" appears only on the categories sheet, never in a transaction,
	// and must still get a decision.
	keys := make([]string, 0, len(preview.CategoryDecisions))
	for _, d := range preview.CategoryDecisions {
		keys = append(keys, d.Key)
	}
	assert.Contains(t, keys, "lazer")
	assert.Contains(t, keys, "alimentacao")

	sheet, ok := preview.SheetCategories["lazer"]
	require.True(t, ok)
	assert.Equal(t, "#8b5cf6", sheet.Color)
	assert.Equal(t, 7, sheet.SortOrder)
	assert.Equal(t, normalizer.TypeExpense, sheet.Type)
}

func buildTwoSheetWorkbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Transações"))
	_, err := f.NewSheet("Categorias")
	require.NoError(t, err)

	txRows := [][]interface{}{
		{"Data", "Descrição", "Valor", "Tipo", "Categoria"},
		{"15/01/2024", "Mercado", "245,90", "Despesa", "Alimentação"},
	}
	for i := range txRows {
		addr, addrErr := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, addrErr)
		require.NoError(t, f.SetSheetRow("Transações", addr, &txRows[i]))
	}

	catRows := [][]interface{}{
		{"Nome", "Tipo", "Cor", "Ordem"},
		{"Alimentação", "Despesa", "#ef4444", 1},
		{"Lazer", "Despesa", "#8b5cf6", 7},
	}
	for i := range catRows {
		addr, addrErr := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, addrErr)
		require.NoError(t, f.SetSheetRow("Categorias", addr, &catRows[i]))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestImportService_SearchCatalog(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{
		categories: []repository.Category{
			{ID: uuid.New(), UserID: userID, Name: "Transporte", Type: normalizer.TypeExpense},
		},
	}
	svc := newTestService(repo)

	hits, err := svc.SearchCatalog(context.Background(), userID, "transporte", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Transporte", hits[0].Name)
}

func TestImportService_Preview_LargeGeneratedFile(t *testing.T) {
	gofakeit.Seed(42)

	data := "Data;Descrição;Valor;Tipo;Categoria\n"
	for i := 0; i < 200; i++ {
		data += fmt.Sprintf("%02d/03/2024;%s;%d,%02d;Despesa;%s\n",
			gofakeit.Number(1, 28),
			gofakeit.Company(),
			gofakeit.Number(1, 999),
			gofakeit.Number(0, 99),
			gofakeit.RandomString([]string{"Alimentação", "Transporte", "Lazer", "Saúde"}),
		)
	}

	svc := newTestService(&fakeRepo{})
	preview, err := svc.Preview(context.Background(), uuid.New(), []byte(data), sampleOpts, nil)
	require.NoError(t, err)

	assert.Equal(t, 200, preview.TotalRows)
	assert.Equal(t, 200, len(preview.Transactions)+len(preview.SkippedRows))
	assert.LessOrEqual(t, len(preview.CategoryDecisions), 4)
}
