// Package handler exposes the import pipeline over HTTP: analyze a file,
// preview its parsed rows and reconciliation decisions, confirm the import,
// download templates, and search the catalog for manual overrides.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/decoder"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/mapper"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/service"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/template"
	"github.com/Ghost8002/fynance-18-sub001/internal/domain/reconcile"
)

// Handler serves the import endpoints.
type Handler struct {
	svc            *service.ImportService
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewHandler creates an import handler.
func NewHandler(svc *service.ImportService, logger *slog.Logger, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Routes mounts the import endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/analyze", h.analyze)
	r.Post("/preview", h.preview)
	r.Post("/confirm", h.confirm)
	r.Get("/template.csv", h.templateCSV)
	r.Get("/template.xlsx", h.templateXLSX)
	r.Get("/catalog/search", h.catalogSearch)
}

type mappingDTO struct {
	Headers  []string `json:"headers,omitempty"`
	Fields   []string `json:"fields"`
	Warnings []string `json:"warnings,omitempty"`
}

type decisionOverrideDTO struct {
	Key      string `json:"key"`
	Action   string `json:"action"`
	SystemID string `json:"system_id,omitempty"`
}

type decisionDTO struct {
	Name       string  `json:"name"`
	Key        string  `json:"key"`
	Action     string  `json:"action"`
	SystemID   string  `json:"system_id,omitempty"`
	Confidence float64 `json:"confidence"`
	Type       string  `json:"type,omitempty"`
	Count      int     `json:"count"`
}

type transactionDTO struct {
	Date             string   `json:"date"`
	Description      string   `json:"description"`
	Amount           string   `json:"amount"`
	Type             string   `json:"type"`
	Category         string   `json:"category,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Reference        string   `json:"reference"`
	SourceRow        int      `json:"source_row"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

type analyzeResponse struct {
	SheetNames       []string   `json:"sheet_names"`
	Headers          []string   `json:"headers,omitempty"`
	Mapping          mappingDTO `json:"mapping"`
	SampleRows       [][]string `json:"sample_rows"`
	HasCategorySheet bool       `json:"has_category_sheet"`
}

type previewResponse struct {
	Mapping           mappingDTO       `json:"mapping"`
	Transactions      []transactionDTO `json:"transactions"`
	SkippedRows       []int            `json:"skipped_rows,omitempty"`
	TotalRows         int              `json:"total_rows"`
	CategoryDecisions []decisionDTO    `json:"category_decisions"`
	TagDecisions      []decisionDTO    `json:"tag_decisions"`
	IsValid           bool             `json:"is_valid"`
	Errors            []string         `json:"errors,omitempty"`
	Warnings          []string         `json:"warnings,omitempty"`
	Stats             interface{}      `json:"stats"`
}

type confirmResponse struct {
	TransactionsImported int `json:"transactions_imported"`
	CategoriesCreated    int `json:"categories_created"`
	TagsCreated          int `json:"tags_created"`
	SkippedInvalid       int `json:"skipped_invalid"`
}

type catalogHitDTO struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Kind  string  `json:"kind"`
	Score float64 `json:"score"`
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	fileData, opts, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	analysis, err := h.svc.Analyze(r.Context(), fileData, opts)
	if err != nil {
		h.fileError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, analyzeResponse{
		SheetNames:       analysis.SheetNames,
		Headers:          analysis.Headers,
		Mapping:          toMappingDTO(analysis.Mapping),
		SampleRows:       analysis.SampleRows,
		HasCategorySheet: analysis.HasCategorySheet,
	})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	fileData, opts, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	override, ok := h.readMappingOverride(w, r)
	if !ok {
		return
	}

	preview, err := h.svc.Preview(r.Context(), userID, fileData, opts, override)
	if err != nil {
		h.fileError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toPreviewResponse(preview))
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	fileData, opts, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	override, ok := h.readMappingOverride(w, r)
	if !ok {
		return
	}

	var accountID *uuid.UUID
	if raw := r.FormValue("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid account_id", http.StatusBadRequest)
			return
		}
		accountID = &id
	}

	// Confirmation re-runs the preview server-side and then applies the
	// user's decision overrides, so the commit never trusts client-supplied
	// parsed rows.
	preview, err := h.svc.Preview(r.Context(), userID, fileData, opts, override)
	if err != nil {
		h.fileError(w, err)
		return
	}

	if raw := r.FormValue("category_decisions"); raw != "" {
		if ok := h.applyOverrides(w, raw, preview.CategoryDecisions); !ok {
			return
		}
	}
	if raw := r.FormValue("tag_decisions"); raw != "" {
		if ok := h.applyOverrides(w, raw, preview.TagDecisions); !ok {
			return
		}
	}

	result, err := h.svc.Commit(r.Context(), userID, accountID, preview)
	if err != nil {
		h.logger.Error("import commit failed", slog.String("error", err.Error()))
		http.Error(w, "import failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, confirmResponse{
		TransactionsImported: result.TransactionsImported,
		CategoriesCreated:    result.CategoriesCreated,
		TagsCreated:          result.TagsCreated,
		SkippedInvalid:       result.SkippedInvalid,
	})
}

func (h *Handler) templateCSV(w http.ResponseWriter, r *http.Request) {
	data, err := template.CSV()
	if err != nil {
		h.logger.Error("render csv template", slog.String("error", err.Error()))
		http.Error(w, "template unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="import-template.csv"`)
	w.Write(data)
}

func (h *Handler) templateXLSX(w http.ResponseWriter, r *http.Request) {
	data, err := template.XLSX()
	if err != nil {
		h.logger.Error("render xlsx template", slog.String("error", err.Error()))
		http.Error(w, "template unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="import-template.xlsx"`)
	w.Write(data)
}

func (h *Handler) catalogSearch(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "q parameter is required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	hits, err := h.svc.SearchCatalog(r.Context(), userID, query, limit)
	if err != nil {
		h.logger.Error("catalog search failed", slog.String("error", err.Error()))
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	out := make([]catalogHitDTO, 0, len(hits))
	for _, hit := range hits {
		out = append(out, catalogHitDTO{
			ID:    hit.ID.String(),
			Name:  hit.Name,
			Kind:  hit.Kind,
			Score: hit.Score,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// readUpload parses the multipart form and returns the file bytes plus the
// decode options from the form fields.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, service.Options, bool) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return nil, service.Options{}, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return nil, service.Options{}, false
	}
	defer file.Close()

	fileData, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return nil, service.Options{}, false
	}
	if int64(len(fileData)) > h.maxUploadBytes {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return nil, service.Options{}, false
	}

	format := decoder.Format(r.FormValue("format"))
	if format == "" {
		format = decoder.FormatCSV
	}

	opts := service.Options{
		Format: format,
		CSV: decoder.CSVOptions{
			HasHeader: r.FormValue("has_header") != "false",
			Encoding:  r.FormValue("encoding"),
		},
	}
	if d := r.FormValue("delimiter"); d != "" {
		opts.CSV.Delimiter = rune(d[0])
	}
	if d := r.FormValue("decimal_separator"); d != "" {
		opts.CSV.DecimalSeparator = rune(d[0])
	}
	return fileData, opts, true
}

// readMappingOverride parses the optional mapping form field. A missing field
// means the service should suggest a mapping itself.
func (h *Handler) readMappingOverride(w http.ResponseWriter, r *http.Request) (*mapper.Mapping, bool) {
	raw := r.FormValue("mapping")
	if raw == "" {
		return nil, true
	}

	var dto mappingDTO
	if err := json.Unmarshal([]byte(raw), &dto); err != nil {
		http.Error(w, "invalid mapping: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	m := mapper.NewPositional(len(dto.Fields))
	m.Headers = dto.Headers
	for col, name := range dto.Fields {
		field, ok := mapper.FieldFromString(name)
		if !ok {
			http.Error(w, "invalid mapping field: "+name, http.StatusBadRequest)
			return nil, false
		}
		m.Assign(col, field)
	}
	return m, true
}

// applyOverrides patches decisions in place from the user's confirmation
// payload, matched by normalized key.
func (h *Handler) applyOverrides(w http.ResponseWriter, raw string, decisions []reconcile.Decision) bool {
	var overrides []decisionOverrideDTO
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		http.Error(w, "invalid decisions: "+err.Error(), http.StatusBadRequest)
		return false
	}

	byKey := make(map[string]int, len(decisions))
	for i, d := range decisions {
		byKey[d.Key] = i
	}

	for _, o := range overrides {
		i, found := byKey[o.Key]
		if !found {
			continue
		}
		action, ok := reconcile.ActionFromString(o.Action)
		if !ok {
			http.Error(w, "invalid decision action: "+o.Action, http.StatusBadRequest)
			return false
		}
		decisions[i].Action = action
		decisions[i].SystemID = nil
		if o.SystemID != "" {
			id, err := uuid.Parse(o.SystemID)
			if err != nil {
				http.Error(w, "invalid system_id: "+o.SystemID, http.StatusBadRequest)
				return false
			}
			decisions[i].SystemID = &id
		}
	}
	return true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		http.Error(w, "X-User-ID header is required", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid X-User-ID header", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, decoder.ErrEmptyFile),
		errors.Is(err, decoder.ErrNoRows),
		errors.Is(err, decoder.ErrUnsplittable),
		errors.Is(err, decoder.ErrUnsupportedFormat):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("import request failed", slog.String("error", err.Error()))
		http.Error(w, "import failed", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func toMappingDTO(m *mapper.Mapping) mappingDTO {
	fields := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		fields[i] = string(f)
	}
	return mappingDTO{Headers: m.Headers, Fields: fields, Warnings: m.Warnings}
}

func toPreviewResponse(p *service.PreviewResult) previewResponse {
	txs := make([]transactionDTO, 0, len(p.Transactions))
	for _, tx := range p.Transactions {
		txs = append(txs, transactionDTO{
			Date:             tx.Date,
			Description:      tx.Description,
			Amount:           tx.Amount.String(),
			Type:             string(tx.Type),
			Category:         tx.Category,
			Tags:             tx.Tags,
			Reference:        tx.Reference,
			SourceRow:        tx.SourceRow,
			ValidationErrors: tx.ValidationErrors,
		})
	}

	return previewResponse{
		Mapping:           toMappingDTO(p.Mapping),
		Transactions:      txs,
		SkippedRows:       p.SkippedRows,
		TotalRows:         p.TotalRows,
		CategoryDecisions: toDecisionDTOs(p.CategoryDecisions),
		TagDecisions:      toDecisionDTOs(p.TagDecisions),
		IsValid:           p.Report.IsValid,
		Errors:            p.Report.Errors,
		Warnings:          p.Report.Warnings,
		Stats:             p.Report.Stats,
	}
}

func toDecisionDTOs(decisions []reconcile.Decision) []decisionDTO {
	out := make([]decisionDTO, 0, len(decisions))
	for _, d := range decisions {
		dto := decisionDTO{
			Name:       d.Name,
			Key:        d.Key,
			Action:     string(d.Action),
			Confidence: d.Confidence,
			Type:       string(d.Type),
			Count:      d.Count,
		}
		if d.SystemID != nil {
			dto.SystemID = d.SystemID.String()
		}
		out = append(out, dto)
	}
	return out
}
