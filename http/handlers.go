package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"winequality/ml"
	"winequality/monitoring"
	"winequality/predict"
	"winequality/wine"
)

const (
	modelLoadFailed = "Failed to load prediction model. Please check the model file."
	datasetName     = "winequality-red.csv"
)

// Options wiring for the page and API handlers
type Options struct {
	Service           *predict.Service
	Hub               *monitoring.WebSocketHub
	DatasetPath       string
	ModelPath         string
	ModelDownloadName string
	Title             string
	PageSize          int
	Logger            *zap.Logger
}

type Handlers struct {
	service           *predict.Service
	hub               *monitoring.WebSocketHub
	datasetPath       string
	modelPath         string
	modelDownloadName string
	title             string
	pageSize          int
	log               *zap.Logger
	pages             *template.Template
}

func NewHandlers(opts Options) (*Handlers, error) {
	if opts.Service == nil {
		return nil, errors.New("http: prediction service required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.ModelDownloadName == "" {
		opts.ModelDownloadName = filepath.Base(opts.ModelPath)
	}
	if opts.Title == "" {
		opts.Title = "Wine Quality Prediction App"
	}
	pages, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("http: parse templates: %w", err)
	}
	return &Handlers{
		service:           opts.Service,
		hub:               opts.Hub,
		datasetPath:       opts.DatasetPath,
		modelPath:         opts.ModelPath,
		modelDownloadName: opts.ModelDownloadName,
		title:             opts.Title,
		pageSize:          opts.PageSize,
		log:               opts.Logger,
		pages:             pages,
	}, nil
}

// Register mounts every route on mux. API routes are bounded by apiTimeout.
func (h *Handlers) Register(mux *http.ServeMux, apiTimeout time.Duration) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /predict", h.handlePredictForm)
	mux.HandleFunc("GET /dataset", h.handleDataset)
	mux.HandleFunc("GET /download/dataset", h.handleDownloadDataset)
	mux.HandleFunc("GET /download/model", h.handleDownloadModel)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(assetsFS())))

	api := TimeoutMiddleware(apiTimeout)
	mux.Handle("GET /api/health", api(http.HandlerFunc(h.handleHealth)))
	mux.Handle("GET /api/fields", api(http.HandlerFunc(h.handleFields)))
	mux.Handle("POST /api/predict", api(http.HandlerFunc(h.handlePredictAPI)))
	mux.Handle("GET /api/predictions", api(http.HandlerFunc(h.handlePredictions)))
	mux.Handle("GET /api/stats", api(http.HandlerFunc(h.handleStats)))

	if h.hub != nil {
		mux.HandleFunc("GET /ws/predictions", h.hub.ServeWS)
	}
}

// pageData everything the form page renders
type pageData struct {
	Title      string
	Fields     []formField
	Summary    []summaryCell
	Scale      []wine.Grade
	Result     *predict.Result
	Success    string
	Errors     []string
	ModelError string
	ModelName  string
	Dataset    *datasetPage
}

type formField struct {
	wine.Field
	Value string
}

type summaryCell struct {
	Column string
	Value  string
}

type datasetPage struct {
	Header   []string
	Rows     [][]string
	Page     int
	Pages    int
	Total    int
	PrevPage int
	NextPage int
}

func (h *Handlers) newPage(sample wine.Sample) *pageData {
	f := h.service.Formatter()
	values := sample.Vector()

	page := &pageData{
		Title:     h.title,
		Scale:     wine.Scale(),
		ModelName: h.modelDownloadName,
	}
	for i, field := range wine.Fields() {
		page.Fields = append(page.Fields, formField{
			Field: field,
			Value: strconv.FormatFloat(values[i], 'f', -1, 64),
		})
		page.Summary = append(page.Summary, summaryCell{
			Column: field.Column,
			Value:  f.Value(values[i]),
		})
	}
	if !h.service.Ready() {
		if err := h.service.LoadError(); err != nil {
			page.Errors = append(page.Errors, "Error loading model: "+err.Error())
		}
		page.ModelError = modelLoadFailed
	}
	return page
}

func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, h.newPage(wine.DefaultSample()))
}

func (h *Handlers) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		page := h.newPage(wine.DefaultSample())
		page.Errors = append(page.Errors, "Invalid form submission: "+err.Error())
		h.render(w, http.StatusBadRequest, page)
		return
	}

	sample, err := wine.ParseValues(r.PostForm)
	if err != nil {
		page := h.newPage(sample)
		var verrs wine.ValidationErrors
		if errors.As(err, &verrs) {
			for _, verr := range verrs {
				page.Errors = append(page.Errors, verr.Error())
			}
		} else {
			page.Errors = append(page.Errors, err.Error())
		}
		h.render(w, http.StatusUnprocessableEntity, page)
		return
	}

	page := h.newPage(sample)
	if page.ModelError != "" {
		h.render(w, http.StatusServiceUnavailable, page)
		return
	}

	result, err := h.service.Predict(r.Context(), sample)
	if err != nil {
		h.log.Warn("form prediction failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		page.Errors = append(page.Errors, "Prediction failed: "+err.Error())
		h.render(w, http.StatusOK, page)
		return
	}
	page.Result = result
	page.Success = result.Message
	h.render(w, http.StatusOK, page)
}

func (h *Handlers) handleDataset(w http.ResponseWriter, r *http.Request) {
	pageNum := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageNum = n
		}
	}

	page := h.newPage(wine.DefaultSample())
	table, err := ml.ReadTable(h.datasetPath, (pageNum-1)*h.pageSize, h.pageSize)
	if err != nil {
		h.log.Warn("dataset read failed", zap.String("path", h.datasetPath), zap.Error(err))
		page.Errors = append(page.Errors, "Error loading dataset: "+err.Error())
		h.render(w, http.StatusInternalServerError, page)
		return
	}

	f := h.service.Formatter()
	pages := (table.Total + h.pageSize - 1) / h.pageSize
	if pages == 0 {
		pages = 1
	}
	ds := &datasetPage{Rows: table.Rows, Page: pageNum, Pages: pages, Total: table.Total}
	for _, column := range table.Header {
		ds.Header = append(ds.Header, f.ColumnTitle(column))
	}
	if pageNum > 1 {
		ds.PrevPage = pageNum - 1
	}
	if pageNum < pages {
		ds.NextPage = pageNum + 1
	}
	page.Dataset = ds
	h.render(w, http.StatusOK, page)
}

func (h *Handlers) handleDownloadDataset(w http.ResponseWriter, r *http.Request) {
	h.serveAttachment(w, r, h.datasetPath, datasetName, "text/csv")
}

func (h *Handlers) handleDownloadModel(w http.ResponseWriter, r *http.Request) {
	h.serveAttachment(w, r, h.modelPath, h.modelDownloadName, "application/octet-stream")
}

// serveAttachment streams the file unchanged so downloads match the bytes on disk.
func (h *Handlers) serveAttachment(w http.ResponseWriter, r *http.Request, path, name, contentType string) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		h.log.Error("open download", zap.String("path", path), zap.Error(err))
		http.Error(w, "failed to open file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "failed to stat file", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func (h *Handlers) render(w http.ResponseWriter, status int, page *pageData) {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, "index.tmpl", page); err != nil {
		h.log.Error("render page", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// respondJSON 统一JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
