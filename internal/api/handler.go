// Package api exposes the shop's HTTP surface: warehouse, write-offs, notes,
// orders, and report exports, all JSON under /api.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"floracore/internal/core"
	"floracore/internal/reports"
	"floracore/pkg/domain"
)

// WarningHeader carries rule warnings on otherwise successful responses so
// the documented response bodies stay bare entities.
const WarningHeader = "X-Floracore-Warning"

// Handler routes the /api surface onto the service layer.
type Handler struct {
	svc     *core.Service
	exports reports.Scheduler
	logger  core.Logger
	mux     *http.ServeMux
}

// Option customizes handler construction.
type Option func(*Handler)

// WithExportScheduler wires the asynchronous report export endpoints.
func WithExportScheduler(scheduler reports.Scheduler) Option {
	return func(h *Handler) { h.exports = scheduler }
}

// WithLogger overrides the handler logger.
func WithLogger(logger core.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs the API handler over the service.
func NewHandler(svc *core.Service, options ...Option) *Handler {
	h := &Handler{svc: svc, logger: slog.Default()}
	for _, opt := range options {
		opt(h)
	}
	h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/flowers", h.handleListFlowers)
	mux.HandleFunc("GET /api/flowers/{id}", h.handleGetFlower)
	mux.HandleFunc("POST /api/flowers", h.handleAddFlowers)
	mux.HandleFunc("PUT /api/flowers/{id}", h.handleUpdateFlower)

	mux.HandleFunc("GET /api/writeoffs", h.handleListWriteoffs)
	mux.HandleFunc("POST /api/writeoffs", h.handleAddWriteoff)

	mux.HandleFunc("GET /api/notes", h.handleListNotes)
	mux.HandleFunc("GET /api/notes/{id}", h.handleGetNote)
	mux.HandleFunc("POST /api/notes", h.handleAddNote)
	mux.HandleFunc("PUT /api/notes/{id}", h.handleUpdateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", h.handleDeleteNote)

	mux.HandleFunc("GET /api/orders", h.handleListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.handleGetOrder)
	mux.HandleFunc("GET /api/orders/{id}/items", h.handleGetOrderItems)
	mux.HandleFunc("POST /api/orders", h.handleCreateOrder)
	mux.HandleFunc("PUT /api/orders/{id}/status", h.handleUpdateOrderStatus)
	mux.HandleFunc("PUT /api/orders/{id}", h.handleUpdateOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", h.handleDeleteOrder)

	mux.HandleFunc("POST /api/reports/exports", h.handleCreateExport)
	mux.HandleFunc("GET /api/reports/exports", h.handleListExports)
	mux.HandleFunc("GET /api/reports/exports/{id}", h.handleGetExport)

	h.mux = mux
}

// --- warehouse ---

func (h *Handler) handleListFlowers(w http.ResponseWriter, r *http.Request) {
	flowers, err := h.svc.ListFlowers(r.Context())
	if err != nil {
		h.serverError(w, err, "Failed to fetch flowers")
		return
	}
	writeJSON(w, http.StatusOK, emptyAsList(flowers))
}

func (h *Handler) handleGetFlower(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	flower, err := h.svc.GetFlower(r.Context(), id)
	if err != nil {
		h.entityError(w, err, "Flower not found", "Failed to fetch flower")
		return
	}
	writeJSON(w, http.StatusOK, flower)
}

func (h *Handler) handleAddFlowers(w http.ResponseWriter, r *http.Request) {
	var req flowerCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	flower, res, err := h.svc.AddFlowers(r.Context(), req.Flower, req.Amount)
	if err != nil {
		h.serverError(w, err, "Failed to add flowers")
		return
	}
	setWarnings(w, res)
	writeJSON(w, http.StatusCreated, flower)
}

func (h *Handler) handleUpdateFlower(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req flowerUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	flower, res, err := h.svc.UpdateFlowerStock(r.Context(), id, req.patch())
	if err != nil {
		h.entityError(w, err, "Flower not found", "Failed to update flower")
		return
	}
	setWarnings(w, res)
	writeJSON(w, http.StatusOK, flower)
}

// --- write-offs ---

func (h *Handler) handleListWriteoffs(w http.ResponseWriter, r *http.Request) {
	writeoffs, err := h.svc.ListWriteoffs(r.Context())
	if err != nil {
		h.serverError(w, err, "Failed to fetch writeoffs")
		return
	}
	writeJSON(w, http.StatusOK, emptyAsList(writeoffs))
}

func (h *Handler) handleAddWriteoff(w http.ResponseWriter, r *http.Request) {
	var req writeoffCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	writeoff, res, err := h.svc.AddWriteoff(r.Context(), req.Flower, req.Amount)
	if err != nil {
		h.serverError(w, err, "Failed to add writeoff")
		return
	}
	setWarnings(w, res)
	writeJSON(w, http.StatusCreated, writeoff)
}

// --- notes ---

func (h *Handler) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ListNotes(r.Context())
	if err != nil {
		h.serverError(w, err, "Failed to fetch notes")
		return
	}
	writeJSON(w, http.StatusOK, emptyAsList(notes))
}

func (h *Handler) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		h.entityError(w, err, "Note not found", "Failed to fetch note")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *Handler) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req noteCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	note, _, err := h.svc.AddNote(r.Context(), req.Title, req.Content)
	if err != nil {
		h.serverError(w, err, "Failed to add note")
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *Handler) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req noteUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	note, _, err := h.svc.UpdateNote(r.Context(), id, req.patch())
	if err != nil {
		h.entityError(w, err, "Note not found", "Failed to update note")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *Handler) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.DeleteNote(r.Context(), id); err != nil {
		h.entityError(w, err, "Note not found", "Failed to delete note")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- orders ---

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListOrders(r.Context())
	if err != nil {
		h.serverError(w, err, "Failed to fetch orders")
		return
	}
	writeJSON(w, http.StatusOK, emptyAsList(orders))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		h.entityError(w, err, "Order not found", "Failed to fetch order")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleGetOrderItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	items, err := h.svc.GetOrderItems(r.Context(), id)
	if err != nil {
		h.entityError(w, err, "Order not found", "Failed to fetch order items")
		return
	}
	writeJSON(w, http.StatusOK, emptyAsList(items))
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	order, res, err := h.svc.CreateOrder(r.Context(), req.order(), toDomainItems(req.Items))
	if err != nil {
		h.serverError(w, err, "Failed to create order")
		return
	}
	setWarnings(w, res)
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req orderStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	order, res, err := h.svc.UpdateOrderStatus(r.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		h.entityError(w, err, "Order not found", "Failed to update order status")
		return
	}
	setWarnings(w, res)
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req orderUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	order, res, err := h.svc.UpdateOrder(r.Context(), id, req.patch(), toDomainItems(req.Items))
	if err != nil {
		h.entityError(w, err, "Order not found", "Failed to update order")
		return
	}
	setWarnings(w, res)
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	_, res, err := h.svc.DeleteOrder(r.Context(), id)
	if err != nil {
		h.entityError(w, err, "Order not found", "Failed to delete order")
		return
	}
	setWarnings(w, res)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- report exports ---

type exportRequest struct {
	Report      string   `json:"report"`
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requestedBy"`
	Reason      string   `json:"reason"`
}

func (h *Handler) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		writeMessage(w, http.StatusNotFound, "Report exports not configured")
		return
	}
	var req exportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	formats := make([]reports.Format, 0, len(req.Formats))
	for _, f := range req.Formats {
		formats = append(formats, reports.Format(f))
	}
	record, err := h.exports.Enqueue(r.Context(), reports.Input{
		Report:      reports.Kind(req.Report),
		Formats:     formats,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	})
	if err != nil {
		writeFieldErrors(w, []FieldError{fieldError("report", "%s", err.Error())})
		return
	}
	writeJSON(w, http.StatusAccepted, record)
}

func (h *Handler) handleListExports(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		writeMessage(w, http.StatusNotFound, "Report exports not configured")
		return
	}
	writeJSON(w, http.StatusOK, h.exports.List())
}

func (h *Handler) handleGetExport(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		writeMessage(w, http.StatusNotFound, "Report exports not configured")
		return
	}
	record, ok := h.exports.Get(r.PathValue("id"))
	if !ok {
		writeMessage(w, http.StatusNotFound, "Export not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// --- helpers ---

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeFieldErrors(w, []FieldError{fieldError("id", "id must be an integer")})
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeFieldErrors(w, []FieldError{fieldError("body", "invalid JSON payload")})
		return false
	}
	return true
}

func (h *Handler) entityError(w http.ResponseWriter, err error, notFound, failed string) {
	var nf domain.NotFoundError
	if errors.As(err, &nf) {
		writeMessage(w, http.StatusNotFound, notFound)
		return
	}
	h.serverError(w, err, failed)
}

func (h *Handler) serverError(w http.ResponseWriter, err error, message string) {
	h.logger.Error(message, "error", err)
	writeMessage(w, http.StatusInternalServerError, message)
}

func setWarnings(w http.ResponseWriter, res domain.Result) {
	for _, warning := range res.Warnings() {
		w.Header().Add(WarningHeader, warning.Message)
	}
}

// emptyAsList keeps empty collections rendering as [] instead of null.
func emptyAsList[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeFieldErrors(w http.ResponseWriter, errs []FieldError) {
	writeJSON(w, http.StatusBadRequest, map[string][]FieldError{"errors": errs})
}
