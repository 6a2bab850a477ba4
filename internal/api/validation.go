package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"floracore/pkg/domain"
)

// FieldError describes a single validation failure in a request body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func fieldError(field, format string, args ...any) FieldError {
	return FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type flowerCreateRequest struct {
	Flower string `json:"flower"`
	Amount int    `json:"amount"`
}

func (r flowerCreateRequest) validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Flower) == "" {
		errs = append(errs, fieldError("flower", "flower name is required"))
	}
	if r.Amount < 1 {
		errs = append(errs, fieldError("amount", "amount must be at least 1"))
	}
	return errs
}

type flowerUpdateRequest struct {
	Flower *string `json:"flower"`
	Amount *int    `json:"amount"`
}

func (r flowerUpdateRequest) validate() []FieldError {
	var errs []FieldError
	if r.Flower != nil && strings.TrimSpace(*r.Flower) == "" {
		errs = append(errs, fieldError("flower", "flower name must not be empty"))
	}
	// Direct stock edits may zero a record but never go negative.
	if r.Amount != nil && *r.Amount < 0 {
		errs = append(errs, fieldError("amount", "amount must not be negative"))
	}
	return errs
}

func (r flowerUpdateRequest) patch() domain.FlowerStockPatch {
	return domain.FlowerStockPatch{Flower: r.Flower, Amount: r.Amount}
}

type writeoffCreateRequest struct {
	Flower string `json:"flower"`
	Amount int    `json:"amount"`
}

func (r writeoffCreateRequest) validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Flower) == "" {
		errs = append(errs, fieldError("flower", "flower name is required"))
	}
	if r.Amount < 1 {
		errs = append(errs, fieldError("amount", "amount must be at least 1"))
	}
	return errs
}

type noteCreateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (r noteCreateRequest) validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, fieldError("title", "title is required"))
	}
	if strings.TrimSpace(r.Content) == "" {
		errs = append(errs, fieldError("content", "content is required"))
	}
	return errs
}

type noteUpdateRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (r noteUpdateRequest) validate() []FieldError {
	var errs []FieldError
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		errs = append(errs, fieldError("title", "title must not be empty"))
	}
	if r.Content != nil && strings.TrimSpace(*r.Content) == "" {
		errs = append(errs, fieldError("content", "content must not be empty"))
	}
	return errs
}

func (r noteUpdateRequest) patch() domain.NotePatch {
	return domain.NotePatch{Title: r.Title, Content: r.Content}
}

type orderItemRequest struct {
	Flower string `json:"flower"`
	Amount int    `json:"amount"`
}

func validateItems(items []orderItemRequest) []FieldError {
	var errs []FieldError
	for i, item := range items {
		if strings.TrimSpace(item.Flower) == "" {
			errs = append(errs, fieldError(fmt.Sprintf("items[%d].flower", i), "flower name is required"))
		}
		if item.Amount < 1 {
			errs = append(errs, fieldError(fmt.Sprintf("items[%d].amount", i), "amount must be at least 1"))
		}
	}
	return errs
}

func toDomainItems(items []orderItemRequest) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.OrderItem{Flower: item.Flower, Amount: item.Amount})
	}
	return out
}

type orderCreateBody struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Address  string  `json:"address"`
	DateTime string  `json:"dateTime"`
	Notes    *string `json:"notes"`
	Status   string  `json:"status"`
}

type orderCreateRequest struct {
	Order orderCreateBody    `json:"order"`
	Items []orderItemRequest `json:"items"`
}

func (r orderCreateRequest) validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Order.From) == "" {
		errs = append(errs, fieldError("order.from", "sender is required"))
	}
	if strings.TrimSpace(r.Order.To) == "" {
		errs = append(errs, fieldError("order.to", "recipient is required"))
	}
	if strings.TrimSpace(r.Order.Address) == "" {
		errs = append(errs, fieldError("order.address", "address is required"))
	}
	if _, err := parseDateTime(r.Order.DateTime); err != nil {
		errs = append(errs, fieldError("order.dateTime", "dateTime must be an RFC 3339 timestamp"))
	}
	if r.Order.Status != "" && !domain.OrderStatus(r.Order.Status).Valid() {
		errs = append(errs, fieldError("order.status", "unknown status %q", r.Order.Status))
	}
	errs = append(errs, validateItems(r.Items)...)
	return errs
}

func (r orderCreateRequest) order() domain.Order {
	scheduled, _ := parseDateTime(r.Order.DateTime)
	return domain.Order{
		From:        r.Order.From,
		To:          r.Order.To,
		Address:     r.Order.Address,
		ScheduledAt: scheduled,
		Notes:       r.Order.Notes,
		Status:      domain.OrderStatus(r.Order.Status),
	}
}

type orderUpdateBody struct {
	From     *string         `json:"from"`
	To       *string         `json:"to"`
	Address  *string         `json:"address"`
	DateTime *string         `json:"dateTime"`
	Notes    json.RawMessage `json:"notes"`
	Status   *string         `json:"status"`
}

type orderUpdateRequest struct {
	Order orderUpdateBody    `json:"order"`
	Items []orderItemRequest `json:"items"`
}

func (r orderUpdateRequest) validate() []FieldError {
	var errs []FieldError
	if r.Order.From != nil && strings.TrimSpace(*r.Order.From) == "" {
		errs = append(errs, fieldError("order.from", "sender must not be empty"))
	}
	if r.Order.To != nil && strings.TrimSpace(*r.Order.To) == "" {
		errs = append(errs, fieldError("order.to", "recipient must not be empty"))
	}
	if r.Order.Address != nil && strings.TrimSpace(*r.Order.Address) == "" {
		errs = append(errs, fieldError("order.address", "address must not be empty"))
	}
	if r.Order.DateTime != nil {
		if _, err := parseDateTime(*r.Order.DateTime); err != nil {
			errs = append(errs, fieldError("order.dateTime", "dateTime must be an RFC 3339 timestamp"))
		}
	}
	if r.Order.Status != nil && !domain.OrderStatus(*r.Order.Status).Valid() {
		errs = append(errs, fieldError("order.status", "unknown status %q", *r.Order.Status))
	}
	if len(r.Order.Notes) > 0 && string(r.Order.Notes) != "null" {
		var s string
		if err := json.Unmarshal(r.Order.Notes, &s); err != nil {
			errs = append(errs, fieldError("order.notes", "notes must be a string or null"))
		}
	}
	errs = append(errs, validateItems(r.Items)...)
	return errs
}

// patch builds the partial update. A JSON null for notes clears them; an
// absent notes field leaves them untouched.
func (r orderUpdateRequest) patch() domain.OrderPatch {
	patch := domain.OrderPatch{
		From:    r.Order.From,
		To:      r.Order.To,
		Address: r.Order.Address,
	}
	if r.Order.DateTime != nil {
		if t, err := parseDateTime(*r.Order.DateTime); err == nil {
			patch.ScheduledAt = &t
		}
	}
	if len(r.Order.Notes) > 0 {
		patch.NotesSet = true
		if string(r.Order.Notes) != "null" {
			var s string
			if err := json.Unmarshal(r.Order.Notes, &s); err == nil {
				patch.Notes = &s
			}
		}
	}
	if r.Order.Status != nil {
		status := domain.OrderStatus(*r.Order.Status)
		patch.Status = &status
	}
	return patch
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

func (r orderStatusRequest) validate() []FieldError {
	if !domain.OrderStatus(r.Status).Valid() {
		return []FieldError{fieldError("status", "unknown status %q", r.Status)}
	}
	return nil
}

func parseDateTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		// tolerate timestamps without an offset
		t, err = time.Parse("2006-01-02T15:04:05", value)
	}
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
