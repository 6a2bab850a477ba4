// Package reports builds tabular snapshots of the shop's data and exports
// them asynchronously to blob storage.
package reports

import (
	"context"
	"fmt"
	"time"

	"floracore/internal/core"
)

// Kind selects which report to build.
type Kind string

const (
	KindInventory Kind = "inventory"
	KindWriteoffs Kind = "writeoffs"
	KindOrders    Kind = "orders"
)

// Valid reports whether k names a known report.
func (k Kind) Valid() bool {
	switch k {
	case KindInventory, KindWriteoffs, KindOrders:
		return true
	}
	return false
}

// Format selects the rendered output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Valid reports whether f names a supported format.
func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatJSON
}

// Dataset is a built report ready for rendering.
type Dataset struct {
	Kind        Kind             `json:"kind"`
	Columns     []string         `json:"columns"`
	Rows        []map[string]any `json:"rows"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Builder materializes report datasets from the service layer.
type Builder struct {
	svc *core.Service
}

// NewBuilder constructs a report builder over the service.
func NewBuilder(svc *core.Service) Builder {
	return Builder{svc: svc}
}

// Build returns the dataset for the requested kind.
func (b Builder) Build(ctx context.Context, kind Kind) (Dataset, error) {
	switch kind {
	case KindInventory:
		return b.inventory(ctx)
	case KindWriteoffs:
		return b.writeoffs(ctx)
	case KindOrders:
		return b.orders(ctx)
	default:
		return Dataset{}, fmt.Errorf("unknown report kind %s", kind)
	}
}

func (b Builder) inventory(ctx context.Context) (Dataset, error) {
	flowers, err := b.svc.ListFlowers(ctx)
	if err != nil {
		return Dataset{}, err
	}
	ds := Dataset{
		Kind:        KindInventory,
		Columns:     []string{"id", "flower", "amount", "dateTime"},
		GeneratedAt: time.Now().UTC(),
	}
	for _, f := range flowers {
		ds.Rows = append(ds.Rows, map[string]any{
			"id":       f.ID,
			"flower":   f.Flower,
			"amount":   f.Amount,
			"dateTime": f.UpdatedAt.Format(time.RFC3339),
		})
	}
	return ds, nil
}

func (b Builder) writeoffs(ctx context.Context) (Dataset, error) {
	writeoffs, err := b.svc.ListWriteoffs(ctx)
	if err != nil {
		return Dataset{}, err
	}
	ds := Dataset{
		Kind:        KindWriteoffs,
		Columns:     []string{"id", "flower", "amount", "dateTime"},
		GeneratedAt: time.Now().UTC(),
	}
	for _, w := range writeoffs {
		ds.Rows = append(ds.Rows, map[string]any{
			"id":       w.ID,
			"flower":   w.Flower,
			"amount":   w.Amount,
			"dateTime": w.RecordedAt.Format(time.RFC3339),
		})
	}
	return ds, nil
}

func (b Builder) orders(ctx context.Context) (Dataset, error) {
	orders, err := b.svc.ListOrders(ctx)
	if err != nil {
		return Dataset{}, err
	}
	ds := Dataset{
		Kind:        KindOrders,
		Columns:     []string{"id", "from", "to", "address", "dateTime", "status", "items"},
		GeneratedAt: time.Now().UTC(),
	}
	for _, o := range orders {
		items, err := b.svc.GetOrderItems(ctx, o.ID)
		if err != nil {
			return Dataset{}, err
		}
		lines := make([]string, 0, len(items))
		for _, item := range items {
			lines = append(lines, fmt.Sprintf("%s x%d", item.Flower, item.Amount))
		}
		ds.Rows = append(ds.Rows, map[string]any{
			"id":       o.ID,
			"from":     o.From,
			"to":       o.To,
			"address":  o.Address,
			"dateTime": o.ScheduledAt.Format(time.RFC3339),
			"status":   string(o.Status),
			"items":    lines,
		})
	}
	return ds, nil
}
