package core

import (
	"context"
	"fmt"

	"floracore/pkg/domain"
)

// NewStockShortfallRule returns the in-transaction rule that surfaces
// clamp-at-zero shortfalls and consumption entries whose flower name matches
// no warehouse record. Both findings warn; neither blocks the commit.
func NewStockShortfallRule() domain.Rule {
	return stockShortfallRule{}
}

type stockShortfallRule struct{}

func (stockShortfallRule) Name() string { return "stock_shortfall" }

// Evaluate walks the change log in order. Each write-off or order item create
// is followed by the stock decrement it triggered, if any; a missing follower
// means no warehouse record matched the name.
func (stockShortfallRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for i, change := range changes {
		if change.Action != domain.ActionCreate {
			continue
		}

		var entity domain.EntityType
		var entityID int
		var flower string
		var requested int
		switch change.Entity {
		case domain.EntityWriteoff:
			w, ok := change.After.(domain.Writeoff)
			if !ok {
				continue
			}
			entity, entityID, flower, requested = domain.EntityWriteoff, w.ID, w.Flower, w.Amount
		case domain.EntityOrderItem:
			item, ok := change.After.(domain.OrderItem)
			if !ok {
				continue
			}
			entity, entityID, flower, requested = domain.EntityOrderItem, item.ID, item.Flower, item.Amount
		default:
			continue
		}

		before, matched := consumedStock(changes, i+1, flower)
		if !matched {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "stock_shortfall",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("no warehouse record matches flower %q; stock left untouched", flower),
				Entity:   entity,
				EntityID: entityID,
			})
			continue
		}
		if before.Amount < requested {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "stock_shortfall",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("requested %d of %q but only %d in stock; clamped at zero", requested, flower, before.Amount),
				Entity:   entity,
				EntityID: entityID,
			})
		}
	}
	return res, nil
}

// consumedStock reports whether changes[idx] is the stock decrement recorded
// for the named flower and returns its pre-decrement state.
func consumedStock(changes []domain.Change, idx int, flower string) (domain.FlowerStock, bool) {
	if idx >= len(changes) {
		return domain.FlowerStock{}, false
	}
	next := changes[idx]
	if next.Entity != domain.EntityFlowerStock || next.Action != domain.ActionUpdate {
		return domain.FlowerStock{}, false
	}
	before, ok := next.Before.(domain.FlowerStock)
	if !ok || before.Flower != flower {
		return domain.FlowerStock{}, false
	}
	after, ok := next.After.(domain.FlowerStock)
	if !ok || after.Amount > before.Amount {
		return domain.FlowerStock{}, false
	}
	return before, true
}
