package core

import (
	"context"
	"fmt"

	"floracore/pkg/domain"
)

// NewStatusTransitionRule returns the in-transaction rule that flags order
// status moves outside the documented progression. The store accepts any
// valid status, so backwards jumps and step skips commit with a warning.
func NewStatusTransitionRule() domain.Rule {
	return statusTransitionRule{}
}

type statusTransitionRule struct{}

func (statusTransitionRule) Name() string { return "status_transition" }

func (statusTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityOrder || change.Action != domain.ActionUpdate {
			continue
		}
		before, ok := change.Before.(domain.Order)
		if !ok {
			continue
		}
		after, ok := change.After.(domain.Order)
		if !ok {
			continue
		}
		if before.Status == after.Status {
			continue
		}
		if domain.ForwardTransition(before.Status, after.Status) {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "status_transition",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("order %d moved %s -> %s outside the delivery progression", after.ID, before.Status, after.Status),
			Entity:   domain.EntityOrder,
			EntityID: after.ID,
		})
	}
	return res, nil
}
