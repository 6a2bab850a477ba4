package core

import "floracore/pkg/domain"

type (
	EntityType         = domain.EntityType
	OrderStatus        = domain.OrderStatus
	Severity           = domain.Severity
	FlowerStock        = domain.FlowerStock
	Writeoff           = domain.Writeoff
	Note               = domain.Note
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	User               = domain.User
	OrderPatch         = domain.OrderPatch
	FlowerStockPatch   = domain.FlowerStockPatch
	NotePatch          = domain.NotePatch
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	NotFoundError      = domain.NotFoundError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityFlowerStock = domain.EntityFlowerStock
	EntityWriteoff    = domain.EntityWriteoff
	EntityNote        = domain.EntityNote
	EntityOrder       = domain.EntityOrder
	EntityOrderItem   = domain.EntityOrderItem
	EntityUser        = domain.EntityUser
)

const (
	StatusNew       = domain.StatusNew
	StatusAssembled = domain.StatusAssembled
	StatusSent      = domain.StatusSent
	StatusFinished  = domain.StatusFinished
	StatusDeleted   = domain.StatusDeleted
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine constructs an engine with the shop's standard rules
// registered: stock shortfall and status transition checks.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewStockShortfallRule())
	engine.Register(NewStatusTransitionRule())
	return engine
}
