package order

import "fmt"

type Action string

const (
	ActionConfirm Action = "confirm"
	ActionProcess Action = "process"
	ActionShip    Action = "ship"
	ActionDeliver Action = "deliver"
	ActionCancel  Action = "cancel"
	ActionRefund  Action = "refund"
	ActionDelete  Action = "delete"
	ActionUpdate  Action = "update"
)

func (a Action) String() string {
	return string(a)
}

func (a Action) Valid() bool {
	switch a {
	case ActionConfirm, ActionProcess, ActionShip, ActionDeliver,
		ActionCancel, ActionRefund, ActionDelete, ActionUpdate:
		return true
	default:
		return false
	}
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

// Rule describes from which statuses an action may be applied and where it
// leaves the order. Target is empty for delete.
type Rule struct {
	allowedFrom map[Status]struct{}
	Target      Status
	Message     string
}

func (r Rule) Allows(current Status) bool {
	_, ok := r.allowedFrom[current]
	return ok
}

func newRule(target Status, message string, from ...Status) Rule {
	allowed := make(map[Status]struct{}, len(from))
	for _, s := range from {
		allowed[s] = struct{}{}
	}
	return Rule{allowedFrom: allowed, Target: target, Message: message}
}

// transitionRules is the only place legal status transitions are defined.
// update has no entry: it never changes status.
var transitionRules = map[Action]Rule{
	ActionConfirm: newRule(StatusConfirmed, "Only pending orders can be confirmed",
		StatusPending),
	ActionProcess: newRule(StatusProcessing, "Only confirmed orders can be processed",
		StatusConfirmed),
	ActionShip: newRule(StatusShipped, "Only processing orders can be shipped",
		StatusProcessing),
	ActionDeliver: newRule(StatusDelivered, "Only shipped orders can be marked as delivered",
		StatusShipped),
	ActionCancel: newRule(StatusCancelled, "Only pending, confirmed or processing orders can be cancelled",
		StatusPending, StatusConfirmed, StatusProcessing),
	ActionRefund: newRule(StatusRefunded, "Only delivered or cancelled orders can be refunded",
		StatusDelivered, StatusCancelled),
	ActionDelete: newRule("", "Only cancelled, failed or refunded orders can be deleted",
		StatusCancelled, StatusFailed, StatusRefunded),
}

func RuleFor(a Action) (Rule, bool) {
	r, ok := transitionRules[a]
	return r, ok
}
