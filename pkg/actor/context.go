package actor

import (
	"context"
	"strings"
)

type contextKey string

const actorKey contextKey = "actor"

// Role names recognised by role-gated operations
const (
	RolePicker     = "picker"
	RolePacker     = "packer"
	RoleDispatcher = "dispatcher"
	RoleDriver     = "driver"
	RoleReceiver   = "receiver"
	RoleManager    = "manager"
	RoleAdmin      = "admin"
	RoleFinance    = "finance"
	RoleSystem     = "system"
)

// Actor identifies who issued a command. Authentication happens upstream; the
// service only trusts the identity forwarded in request headers.
type Actor struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	SiteID string `json:"siteId,omitempty"`
}

// System is the actor used for automated transitions (workflows, timers).
var System = Actor{UserID: "system", Role: RoleSystem}

// IsManagerClass reports whether the actor may approve transfers, override job locks
// and review inventory changes.
func (a Actor) IsManagerClass() bool {
	switch strings.ToLower(a.Role) {
	case RoleManager, RoleAdmin, RoleSystem:
		return true
	default:
		return false
	}
}

// CanFileClaims reports whether the actor may record financial claims
func (a Actor) CanFileClaims() bool {
	return a.IsManagerClass() || strings.EqualFold(a.Role, RoleFinance)
}

// WithActor stores the actor in ctx
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// FromContext returns the actor stored in ctx, if any
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}
