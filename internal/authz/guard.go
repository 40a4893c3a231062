package authz

import (
	"context"
	"errors"

	"urban-mobility/internal/audit"
)

// ErrDenied is what services return after a Deny decision. It carries no
// rule detail on purpose.
var ErrDenied = errors.New("authz: operation not permitted")

// Decision is the outcome of an authorization check. Deny carries no rule
// detail; callers surface a generic "forbidden" and the specifics live in
// the audit trail only.
type Decision struct {
	Allowed bool
}

// Guard is the authorization decision point. Every user-invokable operation
// passes through Authorize before any validation or store work happens for
// the request.
type Guard struct {
	table *Table
	rec   audit.Recorder

	// onDeny is called once per denial (metrics).
	onDeny func()
}

type GuardOption func(*Guard)

func WithDenyHook(fn func()) GuardOption {
	return func(g *Guard) { g.onDeny = fn }
}

func NewGuard(table *Table, rec audit.Recorder, opts ...GuardOption) *Guard {
	g := &Guard{table: table, rec: rec}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize resolves the principal's roles against the rule table.
// Default-deny: no matching rule means Deny. An OwnOnly grant requires the
// resource's owner to equal the principal id; a reference without owner
// information never satisfies an OwnOnly grant.
//
// Every Deny emits an access-denied audit event. An Allow on a mutating
// operation emits an authorization-granted event so the grant can be
// correlated with the query-executed event that follows.
func (g *Guard) Authorize(ctx context.Context, p Principal, op Operation, res ResourceRef) Decision {
	for _, role := range p.Roles {
		granted, ownOnly := g.table.grant(role, res.Type, op)
		if !granted {
			continue
		}
		if ownOnly && (res.OwnerID == "" || res.OwnerID != p.ID) {
			continue
		}
		if op.Mutating() && g.rec != nil {
			g.rec.Log(ctx, audit.Event{
				Actor:    p.Username,
				Category: audit.CategoryAuthzGranted,
				Details: map[string]string{
					"operation":   string(op),
					"resource":    string(res.Type),
					"resource_id": res.ID,
				},
			})
		}
		return Decision{Allowed: true}
	}

	if g.onDeny != nil {
		g.onDeny()
	}
	if g.rec != nil {
		g.rec.Log(ctx, audit.Event{
			Actor:    p.Username,
			Category: audit.CategoryAccessDenied,
			Details: map[string]string{
				"operation":   string(op),
				"resource":    string(res.Type),
				"resource_id": res.ID,
			},
			Suspicious: true,
		})
	}
	return Decision{}
}
