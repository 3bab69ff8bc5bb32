package accounts

import (
	"context"

	"github.com/tilsley/stockroom/pkg/api"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string
	Email     string
	Role      api.Role
	SessionID string
}

var roleRank = map[api.Role]int{
	api.RoleViewer: 1,
	api.RoleEditor: 2,
	api.RoleAdmin:  3,
}

// Allows reports whether the principal's role is at least required.
func (p Principal) Allows(required api.Role) bool {
	return roleRank[p.Role] > 0 && roleRank[p.Role] >= roleRank[required]
}

// ValidRole reports whether r is a known role.
func ValidRole(r api.Role) bool {
	_, ok := roleRank[r]
	return ok
}

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
