// Package identity carries the acting employee through request contexts.
package identity

import (
	"context"
	"strings"
)

// Caller is the employee on whose behalf a gateway operation runs.
// The zero value is an anonymous caller (system jobs, migrations).
type Caller struct {
	ID    string
	Email string
	Roles []string
}

// IsAnonymous reports whether no employee is attached.
func (c Caller) IsAnonymous() bool {
	return strings.TrimSpace(c.ID) == ""
}

// HasRole reports whether the caller carries role (case-insensitive).
func (c Caller) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}

	return false
}

type ctxKey struct{}

// WithCaller returns a copy of ctx carrying the caller.
func WithCaller(ctx context.Context, c Caller) context.Context {
	c.ID = strings.TrimSpace(c.ID)
	c.Roles = normalizeRoles(c.Roles)

	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the caller stored in ctx, or the anonymous caller.
func FromContext(ctx context.Context) Caller {
	c, _ := ctx.Value(ctxKey{}).(Caller)

	return c
}

func normalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))

	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}

		if _, ok := seen[role]; ok {
			continue
		}

		seen[role] = struct{}{}
		out = append(out, role)
	}

	return out
}
