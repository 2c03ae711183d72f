// Package multitenancy carries the tenant (organization) identifier through a context.
// Every agent is served as its own tenant; logs, traces and LLM calls are tagged with it.
package multitenancy

import (
	"context"
	"errors"
)

type contextKey string

const orgIDKey contextKey = "org_id"

// ErrNoOrgID is returned when the context carries no organization ID
var ErrNoOrgID = errors.New("no organization ID in context")

// WithOrgID returns a copy of ctx carrying the organization ID
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

// GetOrgID returns the organization ID stored in ctx
func GetOrgID(ctx context.Context) (string, error) {
	orgID, ok := ctx.Value(orgIDKey).(string)
	if !ok || orgID == "" {
		return "", ErrNoOrgID
	}
	return orgID, nil
}

// HasOrgID reports whether ctx carries an organization ID
func HasOrgID(ctx context.Context) bool {
	_, err := GetOrgID(ctx)
	return err == nil
}

// OrgIDOrDefault returns the organization ID in ctx or def when missing
func OrgIDOrDefault(ctx context.Context, def string) string {
	if orgID, err := GetOrgID(ctx); err == nil {
		return orgID
	}
	return def
}
