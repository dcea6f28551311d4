// resolver.go answers "may this principal do X in this scope". The decision
// is a pure union over the principal's grants; the only stateful part is
// fetching those grants from the store.
package authz

import (
	"context"
	"fmt"
	"sort"

	"github.com/platform-iam/platform-iam/internal/auth"
	"github.com/platform-iam/platform-iam/internal/db/models"
)

// Store is the slice of the persistence layer the resolver needs. The
// repository types in internal/db/repositories satisfy it.
type Store interface {
	// GetPrincipal returns nil (no error) when the id is unknown.
	GetPrincipal(ctx context.Context, id string) (*models.Principal, error)
	// ListGrants returns every grant for the principal whose scope is
	// exactly resourceID or global (nil resource). A nil resourceID returns
	// global grants only.
	ListGrants(ctx context.Context, principalID string, resourceID *string) ([]*models.AssignmentGrant, error)
}

// Decision is the resolver's all-or-nothing answer. Permissions is the
// effective permission set for the queried scope, sorted and deduplicated.
type Decision struct {
	Allowed     bool
	Permissions []string
}

// HasVerb reports whether the decision's permission set covers v, honouring
// the wildcard.
func (d Decision) HasVerb(v Verb) bool {
	for _, p := range d.Permissions {
		if p == string(VerbWildcard) || p == string(v) {
			return true
		}
	}
	return false
}

// RoleInfo is the display-only role label returned by RoleAndPermissions.
type RoleInfo struct {
	Name        string
	DisplayName string
}

// Config carries the resolver's policy switches.
type Config struct {
	// IncludeDeletedResources controls whether grants bound to a resource in
	// DELETED status still contribute to resolution. Off by default: a
	// deleted scope no longer confers its permissions.
	IncludeDeletedResources bool
}

// Resolver decides whether a principal may perform verbs against a scope.
type Resolver struct {
	store Store
	cfg   Config
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store, cfg Config) *Resolver {
	return &Resolver{store: store, cfg: cfg}
}

// Resolve returns the allow/deny decision for the principal performing any of
// the required verbs in the given scope (resourceID nil = global scope).
//
// Super admins short-circuit to the wildcard set; no assignment lookup runs.
// Everyone else gets the deduplicated union of verbs from every grant whose
// scope is the queried resource or global — a global role and a
// resource-specific role both contribute, with no suppression between them.
func (r *Resolver) Resolve(ctx context.Context, principalID string, resourceID *string, required []Verb) (Decision, error) {
	principal, err := r.store.GetPrincipal(ctx, principalID)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve: load principal: %w", err)
	}
	if principal == nil {
		return Decision{}, fmt.Errorf("resolve principal %s: %w", principalID, auth.ErrNotFound)
	}

	if principal.IsSuperAdmin {
		return Decision{Allowed: true, Permissions: []string{string(VerbWildcard)}}, nil
	}

	grants, err := r.store.ListGrants(ctx, principalID, resourceID)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve: list grants: %w", err)
	}

	effective := EffectivePermissions(grants, r.cfg.IncludeDeletedResources)
	return Decision{
		Allowed:     unionAllows(effective, required),
		Permissions: effective,
	}, nil
}

// RoleAndPermissions returns the principal's displayed role for a scope plus
// the effective permission set. The role pick and the permission union are
// two separate pure functions over the same grant list; only the union feeds
// authorization decisions.
func (r *Resolver) RoleAndPermissions(ctx context.Context, principalID string, resourceID *string) (RoleInfo, []string, error) {
	principal, err := r.store.GetPrincipal(ctx, principalID)
	if err != nil {
		return RoleInfo{}, nil, fmt.Errorf("role lookup: load principal: %w", err)
	}
	if principal == nil {
		return RoleInfo{}, nil, fmt.Errorf("role lookup principal %s: %w", principalID, auth.ErrNotFound)
	}

	if principal.IsSuperAdmin {
		return RoleInfo{Name: "admin", DisplayName: "Administrator"},
			[]string{string(VerbWildcard)}, nil
	}

	grants, err := r.store.ListGrants(ctx, principalID, resourceID)
	if err != nil {
		return RoleInfo{}, nil, fmt.Errorf("role lookup: list grants: %w", err)
	}

	usable := filterGrants(grants, r.cfg.IncludeDeletedResources)
	return PrimaryRole(usable, resourceID), EffectivePermissions(grants, r.cfg.IncludeDeletedResources), nil
}

// EffectivePermissions computes the deduplicated union of verbs across every
// usable grant. Pure: order-independent, idempotent, no store access. The
// returned slice is sorted for stable comparison and logging.
func EffectivePermissions(grants []*models.AssignmentGrant, includeDeleted bool) []string {
	set := make(map[string]struct{})
	for _, g := range filterGrants(grants, includeDeleted) {
		for _, v := range g.Verbs {
			set[v] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// filterGrants drops grants bound to DELETED resources unless the policy
// switch keeps them. Global grants are never filtered.
func filterGrants(grants []*models.AssignmentGrant, includeDeleted bool) []*models.AssignmentGrant {
	if includeDeleted {
		return grants
	}
	out := make([]*models.AssignmentGrant, 0, len(grants))
	for _, g := range grants {
		if g.ResourceStatus != nil && *g.ResourceStatus == string(models.ResourceStatusDeleted) {
			continue
		}
		out = append(out, g)
	}
	return out
}

// unionAllows reports whether the union contains the wildcard or at least one
// required verb. An empty required list asks only for a valid identity in
// scope and is always allowed.
func unionAllows(union []string, required []Verb) bool {
	if len(required) == 0 {
		return true
	}
	for _, p := range union {
		if p == string(VerbWildcard) {
			return true
		}
		for _, req := range required {
			if p == string(req) {
				return true
			}
		}
	}
	return false
}
