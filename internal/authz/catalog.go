// Package authz implements resource-scoped authorization: the permission
// catalog, the resolver that turns a principal's role assignments into an
// allow/deny decision, and the display-role picker.
//
// The catalog is deliberately split from resolution. The catalog is an
// immutable, process-wide table built once at init and used to seed role rows
// and to reject unknown verbs at seed/grant time — never at request time.
// Resolution is a pure set union over whatever assignments the store returns.
package authz

import (
	"fmt"
	"sort"
)

// Verb is an atomic permission token tested for set membership. Verbs are a
// validated value type: they can only be constructed from the catalog, so a
// typo in a grant fails loudly at grant time instead of producing a silently
// unreachable permission.
type Verb string

const (
	// VerbWildcard matches every verb. Held only by the admin role and by
	// super-admin principals.
	VerbWildcard Verb = "*"

	VerbRead   Verb = "read"
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
	// VerbAssign grants membership management: granting and revoking roles
	// on the resource.
	VerbAssign Verb = "assign"
	// VerbAudit grants access to the audit trail.
	VerbAudit Verb = "audit"
)

// PlaceholderRoleName is the display role reported for a principal that holds
// no assignment in the queried scope. It carries no permissions.
const PlaceholderRoleName = "member"

// RoleSpec is one catalog entry: a role name bound to its verb set.
type RoleSpec struct {
	Name        string
	DisplayName string
	Description string
	Verbs       []Verb
}

// catalog is the immutable role→verbs table. Built once below; never mutated
// after package init.
var catalog = buildCatalog()

// knownVerbs is the reverse index of every verb any catalog role references.
var knownVerbs = buildVerbIndex()

func builtinRoleSpecs() []RoleSpec {
	return []RoleSpec{
		{
			Name:        "viewer",
			DisplayName: "Viewer",
			Description: "Read-only access within the granted scope",
			Verbs:       []Verb{VerbRead},
		},
		{
			Name:        "editor",
			DisplayName: "Editor",
			Description: "Can create and modify entities within the granted scope",
			Verbs:       []Verb{VerbRead, VerbCreate, VerbUpdate},
		},
		{
			Name:        "manager",
			DisplayName: "Manager",
			Description: "Full control of the granted scope including role grants",
			Verbs:       []Verb{VerbRead, VerbCreate, VerbUpdate, VerbDelete, VerbAssign},
		},
		{
			Name:        "auditor",
			DisplayName: "Auditor",
			Description: "Read access plus the audit trail",
			Verbs:       []Verb{VerbRead, VerbAudit},
		},
		{
			Name:        "admin",
			DisplayName: "Administrator",
			Description: "Every permission, current and future",
			Verbs:       []Verb{VerbWildcard},
		},
	}
}

func buildCatalog() map[string]RoleSpec {
	m := make(map[string]RoleSpec)
	for _, spec := range builtinRoleSpecs() {
		m[spec.Name] = spec
	}
	return m
}

func buildVerbIndex() map[Verb]bool {
	idx := map[Verb]bool{
		VerbWildcard: true,
		VerbRead:     true,
		VerbCreate:   true,
		VerbUpdate:   true,
		VerbDelete:   true,
		VerbAssign:   true,
		VerbAudit:    true,
	}
	// Fail fast at process start if a catalog role references a verb the
	// index does not know about.
	for _, spec := range catalogSpecsForValidation() {
		for _, v := range spec.Verbs {
			if !idx[v] {
				panic(fmt.Sprintf("authz: catalog role %q references unknown verb %q", spec.Name, v))
			}
		}
	}
	return idx
}

// catalogSpecsForValidation avoids an init-order dependency on the catalog var.
func catalogSpecsForValidation() []RoleSpec {
	return builtinRoleSpecs()
}

// BuiltinRoles returns the catalog entries in stable name order, for seeding
// role rows at boot.
func BuiltinRoles() []RoleSpec {
	specs := make([]RoleSpec, 0, len(catalog))
	for _, spec := range catalog {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// LookupRole returns the catalog entry for name, or false when the role is
// not a builtin.
func LookupRole(name string) (RoleSpec, bool) {
	spec, ok := catalog[name]
	return spec, ok
}

// ParseVerb validates a raw string against the verb index.
func ParseVerb(raw string) (Verb, error) {
	v := Verb(raw)
	if !knownVerbs[v] {
		return "", fmt.Errorf("unknown permission verb: %q", raw)
	}
	return v, nil
}

// ParseVerbs validates a whole slice, failing on the first unknown verb.
func ParseVerbs(raw []string) ([]Verb, error) {
	verbs := make([]Verb, 0, len(raw))
	for _, r := range raw {
		v, err := ParseVerb(r)
		if err != nil {
			return nil, err
		}
		verbs = append(verbs, v)
	}
	return verbs, nil
}

// AllVerbs returns every known verb (wildcard included) in stable order.
func AllVerbs() []Verb {
	verbs := make([]Verb, 0, len(knownVerbs))
	for v := range knownVerbs {
		verbs = append(verbs, v)
	}
	sort.Slice(verbs, func(i, j int) bool { return verbs[i] < verbs[j] })
	return verbs
}
