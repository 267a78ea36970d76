// Package policy derives an effective permission set from a verified
// principal and checks it against required capabilities. Tokens arrive from
// several issuers with several claim conventions (plain role claims,
// Keycloak realm/client roles, OAuth2 scopes, explicit permission lists);
// everything is flattened into canonical lowercase token sets before any
// decision is made.
package policy

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pandoralabs/pandora-api/models"
)

// RolePermissionMap maps a role name to the capabilities it grants.
// Capabilities are "resource:action" strings.
type RolePermissionMap map[string][]string

// DefaultRolePermissions is the static role model of the product API.
func DefaultRolePermissions() RolePermissionMap {
	return RolePermissionMap{
		"user":  {"products:read"},
		"admin": {"products:read", "products:write"},
	}
}

// Decision is the result of an authorization check, carrying the resolved
// sets for the opt-in debug response body.
type Decision struct {
	Allowed     bool     `json:"-"`
	Required    string   `json:"required"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Engine evaluates capability checks against a role-permission map
type Engine struct {
	rolePermissions RolePermissionMap
}

// NewEngine creates an Engine. A nil map falls back to the default role model.
func NewEngine(rolePermissions RolePermissionMap) *Engine {
	if rolePermissions == nil {
		rolePermissions = DefaultRolePermissions()
	}
	return &Engine{rolePermissions: rolePermissions}
}

// Capability joins resource and action into the canonical lowercase form
func Capability(resource, action string) string {
	return strings.ToLower(resource + ":" + action)
}

// Authorize checks whether the principal holds the resource:action
// capability, either explicitly (permissions or scope claims) or derived
// from any of its roles.
func (e *Engine) Authorize(p *models.Principal, resource, action string) Decision {
	required := Capability(resource, action)
	roles := Roles(claimsOf(p))
	permissions := e.permissions(claimsOf(p), roles)

	_, allowed := permissions[required]
	return Decision{
		Allowed:     allowed,
		Required:    required,
		Roles:       sortedKeys(roles),
		Permissions: sortedKeys(permissions),
	}
}

// HasAnyRole reports whether the principal holds at least one of the
// allowed roles. The same normalization rules apply to both sides; the
// permission map is not consulted.
func (e *Engine) HasAnyRole(p *models.Principal, allowed ...string) bool {
	roles := Roles(claimsOf(p))
	for _, r := range allowed {
		if _, ok := roles[normalizeRole(r)]; ok {
			return true
		}
	}
	return false
}

// Roles gathers every role claim the token may carry: `role` (singular),
// `roles` (plural), Keycloak-style `realm_access.roles`, and the `roles`
// array under each `resource_access` client entry. Role tokens are
// lowercased and stripped of a leading "role_".
func Roles(claims map[string]any) map[string]struct{} {
	roles := make(map[string]struct{})
	add := func(v any) {
		for _, tok := range flatten(v) {
			if r := normalizeRole(tok); r != "" {
				roles[r] = struct{}{}
			}
		}
	}

	add(claims["role"])
	add(claims["roles"])

	if realm, ok := claims["realm_access"].(map[string]any); ok {
		add(realm["roles"])
	}
	if byClient, ok := claims["resource_access"].(map[string]any); ok {
		for _, entry := range byClient {
			if m, ok := entry.(map[string]any); ok {
				add(m["roles"])
			}
		}
	}
	return roles
}

// permissions is the union of explicit permission claims, OAuth2 scopes,
// and the capabilities derived from every resolved role.
func (e *Engine) permissions(claims map[string]any, roles map[string]struct{}) map[string]struct{} {
	permissions := make(map[string]struct{})
	add := func(v any) {
		for _, tok := range flatten(v) {
			permissions[strings.ToLower(tok)] = struct{}{}
		}
	}

	add(claims["permissions"])
	add(claims["scope"])

	for role := range roles {
		for _, perm := range e.rolePermissions[role] {
			permissions[strings.ToLower(perm)] = struct{}{}
		}
	}
	return permissions
}

// flatten normalizes a heterogeneous claim value into individual tokens.
// Strings split on commas when present, otherwise on whitespace (the OAuth2
// scope convention); arrays and nested arrays recurse.
func flatten(v any) []string {
	var out []string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		out = splitTokens(val)
	case []string:
		for _, item := range val {
			out = append(out, flatten(item)...)
		}
	case []any:
		for _, item := range val {
			out = append(out, flatten(item)...)
		}
	case float64:
		out = []string{strconv.FormatFloat(val, 'f', -1, 64)}
	case int:
		out = []string{strconv.Itoa(val)}
	case int64:
		out = []string{strconv.FormatInt(val, 10)}
	}
	return out
}

func splitTokens(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var parts []string
	if strings.Contains(s, ",") {
		parts = strings.Split(s, ",")
	} else {
		parts = strings.Fields(s)
	}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeRole(s string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "role_")
}

func claimsOf(p *models.Principal) map[string]any {
	if p == nil || p.Claims == nil {
		return map[string]any{}
	}
	return p.Claims
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
