package models

// Principal is the normalized identity derived from a verified token.
// It is produced fresh per request and never persisted.
//
// Claims keeps the token payload in its raw shape: role/permission claims
// arrive in heterogeneous forms (single strings, comma- or space-separated
// lists, arrays, Keycloak-style nested objects) and are flattened lazily by
// the policy engine rather than eagerly here.
type Principal struct {
	ID       string
	Email    string
	Name     string
	Provider string
	Claims   map[string]any
}

// Claim returns the named raw claim, or nil when absent.
func (p *Principal) Claim(name string) any {
	if p == nil || p.Claims == nil {
		return nil
	}
	return p.Claims[name]
}
