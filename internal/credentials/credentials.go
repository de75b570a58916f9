// Package credentials holds the process-wide credential bundle checks use
// to authenticate against the target (§4.4). Credentials are read once at
// startup; rotation requires a process restart.
package credentials

// ErrMissingMessage is the message checks must use verbatim when a required
// credential is absent (§4.4, §7): "credential missing".
const ErrMissingMessage = "credential missing"

// Bundle is the read-only set of credentials resolved from configuration.
type Bundle struct {
	// APIKey is sent under HeaderName on every authenticated probe.
	APIKey     string
	HeaderName string

	// Role-specific tokens for checks that need to exercise distinct
	// privilege levels against the target (S6 and S7 send AdminToken to
	// admin endpoints when it is set).
	ReaderToken string
	AdminToken  string
	AgentToken  string
}

// HasAPIKey reports whether the base credential required by most checks is
// configured.
func (b Bundle) HasAPIKey() bool {
	return b.APIKey != ""
}

// AuthHeaders returns the header set for an authenticated call using the
// primary API key.
func (b Bundle) AuthHeaders() map[string]string {
	if !b.HasAPIKey() {
		return nil
	}
	name := b.HeaderName
	if name == "" {
		name = "X-API-Key"
	}
	return map[string]string{name: b.APIKey}
}

// RoleHeaders returns headers for a role-specific token, if configured.
func (b Bundle) RoleHeaders(token string) map[string]string {
	if token == "" {
		return nil
	}
	name := b.HeaderName
	if name == "" {
		name = "X-API-Key"
	}
	return map[string]string{name: token}
}
