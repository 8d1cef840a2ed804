package aws

import (
	"strings"
	"time"
)

// displayDelimiter joins the fields of an assignment's display string. The
// resolver splits on the same token, so account names containing " - " will
// not round-trip; known fragility of the selection-string format.
const displayDelimiter = " - "

// ClientRegistration is the OAuth public client registered for a single run.
// The secret is scoped to this run and must never be logged.
type ClientRegistration struct {
	ClientID     string
	ClientSecret string
}

// DeviceAuthorization holds the device grant started for a registration.
type DeviceAuthorization struct {
	DeviceCode              string
	UserCode                string
	VerificationUri         string
	VerificationUriComplete string
	Interval                time.Duration
	ExpiresAt               time.Time
}

// AccountRoleEntry is one assignable (account, role) pair visible to the
// authenticated principal.
type AccountRoleEntry struct {
	AccountID   string
	AccountName string
	RoleName    string
}

// String renders the entry in the fixed "<id> - <name> - <role>" selection
// format consumed by the resolver.
func (e AccountRoleEntry) String() string {
	return e.AccountID + displayDelimiter + e.AccountName + displayDelimiter + e.RoleName
}

// Credential is the terminal artifact of a run: one set of temporary
// credentials for a single account and role.
type Credential struct {
	AccountID       string
	RoleName        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Resolution pairs a resolved credential with the outcome of persisting it.
// PersistErr being non-nil means the credentials file could not be written;
// the credential itself is still valid and usable.
type Resolution struct {
	Credential Credential
	SavedTo    string
	PersistErr error
}

// parseSelection splits a selection string back into its account ID and role
// name. Exactly two delimiter occurrences are required.
func parseSelection(s string) (accountID, roleName string, ok bool) {
	parts := strings.Split(s, displayDelimiter)
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[0], parts[2], true
}
