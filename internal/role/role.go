package role

import "strings"

// Role is the closed account-role variant resolved once per request at the
// boundary. Anything that is not a patient counts as provider-eligible, with
// the normalized subrole kept for display purposes.
type Role struct {
	kind    kind
	subrole string
}

type kind int

const (
	kindUnknown kind = iota
	kindPatient
	kindProvider
)

// Parse normalizes a raw role string. Empty and whitespace-only input yields
// an unknown role, which is never provider-eligible.
func Parse(raw string) Role {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case "":
		return Role{}
	case "patient":
		return Role{kind: kindPatient}
	default:
		return Role{kind: kindProvider, subrole: normalized}
	}
}

func (r Role) IsPatient() bool {
	return r.kind == kindPatient
}

// IsProvider reports whether the account may perform provider-only
// operations: team management, invitations, and patient assignment.
func (r Role) IsProvider() bool {
	return r.kind == kindProvider
}

// Subrole returns the normalized provider subrole ("doctor", "clinician",
// "admin", ...) or an empty string for patients and unknown roles.
func (r Role) Subrole() string {
	return r.subrole
}

func (r Role) String() string {
	switch r.kind {
	case kindPatient:
		return "patient"
	case kindProvider:
		return r.subrole
	default:
		return ""
	}
}
