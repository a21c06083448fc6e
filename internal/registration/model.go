package registration

import (
	"encoding/json"

	"github.com/gravitate-health/user-orchestrator/internal/fhirstore"
	"github.com/gravitate-health/user-orchestrator/internal/keycloak"
	"github.com/gravitate-health/user-orchestrator/internal/profile"
	"github.com/gravitate-health/user-orchestrator/internal/upstream"
)

// Submission is the raw registration body. The schema is deliberately open:
// beyond the identity fields, whatever the client submits flows into the
// profile store untouched.
type Submission map[string]any

func (s Submission) str(key string) string {
	v, _ := s[key].(string)
	return v
}

func (s Submission) Email() string     { return s.str("email") }
func (s Submission) Password() string  { return s.str("password") }
func (s Submission) FirstName() string { return s.str("firstName") }
func (s Submission) LastName() string  { return s.str("lastName") }

// identityFields never reach the profile store; the identity provider owns
// them.
var identityFields = []string{"email", "password", "firstName", "lastName"}

// Validate checks the fields the identity provider requires.
func (s Submission) Validate() error {
	if s.Email() == "" {
		return upstream.New(upstream.KindValidation, localBackend, "email is required")
	}
	if s.Password() == "" {
		return upstream.New(upstream.KindValidation, localBackend, "password is required")
	}
	return nil
}

// IdentityPayload builds the normalized user-creation payload: enabled
// account, one permanent password credential.
func (s Submission) IdentityPayload() keycloak.NewUser {
	return keycloak.NewUser{
		Email:     s.Email(),
		FirstName: s.FirstName(),
		LastName:  s.LastName(),
		Enabled:   true,
		Credentials: []keycloak.Credential{
			{Type: "password", Value: s.Password(), Temporary: false},
		},
	}
}

// ProfilePayload copies the submission, strips identity-sensitive fields, and
// stamps the identity id as the join key.
func (s Submission) ProfilePayload(identityID string) profile.Profile {
	p := make(profile.Profile, len(s))
	for k, v := range s {
		p[k] = v
	}
	for _, k := range identityFields {
		delete(p, k)
	}
	p["id"] = identityID
	return p
}

// CreateResult is the composite view returned on successful registration.
type CreateResult struct {
	Created        bool              `json:"created"`
	Profile        profile.Profile   `json:"profile"`
	ClinicalRecord fhirstore.Patient `json:"clinicalRecord"`
}

// ReadResult reports each section independently: a failure fetching one does
// not hide the other.
type ReadResult struct {
	Identity      *keycloak.User  `json:"identity,omitempty"`
	IdentityError string          `json:"identityError,omitempty"`
	Profile       profile.Profile `json:"profile,omitempty"`
	ProfileError  string          `json:"profileError,omitempty"`
}

// UpdateRequest carries the optional per-store patches. At least one must be
// present.
type UpdateRequest struct {
	Profile        profile.Profile `json:"profile,omitempty"`
	ClinicalRecord json.RawMessage `json:"clinicalRecord,omitempty"`
}

// UpdateResult reports each applied patch independently; there is no
// cross-store rollback on update.
type UpdateResult struct {
	Profile             profile.Profile `json:"profile,omitempty"`
	ProfileError        string          `json:"profileError,omitempty"`
	ClinicalRecord      json.RawMessage `json:"clinicalRecord,omitempty"`
	ClinicalRecordError string          `json:"clinicalRecordError,omitempty"`
}

// DeleteResult reports, per backing store, whether this call removed the
// resource. A resource that was already gone reports false without an error.
type DeleteResult struct {
	IdentityDeleted       bool `json:"identityDeleted"`
	ProfileDeleted        bool `json:"profileDeleted"`
	ClinicalRecordDeleted bool `json:"clinicalRecordDeleted"`
}
