// Package registration coordinates a composite "registered user" across the
// identity provider, the profile store, and the clinical-record store. The
// orchestrator is the only component with cross-resource knowledge; each
// client only translates wire formats. Consistency is best-effort: a failed
// step triggers compensation of everything already created, never a
// distributed transaction.
package registration

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/gravitate-health/user-orchestrator/internal/fhirstore"
	"github.com/gravitate-health/user-orchestrator/internal/keycloak"
	"github.com/gravitate-health/user-orchestrator/internal/profile"
	"github.com/gravitate-health/user-orchestrator/internal/upstream"
)

// localBackend tags taxonomy errors raised by the orchestrator itself, before
// any remote call.
const localBackend = "registration"

// Saga states, logged per transition.
const (
	stateIdentityCreated = "IDENTITY_CREATED"
	stateProfileCreated  = "PROFILE_CREATED"
	stateRecordCreated   = "RECORD_CREATED"
	stateEmailSent       = "EMAIL_SENT"
	stateCompensating    = "COMPENSATING"
	stateRolledBack      = "ROLLED_BACK"
)

// CredentialSource yields the service credential; the saga authenticates the
// service principal before touching any resource.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// IdentityStore is the identity-provider surface the saga drives.
type IdentityStore interface {
	CreateUser(ctx context.Context, user keycloak.NewUser) (string, error)
	GetUser(ctx context.Context, id string) (*keycloak.User, error)
	DeleteUser(ctx context.Context, id string) (upstream.DeleteOutcome, error)
	SendVerificationEmail(ctx context.Context, id string) (bool, error)
	ResetPassword(ctx context.Context, email string) (bool, error)
}

// ProfileStore is the profile-service surface the saga drives.
type ProfileStore interface {
	Create(ctx context.Context, p profile.Profile) error
	Get(ctx context.Context, id string) (profile.Profile, error)
	Patch(ctx context.Context, id string, patch profile.Profile) error
	Delete(ctx context.Context, id string) (upstream.DeleteOutcome, error)
}

// RecordStore is the clinical-record surface the saga drives.
type RecordStore interface {
	Create(ctx context.Context, p fhirstore.Patient) error
	Get(ctx context.Context, id string) (json.RawMessage, error)
	Patch(ctx context.Context, id string, patch json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, id string) (upstream.DeleteOutcome, error)
}

// Service is the saga coordinator.
type Service struct {
	tokens     CredentialSource
	identities IdentityStore
	profiles   ProfileStore
	records    RecordStore
	logger     zerolog.Logger
	metrics    *Metrics
}

// NewService wires the three clients and the credential source together.
func NewService(tokens CredentialSource, identities IdentityStore, profiles ProfileStore, records RecordStore, logger zerolog.Logger, metrics *Metrics) *Service {
	return &Service{
		tokens:     tokens,
		identities: identities,
		profiles:   profiles,
		records:    records,
		logger:     logger.With().Str("component", "registration").Logger(),
		metrics:    metrics,
	}
}

// Create runs the registration saga: identity, then profile, then clinical
// record, then the verification email. Any failure after identity creation
// deletes everything created so far; the triggering error, never a
// compensation error, is what the caller sees.
func (s *Service) Create(ctx context.Context, sub Submission) (*CreateResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSagaDuration(time.Since(start)) }()

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	// Authenticate the service principal before touching anything; failing
	// here needs no compensation.
	if _, err := s.tokens.Token(ctx); err != nil {
		s.metrics.RecordOutcome("aborted")
		return nil, err
	}

	identityID, err := s.identities.CreateUser(ctx, sub.IdentityPayload())
	if err != nil {
		s.metrics.RecordOutcome("aborted")
		return nil, err
	}
	log := s.logger.With().Str("identity_id", identityID).Logger()
	log.Info().Str("saga_state", stateIdentityCreated).Msg("identity created")

	profilePayload := sub.ProfilePayload(identityID)
	if err := s.profiles.Create(ctx, profilePayload); err != nil {
		s.compensate(ctx, log, identityID, false, false)
		return nil, err
	}
	log.Info().Str("saga_state", stateProfileCreated).Msg("profile created")

	patient := fhirstore.BuildPatient(identityID, sub.FirstName(), sub.LastName())
	if err := s.records.Create(ctx, patient); err != nil {
		s.compensate(ctx, log, identityID, true, false)
		return nil, err
	}
	log.Info().Str("saga_state", stateRecordCreated).Msg("clinical record created")

	if _, err := s.identities.SendVerificationEmail(ctx, identityID); err != nil {
		s.compensate(ctx, log, identityID, true, true)
		return nil, err
	}
	log.Info().Str("saga_state", stateEmailSent).Msg("registration complete")

	s.metrics.RecordOutcome("completed")
	return &CreateResult{Created: true, Profile: profilePayload, ClinicalRecord: patient}, nil
}

// compensate deletes everything the saga created before the failure. Each
// deletion is attempted regardless of the others; deletions are idempotent,
// so ordering does not matter. Failures here are logged and counted, never
// escalated — the caller gets the error that triggered the rollback.
//
// The context is detached from the caller: a client that disconnected must
// not be able to abort a rollback mid-flight.
func (s *Service) compensate(ctx context.Context, log zerolog.Logger, identityID string, profileCreated, recordCreated bool) {
	ctx = context.WithoutCancel(ctx)
	log.Warn().Str("saga_state", stateCompensating).Msg("rolling back partial registration")

	if recordCreated {
		s.compensateDelete(log, "clinical_record", func() (upstream.DeleteOutcome, error) {
			return s.records.Delete(ctx, identityID)
		})
	}
	if profileCreated {
		s.compensateDelete(log, "profile", func() (upstream.DeleteOutcome, error) {
			return s.profiles.Delete(ctx, identityID)
		})
	}
	s.compensateDelete(log, "identity", func() (upstream.DeleteOutcome, error) {
		return s.identities.DeleteUser(ctx, identityID)
	})

	s.metrics.RecordOutcome("rolled_back")
	log.Warn().Str("saga_state", stateRolledBack).Msg("rollback finished")
}

func (s *Service) compensateDelete(log zerolog.Logger, resource string, del func() (upstream.DeleteOutcome, error)) {
	outcome, err := del()
	s.metrics.RecordCompensation(resource, outcome.String())
	if err != nil {
		log.Error().Err(err).Str("resource", resource).Msg("compensation failure")
		return
	}
	log.Info().Str("resource", resource).Str("result", outcome.String()).Msg("compensated")
}

// Read fetches the identity and the profile independently and reports each
// section on its own; a failure on one side never hides the other.
func (s *Service) Read(ctx context.Context, callerID string) (*ReadResult, error) {
	if _, err := s.tokens.Token(ctx); err != nil {
		return nil, err
	}

	result := &ReadResult{}
	if identity, err := s.identities.GetUser(ctx, callerID); err != nil {
		result.IdentityError = err.Error()
	} else {
		result.Identity = identity
	}
	if p, err := s.profiles.Get(ctx, callerID); err != nil {
		result.ProfileError = err.Error()
	} else {
		result.Profile = p
	}
	return result, nil
}

// Update applies the submitted per-store patches independently. A caller may
// only update its own record; that check happens before any remote call.
func (s *Service) Update(ctx context.Context, callerID, id string, req UpdateRequest) (*UpdateResult, error) {
	if callerID != id {
		return nil, upstream.New(upstream.KindAuthorization, localBackend, "callers may only update their own user")
	}
	if req.Profile == nil && req.ClinicalRecord == nil {
		return nil, upstream.New(upstream.KindValidation, localBackend,
			"at least one of profile or clinicalRecord must be present")
	}

	if _, err := s.tokens.Token(ctx); err != nil {
		return nil, err
	}

	result := &UpdateResult{}
	if req.Profile != nil {
		if err := s.profiles.Patch(ctx, id, req.Profile); err != nil {
			result.ProfileError = err.Error()
		} else {
			result.Profile = req.Profile
		}
	}
	if req.ClinicalRecord != nil {
		patched, err := s.records.Patch(ctx, id, req.ClinicalRecord)
		if err != nil {
			result.ClinicalRecordError = err.Error()
		} else {
			result.ClinicalRecord = patched
		}
	}
	return result, nil
}

// Delete removes the composite user. Every store is always attempted — there
// is no abort-early step — and the per-store booleans report what this call
// actually removed.
func (s *Service) Delete(ctx context.Context, callerID, id string) (*DeleteResult, error) {
	if callerID != id {
		return nil, upstream.New(upstream.KindAuthorization, localBackend, "callers may only delete their own user")
	}
	if _, err := s.tokens.Token(ctx); err != nil {
		return nil, err
	}

	log := s.logger.With().Str("identity_id", id).Logger()
	result := &DeleteResult{}

	result.IdentityDeleted = s.bestEffortDelete(log, "identity", func() (upstream.DeleteOutcome, error) {
		return s.identities.DeleteUser(ctx, id)
	})
	result.ProfileDeleted = s.bestEffortDelete(log, "profile", func() (upstream.DeleteOutcome, error) {
		return s.profiles.Delete(ctx, id)
	})
	result.ClinicalRecordDeleted = s.bestEffortDelete(log, "clinical_record", func() (upstream.DeleteOutcome, error) {
		return s.records.Delete(ctx, id)
	})

	return result, nil
}

func (s *Service) bestEffortDelete(log zerolog.Logger, resource string, del func() (upstream.DeleteOutcome, error)) bool {
	outcome, err := del()
	if err != nil {
		log.Error().Err(err).Str("resource", resource).Msg("delete failed")
		return false
	}
	log.Info().Str("resource", resource).Str("result", outcome.String()).Msg("delete attempted")
	return outcome == upstream.Deleted
}

// ResetPassword triggers the identity provider's reset action for the email's
// account. Unknown emails report false, deliberately not an error.
func (s *Service) ResetPassword(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, upstream.New(upstream.KindValidation, localBackend, "email is required")
	}
	if _, err := s.tokens.Token(ctx); err != nil {
		return false, err
	}
	return s.identities.ResetPassword(ctx, email)
}
