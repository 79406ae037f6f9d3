package services

import (
	"context"
	"fmt"
	"time"

	"community-access-client/internal/gateway"
	"community-access-client/internal/models"

	"github.com/rs/zerolog/log"
)

const dateLayout = "2006-01-02"

// GenerateInput carries the type-specific fields for invitation creation.
// Unused fields for a given type are ignored.
type GenerateInput struct {
	RentFrom    string // renter
	RentTo      string // renter
	GuestName   string // oneTimePass, permission
	GuestRide   string // oneTimePass
	Description string // permission
	DateFrom    string // permission
	DateTo      string // permission
}

// InvitationService generates and enumerates access grants scoped to the
// current session's user and role.
type InvitationService struct {
	gw       *gateway.Gateway
	sessions *SessionManager
}

// NewInvitationService creates a new invitation service.
func NewInvitationService(gw *gateway.Gateway, sessions *SessionManager) *InvitationService {
	return &InvitationService{gw: gw, sessions: sessions}
}

// Generate creates an invitation of the given type. Field validation runs
// before any network call; incomplete submissions fail fast with a
// ValidationError.
func (s *InvitationService) Generate(ctx context.Context, typ models.InvitationType, in GenerateInput) (*models.InvitationCode, error) {
	session := s.sessions.Current()
	if session == nil {
		return nil, ErrNoSession
	}
	if err := validateGenerate(typ, in); err != nil {
		return nil, err
	}

	switch typ {
	case models.InvitationFamily, models.InvitationRenter:
		return s.generateCode(ctx, session, typ, in)
	case models.InvitationOneTimePass:
		return s.generateOneTimePass(ctx, session, in)
	case models.InvitationPermission:
		return s.generatePermission(ctx, session, in)
	default:
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown invitation type %q", typ)}
	}
}

func (s *InvitationService) generateCode(ctx context.Context, session *models.Session, typ models.InvitationType, in GenerateInput) (*models.InvitationCode, error) {
	fields := map[string]string{
		"userId": session.UserID,
		"role":   string(session.Role),
		// The backend expects this exact (misspelled) field name.
		"invitaion_type": string(typ),
	}
	if typ == models.InvitationRenter {
		fields["rent_from"] = in.RentFrom
		fields["rent_to"] = in.RentTo
	}

	env, err := s.gw.PostForm(ctx, "create_invitation_family_renter.php", fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if !env.OK() {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, env.BusinessErr())
	}

	var payload struct {
		InvitationID string `json:"invitationId"`
		Code         string `json:"code"`
	}
	if err := env.DecodeInto(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	code := &models.InvitationCode{
		InvitationID: payload.InvitationID,
		Type:         typ,
		Code:         payload.Code,
		Status:       models.StatusPending,
		From:         in.RentFrom,
		To:           in.RentTo,
	}
	log.Info().Str("type", string(typ)).Str("code", code.Code).Msg("Invitation code generated")
	return code, nil
}

func (s *InvitationService) generateOneTimePass(ctx context.Context, session *models.Session, in GenerateInput) (*models.InvitationCode, error) {
	env, err := s.gw.PostForm(ctx, "create_one_time_pass.php", map[string]string{
		"userId":     session.UserID,
		"role":       string(session.Role),
		"guest_name": in.GuestName,
		"guest_ride": in.GuestRide,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if !env.OK() {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, env.BusinessErr())
	}

	var payload struct {
		InvitationID string `json:"invitationId"`
		QRCode       string `json:"qrcode"`
	}
	if err := env.DecodeInto(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	log.Info().Str("guest", in.GuestName).Msg("One-time pass generated")
	return &models.InvitationCode{
		InvitationID: payload.InvitationID,
		Type:         models.InvitationOneTimePass,
		QRCode:       payload.QRCode,
		GuestName:    in.GuestName,
		GuestRide:    in.GuestRide,
	}, nil
}

func (s *InvitationService) generatePermission(ctx context.Context, session *models.Session, in GenerateInput) (*models.InvitationCode, error) {
	env, err := s.gw.PostForm(ctx, "create_gate_permission.php", map[string]string{
		"userId":      session.UserID,
		"role":        string(session.Role),
		"guest_name":  in.GuestName,
		"description": in.Description,
		"date_from":   in.DateFrom,
		"date_to":     in.DateTo,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if !env.OK() {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, env.BusinessErr())
	}

	log.Info().Str("guest", in.GuestName).Msg("Gate permission requested")
	return &models.InvitationCode{
		Type:        models.InvitationPermission,
		GuestName:   in.GuestName,
		Description: in.Description,
		From:        in.DateFrom,
		To:          in.DateTo,
		Status:      models.StatusActive,
	}, nil
}

// ListByType fetches all invitations of one type. Every call stands alone
// (full-replace semantics, no pagination); a backend answer with no matches
// is an empty slice, not an error.
func (s *InvitationService) ListByType(ctx context.Context, typ models.InvitationType) ([]models.InvitationCode, error) {
	session := s.sessions.Current()
	if session == nil {
		return nil, ErrNoSession
	}
	if !typ.Valid() {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown invitation type %q", typ)}
	}

	env, err := s.gw.PostForm(ctx, "get_invitations_by_type.php", map[string]string{
		"userId": session.UserID,
		"role":   string(session.Role),
		"type":   string(typ),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s invitations: %w", typ, err)
	}
	if !env.OK() {
		return nil, fmt.Errorf("failed to list %s invitations: %w", typ, env.BusinessErr())
	}

	var payload struct {
		Data []models.InvitationCode `json:"data"`
	}
	if err := env.DecodeInto(&payload); err != nil {
		return nil, fmt.Errorf("failed to list %s invitations: %w", typ, err)
	}

	items := payload.Data
	if items == nil {
		items = []models.InvitationCode{}
	}
	for i := range items {
		items[i].Type = typ
	}
	return items, nil
}

// SetPermissionStatus flips a gate permission between active and expired.
// The mutated state is not cached; callers re-fetch via ListByType to
// observe the change.
func (s *InvitationService) SetPermissionStatus(ctx context.Context, permissionID string, newStatus models.CodeStatus) error {
	session := s.sessions.Current()
	if session == nil {
		return ErrNoSession
	}
	if newStatus != models.StatusActive && newStatus != models.StatusExpired {
		return &ValidationError{Field: "new_status", Reason: "must be active or expired"}
	}
	if permissionID == "" {
		return &ValidationError{Field: "permissionId", Reason: "required"}
	}

	env, err := s.gw.PostForm(ctx, "activate_deactivate_permission.php", map[string]string{
		"userId":       session.UserID,
		"role":         string(session.Role),
		"permissionId": permissionID,
		"new_status":   string(newStatus),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}
	if !env.OK() {
		return fmt.Errorf("%w: %v", ErrUpdateFailed, env.BusinessErr())
	}

	log.Info().Str("permission_id", permissionID).Str("status", string(newStatus)).Msg("Permission status updated")
	return nil
}

func validateGenerate(typ models.InvitationType, in GenerateInput) error {
	switch typ {
	case models.InvitationFamily:
		return nil
	case models.InvitationRenter:
		return validateDates(map[string]string{"rent_from": in.RentFrom, "rent_to": in.RentTo})
	case models.InvitationOneTimePass:
		if in.GuestName == "" {
			return &ValidationError{Field: "guest_name", Reason: "required"}
		}
		if in.GuestRide == "" {
			return &ValidationError{Field: "guest_ride", Reason: "required"}
		}
		return nil
	case models.InvitationPermission:
		if in.GuestName == "" {
			return &ValidationError{Field: "guest_name", Reason: "required"}
		}
		if in.Description == "" {
			return &ValidationError{Field: "description", Reason: "required"}
		}
		return validateDates(map[string]string{"date_from": in.DateFrom, "date_to": in.DateTo})
	}
	return nil
}

func validateDates(fields map[string]string) error {
	for name, value := range fields {
		if value == "" {
			return &ValidationError{Field: name, Reason: "required"}
		}
		if _, err := time.Parse(dateLayout, value); err != nil {
			return &ValidationError{Field: name, Reason: "must be YYYY-MM-DD"}
		}
	}
	return nil
}
