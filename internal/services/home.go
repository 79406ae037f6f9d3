package services

import (
	"context"
	"fmt"
	"io"

	"community-access-client/internal/gateway"
	"community-access-client/internal/models"

	"github.com/rs/zerolog/log"
)

// HomeService covers everything outside auth and invitations: the home feed,
// the resident's own gate identity, notifications, and profile maintenance.
type HomeService struct {
	gw       *gateway.Gateway
	sessions *SessionManager
}

// NewHomeService creates a new home service.
func NewHomeService(gw *gateway.Gateway, sessions *SessionManager) *HomeService {
	return &HomeService{gw: gw, sessions: sessions}
}

// Feed fetches the home page sections (ads, news, media).
func (s *HomeService) Feed(ctx context.Context) (*models.HomeFeed, error) {
	session := s.sessions.Current()
	if session == nil {
		return nil, ErrNoSession
	}

	env, err := s.gw.PostForm(ctx, "get_home_page.php", s.identityFields(session))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch home feed: %w", err)
	}

	// The home endpoint signals success by the presence of data, not by a
	// status field.
	var payload struct {
		Data *models.HomeFeed `json:"data"`
	}
	if err := env.DecodeInto(&payload); err != nil {
		return nil, fmt.Errorf("failed to fetch home feed: %w", err)
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("failed to fetch home feed: %w", env.BusinessErr())
	}
	return payload.Data, nil
}

// Identity fetches the resident's own gate QR credential.
func (s *HomeService) Identity(ctx context.Context) (*models.Identity, error) {
	session := s.sessions.Current()
	if session == nil {
		return nil, ErrNoSession
	}

	env, err := s.gw.PostForm(ctx, "user_identity.php", s.identityFields(session))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch identity: %w", err)
	}
	if !env.OK() {
		return nil, fmt.Errorf("failed to fetch identity: %w", env.BusinessErr())
	}

	var payload struct {
		Data *models.Identity `json:"data"`
	}
	if err := env.DecodeInto(&payload); err != nil {
		return nil, fmt.Errorf("failed to fetch identity: %w", err)
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("failed to fetch identity: empty payload")
	}
	return payload.Data, nil
}

// Notifications fetches the user's notification history.
func (s *HomeService) Notifications(ctx context.Context) ([]models.Notification, error) {
	session := s.sessions.Current()
	if session == nil {
		return nil, ErrNoSession
	}

	env, err := s.gw.PostForm(ctx, "get_notifications.php", s.identityFields(session))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	if !env.OK() {
		return nil, fmt.Errorf("failed to fetch notifications: %w", env.BusinessErr())
	}

	var payload struct {
		Data []models.Notification `json:"data"`
	}
	if err := env.DecodeInto(&payload); err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	if payload.Data == nil {
		return []models.Notification{}, nil
	}
	return payload.Data, nil
}

// SendContactForm submits the contact form. Name, phone and email are taken
// from the session the way the app pre-fills them.
func (s *HomeService) SendContactForm(ctx context.Context, message string) error {
	session := s.sessions.Current()
	if session == nil {
		return ErrNoSession
	}
	if message == "" {
		return &ValidationError{Field: "message", Reason: "required"}
	}

	env, err := s.gw.PostForm(ctx, "contact_form.php", map[string]string{
		"userId":      session.UserID,
		"role":        string(session.Role),
		"name":        session.DisplayName(),
		"phoneNumber": session.PhoneNumber,
		"email":       session.Email,
		"message":     message,
	})
	if err != nil {
		return fmt.Errorf("failed to send contact form: %w", err)
	}
	if !env.OK() {
		return fmt.Errorf("failed to send contact form: %w", env.BusinessErr())
	}
	return nil
}

// AccountData fetches the profile record plus the family members and tenants
// registered under the account.
func (s *HomeService) AccountData(ctx context.Context) (*models.AccountData, error) {
	session := s.sessions.Current()
	if session == nil {
		return nil, ErrNoSession
	}

	env, err := s.gw.PostForm(ctx, "user_account_data.php", s.identityFields(session))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account data: %w", err)
	}
	if !env.OK() {
		return nil, fmt.Errorf("failed to fetch account data: %w", env.BusinessErr())
	}

	var payload struct {
		Data        *models.Session `json:"data"`
		RelatedData struct {
			Family []models.RelatedUser `json:"family"`
			Renter []models.RelatedUser `json:"renter"`
		} `json:"relatedData"`
	}
	if err := env.DecodeInto(&payload); err != nil {
		return nil, fmt.Errorf("failed to fetch account data: %w", err)
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("failed to fetch account data: empty payload")
	}
	return &models.AccountData{
		User:    *payload.Data,
		Family:  payload.RelatedData.Family,
		Renters: payload.RelatedData.Renter,
	}, nil
}

// RequestAccountDeletion files a deletion request for the logged-in account.
func (s *HomeService) RequestAccountDeletion(ctx context.Context) error {
	session := s.sessions.Current()
	if session == nil {
		return ErrNoSession
	}

	env, err := s.gw.PostForm(ctx, "request_account_deletion.php", map[string]string{
		"email":       session.Email,
		"description": "Delete my account",
	})
	if err != nil {
		return fmt.Errorf("failed to request account deletion: %w", err)
	}
	if !env.OK() {
		return fmt.Errorf("failed to request account deletion: %w", env.BusinessErr())
	}
	log.Info().Str("user_id", session.UserID).Msg("Account deletion requested")
	return nil
}

// ChangePhoto uploads a new profile photo and re-persists the refreshed user
// record returned by the backend.
func (s *HomeService) ChangePhoto(ctx context.Context, filename string, photo io.Reader) (*models.Session, error) {
	session := s.sessions.Current()
	if session == nil {
		return nil, ErrNoSession
	}

	env, err := s.gw.PostFormFile(ctx, "user_change_photo.php", s.identityFields(session), "userPhoto", filename, photo)
	if err != nil {
		return nil, fmt.Errorf("failed to change photo: %w", err)
	}
	if !env.OK() {
		return nil, fmt.Errorf("failed to change photo: %w", env.BusinessErr())
	}

	return s.sessions.adoptSession(env)
}

func (s *HomeService) identityFields(session *models.Session) map[string]string {
	return map[string]string{
		"userId": session.UserID,
		"role":   string(session.Role),
	}
}
