package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"community-access-client/internal/gateway"
	"community-access-client/internal/models"
	"community-access-client/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionState tracks where the manager is in its lifecycle.
type SessionState string

const (
	StateUnknown         SessionState = "unknown"
	StateRestoring       SessionState = "restoring"
	StateAuthenticated   SessionState = "authenticated"
	StateUnauthenticated SessionState = "unauthenticated"
)

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
	Project   string
	Unit      string
}

// SessionManager owns the current-user state: restore on startup, login and
// logout transitions, and device-id provisioning. It is handed explicitly to
// every consumer instead of being broadcast through ambient context, and
// exposes changes through Subscribe.
type SessionManager struct {
	gw    *gateway.Gateway
	creds store.CredentialStore

	// opMu serializes login/logout so an in-flight login is never
	// interleaved with a concurrent logout.
	opMu sync.Mutex

	mu        sync.Mutex
	state     SessionState
	session   *models.Session
	deviceID  string
	listeners []func(SessionState)
}

// NewSessionManager creates a session manager in the Unknown state.
func NewSessionManager(gw *gateway.Gateway, creds store.CredentialStore) *SessionManager {
	return &SessionManager{
		gw:    gw,
		creds: creds,
		state: StateUnknown,
	}
}

// State returns the current lifecycle state.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the active session, or nil when unauthenticated.
func (m *SessionManager) Current() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// DeviceID returns the per-install device identifier. Empty before
// Initialize has run.
func (m *SessionManager) DeviceID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deviceID
}

// Subscribe registers a listener invoked after every state transition.
func (m *SessionManager) Subscribe(fn func(SessionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Initialize provisions the device identity and restores a persisted session
// if one exists. Store failures degrade to the unauthenticated state; this
// never fails the process.
func (m *SessionManager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateRestoring
	m.mu.Unlock()

	deviceID, ok, err := m.creds.Get(store.KeyDeviceID)
	if err != nil || !ok {
		deviceID = uuid.NewString()
		if err := m.creds.Set(store.KeyDeviceID, deviceID); err != nil {
			log.Warn().Err(err).Msg("Failed to persist device id, continuing with in-memory value")
		} else {
			log.Info().Str("device_id", deviceID).Msg("Device identity provisioned")
		}
	}

	var restored *models.Session
	if raw, ok, err := m.creds.Get(store.KeyUser); err == nil && ok {
		var s models.Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			log.Warn().Err(err).Msg("Persisted session unreadable, starting unauthenticated")
		} else if s.UserID != "" {
			restored = &s
		}
	}

	m.mu.Lock()
	m.deviceID = deviceID
	m.session = restored
	if restored != nil {
		m.state = StateAuthenticated
	} else {
		m.state = StateUnauthenticated
	}
	state := m.state
	m.mu.Unlock()

	log.Debug().Str("state", string(state)).Msg("Session restore finished")
	m.notify(state)
	return nil
}

// Login authenticates against login.php with the phone/email identifier and
// password. On success the full response is persisted and the manager
// transitions to Authenticated; on any failure no partial state is kept.
func (m *SessionManager) Login(ctx context.Context, identifier, password string) (*models.Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	env, err := m.gw.PostForm(ctx, "login.php", map[string]string{
		"email":    identifier,
		"password": password,
		"deviceId": m.DeviceID(),
	})
	if err != nil {
		m.setUnauthenticated()
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	if !env.OK() {
		m.setUnauthenticated()
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, env.BusinessErr())
	}

	return m.adoptSession(env)
}

// LoginWithCode authenticates a guest against login_with_code.php using a
// shared invitation code instead of credentials. The resulting session's
// role is the code's type.
func (m *SessionManager) LoginWithCode(ctx context.Context, code string) (*models.Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	env, err := m.gw.PostForm(ctx, "login_with_code.php", map[string]string{
		"code":     code,
		"deviceId": m.DeviceID(),
	})
	if err != nil {
		m.setUnauthenticated()
		return nil, fmt.Errorf("code login request failed: %w", err)
	}
	if !env.OK() {
		m.setUnauthenticated()
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, env.BusinessErr())
	}

	var payload struct {
		UserID    string `json:"userId"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Unit      string `json:"unit"`
		Project   string `json:"project"`
		CodeType  string `json:"codeType"`
		UserPhoto string `json:"userPhoto"`
		OwnerID   string `json:"ownerId"`
		UsedCode  string `json:"usedCode"`
	}
	if err := env.DecodeInto(&payload); err != nil {
		m.setUnauthenticated()
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	session := &models.Session{
		UserID:       payload.UserID,
		Role:         models.Role(payload.CodeType),
		Name:         payload.FirstName + " " + payload.LastName,
		Unit:         payload.Unit,
		Project:      payload.Project,
		UserPhotoURL: payload.UserPhoto,
		OwnerID:      payload.OwnerID,
		UsedCode:     payload.UsedCode,
		Raw:          json.RawMessage(env.Raw()),
	}
	return m.storeSession(session)
}

// Logout clears the persisted and in-memory session. It is local-only and
// idempotent: no server call is made, and logging out while unauthenticated
// is a no-op.
func (m *SessionManager) Logout() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.creds.Delete(store.KeyUser); err != nil {
		log.Warn().Err(err).Msg("Failed to delete persisted session")
	}

	m.mu.Lock()
	m.session = nil
	m.state = StateUnauthenticated
	m.mu.Unlock()

	m.notify(StateUnauthenticated)
	return nil
}

// RegisterOwner submits an owner registration. The account goes through
// backend approval; registering does not log the user in.
func (m *SessionManager) RegisterOwner(ctx context.Context, in RegisterInput) error {
	return m.register(ctx, "register_owner.php", in, map[string]string{
		"role": string(models.RoleOwner),
	})
}

// RegisterWithCode submits a registration bound to an invitation code; the
// backend derives the role from the code.
func (m *SessionManager) RegisterWithCode(ctx context.Context, code string, in RegisterInput) error {
	return m.register(ctx, "register_with_code.php", in, map[string]string{
		"code": code,
	})
}

func (m *SessionManager) register(ctx context.Context, path string, in RegisterInput, extra map[string]string) error {
	for field, value := range map[string]string{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"email":      in.Email,
		"password":   in.Password,
	} {
		if value == "" {
			return &ValidationError{Field: field, Reason: "required"}
		}
	}

	fields := map[string]string{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"email":      in.Email,
		"password":   in.Password,
		"phone":      in.Phone,
		"project":    in.Project,
		"unit":       in.Unit,
		"deviceId":   m.DeviceID(),
		"token":      "",
	}
	for k, v := range extra {
		fields[k] = v
	}

	env, err := m.gw.PostForm(ctx, path, fields)
	if err != nil {
		return fmt.Errorf("registration request failed: %w", err)
	}
	if !env.OK() {
		return env.BusinessErr()
	}
	return nil
}

// ChangePassword updates the authenticated user's password.
func (m *SessionManager) ChangePassword(ctx context.Context, newPassword string) error {
	session := m.Current()
	if session == nil {
		return ErrNoSession
	}
	if newPassword == "" {
		return &ValidationError{Field: "password", Reason: "required"}
	}

	env, err := m.gw.PostForm(ctx, "user_change_password.php", map[string]string{
		"userId":   session.UserID,
		"role":     string(session.Role),
		"password": newPassword,
	})
	if err != nil {
		return fmt.Errorf("change password request failed: %w", err)
	}
	if !env.OK() {
		return env.BusinessErr()
	}
	return nil
}

// RequestPasswordReset asks the backend to mail a verification code and
// returns the matched user record needed by CompletePasswordReset.
func (m *SessionManager) RequestPasswordReset(ctx context.Context, email string) (*models.Session, error) {
	if email == "" {
		return nil, &ValidationError{Field: "email", Reason: "required"}
	}

	env, err := m.gw.PostForm(ctx, "forgot_password_mail_check_code_send.php", map[string]string{
		"email": email,
	})
	if err != nil {
		return nil, fmt.Errorf("password reset request failed: %w", err)
	}
	if !env.OK() {
		return nil, env.BusinessErr()
	}

	var target models.Session
	if err := env.DecodeInto(&target); err != nil {
		return nil, err
	}
	return &target, nil
}

// CompletePasswordReset sets a new password for the user identified by the
// reset flow.
func (m *SessionManager) CompletePasswordReset(ctx context.Context, userID string, role models.Role, newPassword string) error {
	if newPassword == "" {
		return &ValidationError{Field: "new_password", Reason: "required"}
	}

	env, err := m.gw.PostForm(ctx, "forgot_password_update_new_pass.php", map[string]string{
		"userId":       userID,
		"role":         string(role),
		"new_password": newPassword,
	})
	if err != nil {
		return fmt.Errorf("password reset completion failed: %w", err)
	}
	if !env.OK() {
		return env.BusinessErr()
	}
	return nil
}

func (m *SessionManager) adoptSession(env *gateway.Envelope) (*models.Session, error) {
	var session models.Session
	if err := env.DecodeInto(&session); err != nil {
		m.setUnauthenticated()
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	session.Raw = json.RawMessage(env.Raw())
	return m.storeSession(&session)
}

func (m *SessionManager) storeSession(session *models.Session) (*models.Session, error) {
	serialized, err := json.Marshal(session)
	if err != nil {
		m.setUnauthenticated()
		return nil, fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := m.creds.Set(store.KeyUser, string(serialized)); err != nil {
		// Non-fatal: the session stays valid in memory for this process.
		log.Warn().Err(err).Msg("Failed to persist session")
	}

	m.mu.Lock()
	m.session = session
	m.state = StateAuthenticated
	m.mu.Unlock()

	log.Info().Str("user_id", session.UserID).Str("role", string(session.Role)).Msg("Session established")
	m.notify(StateAuthenticated)

	s := *session
	return &s, nil
}

func (m *SessionManager) setUnauthenticated() {
	// A session exists iff the store holds a user record; clear both.
	if err := m.creds.Delete(store.KeyUser); err != nil {
		log.Warn().Err(err).Msg("Failed to delete persisted session")
	}

	m.mu.Lock()
	changed := m.state != StateUnauthenticated
	m.session = nil
	m.state = StateUnauthenticated
	m.mu.Unlock()
	if changed {
		m.notify(StateUnauthenticated)
	}
}

func (m *SessionManager) notify(state SessionState) {
	m.mu.Lock()
	listeners := make([]func(SessionState), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
}
