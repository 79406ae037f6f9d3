// Package devserver is an in-memory stand-in for the community backend. It
// speaks the same multipart/PHP contract the real service does, so the CLI
// can be exercised locally and integration tests can run hermetically.
package devserver

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"sync"
	"time"

	"community-access-client/internal/models"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	codeLength = 6
	codeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type account struct {
	session  models.Session
	password string
}

// Server holds the in-memory backend state.
type Server struct {
	mu            sync.Mutex
	accounts      map[string]*account // keyed by email/phone identifier
	invitations   map[models.InvitationType][]*models.InvitationCode
	notifications []models.Notification
}

// New creates a dev server seeded with one approved owner account
// (resident@example.com / secret123).
func New() *Server {
	s := &Server{
		accounts:    make(map[string]*account),
		invitations: make(map[models.InvitationType][]*models.InvitationCode),
		notifications: []models.Notification{
			{
				NotifID:  uuid.NewString(),
				Title:    "Welcome",
				Body:     "Your account has been approved.",
				DateTime: time.Now().Format("2006-01-02 15:04"),
			},
		},
	}
	s.accounts["resident@example.com"] = &account{
		session: models.Session{
			UserID:    uuid.NewString(),
			Role:      models.RoleOwner,
			FirstName: "Pat",
			LastName:  "Resident",
			Email:     "resident@example.com",
			Project:   "Palm Hills",
			Unit:      "B-12",
		},
		password: "secret123",
	}
	return s
}

// Handler returns the router for all emulated endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)

	r.Post("/login.php", s.handleLogin)
	r.Post("/login_with_code.php", s.handleLoginWithCode)
	r.Post("/register_owner.php", s.handleRegister)
	r.Post("/register_with_code.php", s.handleRegister)
	r.Post("/user_change_password.php", s.handleChangePassword)
	r.Post("/forgot_password_mail_check_code_send.php", s.handleResetRequest)
	r.Post("/forgot_password_update_new_pass.php", s.handleResetComplete)
	r.Post("/create_invitation_family_renter.php", s.handleCreateCode)
	r.Post("/create_one_time_pass.php", s.handleCreateOneTimePass)
	r.Post("/create_gate_permission.php", s.handleCreatePermission)
	r.Post("/get_invitations_by_type.php", s.handleListInvitations)
	r.Post("/activate_deactivate_permission.php", s.handleTogglePermission)
	r.Post("/user_identity.php", s.handleIdentity)
	r.Post("/get_home_page.php", s.handleHomePage)
	r.Post("/get_notifications.php", s.handleNotifications)
	r.Post("/contact_form.php", s.handleAccepted)
	r.Post("/user_account_data.php", s.handleAccountData)
	r.Post("/user_change_photo.php", s.handleChangePhoto)
	r.Post("/request_account_deletion.php", s.handleAccepted)

	return r
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	s.mu.Lock()
	acct, ok := s.accounts[email]
	s.mu.Unlock()
	if !ok || acct.password != password {
		respondError(w, "Invalid credentials")
		return
	}

	log.Info().Str("email", email).Str("device_id", r.FormValue("deviceId")).Msg("Dev login")

	body := map[string]any{
		"status":     "OK",
		"userId":     acct.session.UserID,
		"role":       acct.session.Role,
		"first_name": acct.session.FirstName,
		"last_name":  acct.session.LastName,
		"email":      acct.session.Email,
		"project":    acct.session.Project,
		"unit":       acct.session.Unit,
	}
	respondJSON(w, body)
}

func (s *Server) handleLoginWithCode(w http.ResponseWriter, r *http.Request) {
	code := r.FormValue("code")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, typ := range []models.InvitationType{models.InvitationFamily, models.InvitationRenter} {
		for _, inv := range s.invitations[typ] {
			if inv.Code != code {
				continue
			}
			owner := s.anyOwner()
			respondJSON(w, map[string]any{
				"status":     "OK",
				"userId":     uuid.NewString(),
				"first_name": "Guest",
				"last_name":  "User",
				"unit":       owner.Unit,
				"project":    owner.Project,
				"codeType":   typ,
				"userPhoto":  "",
				"ownerId":    owner.UserID,
				"usedCode":   code,
			})
			return
		}
	}
	respondError(w, "Unknown code")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	if email == "" || r.FormValue("password") == "" {
		respondError(w, "Missing required fields")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[email]; exists {
		respondError(w, "Account already exists")
		return
	}

	role := models.Role(r.FormValue("role"))
	if role == "" {
		role = models.RoleFamily
	}
	s.accounts[email] = &account{
		session: models.Session{
			UserID:    uuid.NewString(),
			Role:      role,
			FirstName: r.FormValue("first_name"),
			LastName:  r.FormValue("last_name"),
			Email:     email,
			Project:   r.FormValue("project"),
			Unit:      r.FormValue("unit"),
		},
		password: r.FormValue("password"),
	}
	respondJSON(w, map[string]any{"status": "OK", "info": "Registration received, pending approval"})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	s.updatePassword(w, r.FormValue("userId"), r.FormValue("password"))
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")

	s.mu.Lock()
	acct, ok := s.accounts[email]
	s.mu.Unlock()
	if !ok {
		respondError(w, "No account for this email")
		return
	}
	respondJSON(w, map[string]any{
		"status": "OK",
		"info":   "Verification code sent",
		"userId": acct.session.UserID,
		"role":   acct.session.Role,
		"email":  acct.session.Email,
	})
}

func (s *Server) handleResetComplete(w http.ResponseWriter, r *http.Request) {
	s.updatePassword(w, r.FormValue("userId"), r.FormValue("new_password"))
}

func (s *Server) updatePassword(w http.ResponseWriter, userID, password string) {
	if password == "" {
		respondError(w, "Missing password")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.session.UserID == userID {
			acct.password = password
			respondJSON(w, map[string]any{"status": "OK", "info": "Password updated"})
			return
		}
	}
	respondError(w, "Unknown user")
}

func (s *Server) handleCreateCode(w http.ResponseWriter, r *http.Request) {
	typ := models.InvitationType(r.FormValue("invitaion_type"))
	if typ != models.InvitationFamily && typ != models.InvitationRenter {
		respondError(w, "Unknown invitation type")
		return
	}

	inv := &models.InvitationCode{
		InvitationID: uuid.NewString(),
		Type:         typ,
		Code:         randomCode(),
		Status:       models.StatusApproved,
		GeneratedAt:  time.Now().Format("2006-01-02 15:04"),
		From:         r.FormValue("rent_from"),
		To:           r.FormValue("rent_to"),
	}

	s.mu.Lock()
	s.invitations[typ] = append(s.invitations[typ], inv)
	s.mu.Unlock()

	respondJSON(w, map[string]any{"status": "OK", "invitationId": inv.InvitationID, "code": inv.Code})
}

func (s *Server) handleCreateOneTimePass(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("guest_name") == "" {
		respondError(w, "Missing guest name")
		return
	}

	inv := &models.InvitationCode{
		InvitationID: uuid.NewString(),
		Type:         models.InvitationOneTimePass,
		QRCode:       base64.StdEncoding.EncodeToString([]byte(randomCode())),
		Status:       models.StatusApproved,
		GeneratedAt:  time.Now().Format("2006-01-02 15:04"),
		GuestName:    r.FormValue("guest_name"),
		GuestRide:    r.FormValue("guest_ride"),
	}

	s.mu.Lock()
	s.invitations[models.InvitationOneTimePass] = append(s.invitations[models.InvitationOneTimePass], inv)
	s.mu.Unlock()

	respondJSON(w, map[string]any{"status": "OK", "invitationId": inv.InvitationID, "qrcode": inv.QRCode})
}

func (s *Server) handleCreatePermission(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("guest_name") == "" || r.FormValue("date_from") == "" || r.FormValue("date_to") == "" {
		respondError(w, "Missing required fields")
		return
	}

	inv := &models.InvitationCode{
		InvitationID: uuid.NewString(),
		Type:         models.InvitationPermission,
		Status:       models.StatusActive,
		GeneratedAt:  time.Now().Format("2006-01-02 15:04"),
		From:         r.FormValue("date_from"),
		To:           r.FormValue("date_to"),
		GuestName:    r.FormValue("guest_name"),
		Description:  r.FormValue("description"),
	}

	s.mu.Lock()
	s.invitations[models.InvitationPermission] = append(s.invitations[models.InvitationPermission], inv)
	s.mu.Unlock()

	respondJSON(w, map[string]any{"status": "OK"})
}

func (s *Server) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	typ := models.InvitationType(r.FormValue("type"))
	if !typ.Valid() {
		respondError(w, "Unknown invitation type")
		return
	}

	s.mu.Lock()
	items := make([]models.InvitationCode, 0, len(s.invitations[typ]))
	for _, inv := range s.invitations[typ] {
		items = append(items, *inv)
	}
	s.mu.Unlock()

	respondJSON(w, map[string]any{"status": "OK", "data": items})
}

func (s *Server) handleTogglePermission(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("permissionId")
	newStatus := models.CodeStatus(r.FormValue("new_status"))
	if newStatus != models.StatusActive && newStatus != models.StatusExpired {
		respondError(w, "Unknown status")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invitations[models.InvitationPermission] {
		if inv.InvitationID == id {
			inv.Status = newStatus
			respondJSON(w, map[string]any{"status": "OK"})
			return
		}
	}
	respondError(w, "Unknown permission")
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	acct := s.accountByID(r.FormValue("userId"))
	if acct == nil {
		respondError(w, "Unknown user")
		return
	}
	respondJSON(w, map[string]any{
		"status": "OK",
		"data": models.Identity{
			FirstName: acct.session.FirstName,
			LastName:  acct.session.LastName,
			Project:   acct.session.Project,
			Unit:      acct.session.Unit,
			QRCode:    base64.StdEncoding.EncodeToString([]byte(acct.session.UserID)),
		},
	})
}

func (s *Server) handleHomePage(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"data": models.HomeFeed{
			Ads:   []models.FeedItem{{ItemTitle: "Pool maintenance", ItemBody: "Closed on Friday"}},
			News:  []models.FeedItem{{ItemTitle: "New gym hours", ItemBody: "Open 6:00-23:00"}},
			Media: []models.FeedItem{},
		},
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := make([]models.Notification, len(s.notifications))
	copy(items, s.notifications)
	s.mu.Unlock()
	respondJSON(w, map[string]any{"status": "OK", "data": items})
}

func (s *Server) handleAccountData(w http.ResponseWriter, r *http.Request) {
	acct := s.accountByID(r.FormValue("userId"))
	if acct == nil {
		respondError(w, "Unknown user")
		return
	}
	respondJSON(w, map[string]any{
		"status": "OK",
		"data":   acct.session,
		"relatedData": map[string]any{
			"family": []models.RelatedUser{},
			"renter": []models.RelatedUser{},
		},
	})
}

func (s *Server) handleChangePhoto(w http.ResponseWriter, r *http.Request) {
	acct := s.accountByID(r.FormValue("userId"))
	if acct == nil {
		respondError(w, "Unknown user")
		return
	}
	file, header, err := r.FormFile("userPhoto")
	if err != nil {
		respondError(w, "Missing photo")
		return
	}
	file.Close()

	s.mu.Lock()
	acct.session.UserPhotoURL = "https://cdn.example.com/photos/" + header.Filename
	session := acct.session
	s.mu.Unlock()

	body := map[string]any{
		"status":     "OK",
		"userId":     session.UserID,
		"role":       session.Role,
		"first_name": session.FirstName,
		"last_name":  session.LastName,
		"email":      session.Email,
		"project":    session.Project,
		"unit":       session.Unit,
		"userPhoto":  session.UserPhotoURL,
	}
	respondJSON(w, body)
}

func (s *Server) handleAccepted(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{"status": "OK", "info": "Request received"})
}

func (s *Server) accountByID(userID string) *account {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.session.UserID == userID {
			return acct
		}
	}
	return nil
}

// anyOwner returns the seeded owner; callers hold s.mu.
func (s *Server) anyOwner() models.Session {
	for _, acct := range s.accounts {
		if acct.session.Role == models.RoleOwner {
			return acct.session
		}
	}
	return models.Session{}
}

func respondJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, info string) {
	respondJSON(w, map[string]any{"status": "ERROR", "info": info})
}

// randomCode generates a shareable 6-character invitation code.
func randomCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}
