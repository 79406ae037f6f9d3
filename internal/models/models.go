package models

import "encoding/json"

// Role identifies what kind of resident the backend authenticated.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleFamily Role = "family"
	RoleRenter Role = "renter"
)

// Session represents the authenticated user held client-side after login.
// Raw preserves the full login payload so fields the backend adds later
// survive a persist/restore round trip.
type Session struct {
	UserID       string `json:"userId"`
	Role         Role   `json:"role"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	UserPhotoURL string `json:"userPhoto,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	Project      string `json:"project,omitempty"`
	Unit         string `json:"unit,omitempty"`

	// Guest sessions created via code login carry these instead of a
	// registered profile.
	Name     string `json:"name,omitempty"`
	OwnerID  string `json:"ownerId,omitempty"`
	UsedCode string `json:"usedCode,omitempty"`

	Raw json.RawMessage `json:"raw,omitempty"`
}

// DisplayName returns the best available human-readable name.
func (s *Session) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.FirstName == "" && s.LastName == "" {
		return s.Email
	}
	return s.FirstName + " " + s.LastName
}

// InvitationType discriminates the four kinds of access grants.
type InvitationType string

const (
	InvitationFamily      InvitationType = "family"
	InvitationRenter      InvitationType = "renter"
	InvitationOneTimePass InvitationType = "oneTimePass"
	InvitationPermission  InvitationType = "permission"
)

// Valid reports whether t is one of the known invitation types.
func (t InvitationType) Valid() bool {
	switch t {
	case InvitationFamily, InvitationRenter, InvitationOneTimePass, InvitationPermission:
		return true
	}
	return false
}

// CodeStatus is the backend's per-invitation state. The vocabulary varies by
// type: family/renter/oneTimePass codes go pending -> approved, while gate
// permissions toggle between active and expired.
type CodeStatus string

const (
	StatusPending  CodeStatus = "pending"
	StatusApproved CodeStatus = "approved"
	StatusActive   CodeStatus = "active"
	StatusExpired  CodeStatus = "expired"
)

// InvitationCode is an access grant issued for a third party. Exactly one of
// Code (family/renter) or QRCode (oneTimePass) is populated; date-ranged
// types carry From and To.
type InvitationCode struct {
	InvitationID string         `json:"invitationId"`
	Type         InvitationType `json:"type,omitempty"`
	Code         string         `json:"code,omitempty"`
	QRCode       string         `json:"qrcode,omitempty"`
	Status       CodeStatus     `json:"codeStatus,omitempty"`
	GeneratedAt  string         `json:"generated_at,omitempty"`
	From         string         `json:"from,omitempty"`
	To           string         `json:"to,omitempty"`
	GuestName    string         `json:"guest_name,omitempty"`
	GuestRide    string         `json:"guest_ride,omitempty"`
	Description  string         `json:"description,omitempty"`
}

// Identity is the resident's own gate credential shown at the entrance.
type Identity struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Project   string `json:"project"`
	Unit      string `json:"unit"`
	QRCode    string `json:"qrcode"`
}

// FeedItem is a single ad, news or media entry on the home feed.
type FeedItem struct {
	ItemID       string `json:"itemId,omitempty"`
	ItemTitle    string `json:"itemTitle"`
	ItemBody     string `json:"itemBody,omitempty"`
	ItemPhotoURL string `json:"itemPhotoUrl,omitempty"`
}

// HomeFeed groups the three home page sections.
type HomeFeed struct {
	Ads   []FeedItem `json:"ads"`
	News  []FeedItem `json:"news"`
	Media []FeedItem `json:"media"`
}

// Notification is a backend-pushed message listed in the app.
type Notification struct {
	NotifID  string `json:"notifId"`
	Title    string `json:"notificationTitle"`
	Body     string `json:"notificationBody"`
	DateTime string `json:"notificationDateTime"`
}

// RelatedUser is a family member or tenant attached to the owner's account.
type RelatedUser struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Source     string `json:"source"`
	UserStatus string `json:"userstatus"`
	UserPhoto  string `json:"userPhoto"`
}

// AccountData is the profile view: the user record plus the family members
// and tenants registered under it.
type AccountData struct {
	User    Session       `json:"user"`
	Family  []RelatedUser `json:"family"`
	Renters []RelatedUser `json:"renter"`
}
