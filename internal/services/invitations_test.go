package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"community-access-client/internal/gateway"
	"community-access-client/internal/models"
	"community-access-client/internal/store"
)

// newAuthedInvitations returns an invitation service backed by handler, with
// an owner session already in place, plus a counter of requests that reached
// the server.
func newAuthedInvitations(t *testing.T, handler http.HandlerFunc) (*InvitationService, *atomic.Int32) {
	t.Helper()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	creds := newMemStore()
	serialized, _ := json.Marshal(models.Session{UserID: "u1", Role: models.RoleOwner})
	creds.Set(store.KeyUser, string(serialized))

	gw := gateway.New(server.URL, 0)
	sessions := NewSessionManager(gw, creds)
	sessions.Initialize(context.Background())
	return NewInvitationService(gw, sessions), &requests
}

func TestGenerateRequiresSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be issued without a session")
	}))
	defer server.Close()

	gw := gateway.New(server.URL, 0)
	sessions := NewSessionManager(gw, newMemStore())
	sessions.Initialize(context.Background())
	svc := NewInvitationService(gw, sessions)

	_, err := svc.Generate(context.Background(), models.InvitationFamily, GenerateInput{})
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestGenerateValidationShortCircuits(t *testing.T) {
	svc, requests := newAuthedInvitations(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK"}`))
	})

	_, err := svc.Generate(context.Background(), models.InvitationPermission, GenerateInput{
		GuestName:   "",
		Description: "x",
		DateFrom:    "2024-01-01",
		DateTo:      "2024-01-02",
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Field != "guest_name" {
		t.Errorf("expected guest_name violation, got %q", vErr.Field)
	}
	if requests.Load() != 0 {
		t.Errorf("validation failure must not issue a network call, saw %d", requests.Load())
	}
}

func TestGenerateRejectsMalformedDates(t *testing.T) {
	svc, requests := newAuthedInvitations(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := svc.Generate(context.Background(), models.InvitationRenter, GenerateInput{
		RentFrom: "01/02/2024",
		RentTo:   "2024-03-01",
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if requests.Load() != 0 {
		t.Error("malformed dates must not issue a network call")
	}
}

func TestGenerateFamilyYieldsCode(t *testing.T) {
	svc, _ := newAuthedInvitations(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/create_invitation_family_renter.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.FormValue("invitaion_type"); got != "family" {
			t.Errorf("expected discriminator family, got %q", got)
		}
		w.Write([]byte(`{"status":"OK","code":"ABC123"}`))
	})

	inv, err := svc.Generate(context.Background(), models.InvitationFamily, GenerateInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Code != "ABC123" {
		t.Errorf("expected shareable code, got %q", inv.Code)
	}
	if inv.QRCode != "" {
		t.Error("family invitation must not carry a qrcode")
	}
}

func TestGenerateRenterSendsDateRange(t *testing.T) {
	svc, _ := newAuthedInvitations(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("invitaion_type"); got != "renter" {
			t.Errorf("expected discriminator renter, got %q", got)
		}
		if r.FormValue("rent_from") != "2024-01-01" || r.FormValue("rent_to") != "2024-06-30" {
			t.Errorf("date range not forwarded: from=%q to=%q", r.FormValue("rent_from"), r.FormValue("rent_to"))
		}
		w.Write([]byte(`{"status":"OK","code":"RNT999"}`))
	})

	inv, err := svc.Generate(context.Background(), models.InvitationRenter, GenerateInput{
		RentFrom: "2024-01-01",
		RentTo:   "2024-06-30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.From != "2024-01-01" || inv.To != "2024-06-30" {
		t.Errorf("date range not kept on the result: %+v", inv)
	}
}

func TestGenerateOneTimePassYieldsQRCode(t *testing.T) {
	svc, _ := newAuthedInvitations(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/create_one_time_pass.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"OK","qrcode":"base64payload"}`))
	})

	inv, err := svc.Generate(context.Background(), models.InvitationOneTimePass, GenerateInput{
		GuestName: "G",
		GuestRide: "R",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.QRCode != "base64payload" {
		t.Errorf("expected qrcode, got %q", inv.QRCode)
	}
	if inv.Code != "" {
		t.Error("one-time pass must not carry a shareable code")
	}
}

func TestGenerateBusinessFailure(t *testing.T) {
	svc, _ := newAuthedInvitations(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ERROR","info":"Quota exceeded"}`))
	})

	_, err := svc.Generate(context.Background(), models.InvitationFamily, GenerateInput{})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestListByTypeEmptyIsNotError(t *testing.T) {
	svc, _ := newAuthedInvitations(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","data":[]}`))
	})

	items, err := svc.ListByType(context.Background(), models.InvitationPermission)
	if err != nil {
		t.Fatalf("empty list must resolve, got %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty slice, got %#v", items)
	}
}

func TestListByTypeParsesBackendFields(t *testing.T) {
	svc, _ := newAuthedInvitations(t, func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("type") != "permission" {
			t.Errorf("expected type permission, got %q", r.FormValue("type"))
		}
		w.Write([]byte(`{"status":"OK","data":[{"invitationId":"i1","codeStatus":"active",` +
			`"generated_at":"2024-05-01 10:00","from":"2024-05-02","to":"2024-05-09",` +
			`"guest_name":"G","description":"plumber"}]}`))
	})

	items, err := svc.ListByType(context.Background(), models.InvitationPermission)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}
	inv := items[0]
	if inv.InvitationID != "i1" || inv.Status != models.StatusActive || inv.GuestName != "G" {
		t.Errorf("backend fields not mapped: %+v", inv)
	}
	if inv.Type != models.InvitationPermission {
		t.Errorf("expected the queried type attached, got %q", inv.Type)
	}
}

func TestSetPermissionStatus(t *testing.T) {
	svc, _ := newAuthedInvitations(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activate_deactivate_permission.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.FormValue("permissionId") != "i1" || r.FormValue("new_status") != "expired" {
			t.Errorf("toggle fields not forwarded: id=%q status=%q",
				r.FormValue("permissionId"), r.FormValue("new_status"))
		}
		w.Write([]byte(`{"status":"OK"}`))
	})

	if err := svc.SetPermissionStatus(context.Background(), "i1", models.StatusExpired); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetPermissionStatusRejectsOtherStatuses(t *testing.T) {
	svc, requests := newAuthedInvitations(t, func(w http.ResponseWriter, r *http.Request) {})

	err := svc.SetPermissionStatus(context.Background(), "i1", models.StatusApproved)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if requests.Load() != 0 {
		t.Error("invalid status must not issue a network call")
	}
}
