package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dataworks/fieldaudit/internal/model"
)

// TestLogin_AttachesAPIKey tests that a successful login stores the key
// for later requests.
func TestLogin_AttachesAPIKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/phone-api/login.php":
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("bad login body: %v", err)
			}
			if body["email"] != "a@b.test" || body["pw"] != "secret" {
				t.Errorf("login body = %v", body)
			}
			_ = json.NewEncoder(w).Encode(LoginResult{Status: "ok", APIKey: "k123"})
		case "/phone-api/search-info/get-bldg-offset.php":
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(BuildingPage{})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	res, err := c.Login(ctx, "a@b.test", "secret")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if res.APIKey != "k123" {
		t.Fatalf("APIKey = %q, want k123", res.APIKey)
	}

	if _, err := c.FetchBuildings(ctx, 0, 1); err != nil {
		t.Fatalf("FetchBuildings() failed: %v", err)
	}
	if gotAuth != "Bearer k123" {
		t.Errorf("Authorization = %q, want Bearer k123", gotAuth)
	}
}

// TestAssetByTag_UnknownIsNotAnError tests the (nil, nil) contract for a
// tag the server does not recognize.
func TestAssetByTag_UnknownIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/phone-api/asset-by-tag.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	a, err := New(srv.URL).AssetByTag(context.Background(), "NOPE", "FIN01")
	if err != nil {
		t.Fatalf("AssetByTag() failed: %v", err)
	}
	if a != nil {
		t.Errorf("AssetByTag() = %+v, want nil", a)
	}
}

// TestAssetByTag_Known tests decoding a recognized tag.
func TestAssetByTag_Known(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"tag": "A-1", "name": "Laptop", "serial": "SN1"}]}`))
	}))
	defer srv.Close()

	a, err := New(srv.URL).AssetByTag(context.Background(), "A-1", "FIN01")
	if err != nil {
		t.Fatalf("AssetByTag() failed: %v", err)
	}
	if a == nil || a.Tag != "A-1" || a.Name != "Laptop" {
		t.Errorf("AssetByTag() = %+v", a)
	}
}

// TestPost_HTTPError tests that non-2xx responses surface status and body.
func TestPost_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchAssets(context.Background(), 0, 10)
	if err == nil {
		t.Fatal("FetchAssets() succeeded on a 401")
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error %v does not wrap *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", httpErr.StatusCode)
	}
}

// TestCompleteAudit_Body tests the submission body shape.
func TestCompleteAudit_Body(t *testing.T) {
	var got CompleteAuditRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/phone-api/audit/complete-audit.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Ack{Status: "ok"})
	}))
	defer srv.Close()

	rows := []*model.AuditingRow{
		{Asset: model.Asset{Tag: "A-1", Name: "Printer"}, FoundStatus: model.FoundStatusFound},
	}
	ack, err := New(srv.URL).CompleteAudit(context.Background(), &CompleteAuditRequest{
		Data:     rows,
		DeptName: "Finance",
		Email:    "a@b.test",
		PW:       "secret",
	})
	if err != nil {
		t.Fatalf("CompleteAudit() failed: %v", err)
	}
	if ack.Status != "ok" {
		t.Errorf("ack = %+v", ack)
	}
	if len(got.Data) != 1 || got.Data[0].Tag != "A-1" {
		t.Errorf("submitted data = %+v", got.Data)
	}
	if got.DeptName != "Finance" || got.Email != "a@b.test" || got.PW != "secret" {
		t.Errorf("submitted metadata = %+v", got)
	}
}
