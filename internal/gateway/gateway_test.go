package gateway

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gild.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, store *Store, id string) {
	t.Helper()
	if _, err := store.db.Exec(`INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)`, id, id, time.Now().Unix()); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	seedUser(t, store, "alice")

	sess, err := store.CreateSession(context.Background(), "alice", time.Hour)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := store.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", got.UserID)
	}

	if err := store.DeleteSession(context.Background(), sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := store.GetSession(context.Background(), sess.ID); err == nil {
		t.Error("expected error loading a deleted session")
	}
}

func TestTokenVerifierRoundTrip(t *testing.T) {
	store := openTestStore(t)
	seedUser(t, store, "bob")
	verifier := NewTokenVerifier("test-signing-key", store)

	token, sess, err := verifier.IssueToken(context.Background(), "bob", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	got, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ID != sess.ID || got.UserID != "bob" {
		t.Errorf("Verify returned %+v, want session %s for bob", got, sess.ID)
	}
}

func TestTokenVerifierRejectsExpired(t *testing.T) {
	store := openTestStore(t)
	seedUser(t, store, "carol")
	verifier := NewTokenVerifier("test-signing-key", store)

	token, _, err := verifier.IssueToken(context.Background(), "carol", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := verifier.Verify(context.Background(), token); err == nil {
		t.Error("expected Verify to reject an expired session")
	}
}

func TestAuditedRecordsBothOutcomes(t *testing.T) {
	store := openTestStore(t)

	ok := Audited("ok-endpoint", store, Handler[InstallRequest, InstallResponse](
		func(ctx context.Context, userID string, req InstallRequest) Result[InstallResponse] {
			return Ok(InstallResponse{Title: req.Name, Status: "installed"})
		}))
	fail := Audited("fail-endpoint", store, Handler[InstallRequest, InstallResponse](
		func(ctx context.Context, userID string, req InstallRequest) Result[InstallResponse] {
			return Fail[InstallResponse](errTest)
		}))

	ok(context.Background(), "dave", InstallRequest{Name: "plex", Version: "1.0.0"})
	fail(context.Background(), "dave", InstallRequest{Name: "plex", Version: "1.0.0"})

	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&count); err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if count != 2 {
		t.Errorf("audit row count = %d, want 2", count)
	}

	var errCol string
	if err := store.db.QueryRow(`SELECT error FROM audit_log WHERE endpoint = ?`, "fail-endpoint").Scan(&errCol); err != nil {
		t.Fatalf("read failed row: %v", err)
	}
	if errCol == "" {
		t.Error("expected the failed call's audit row to carry an error string")
	}
}

var errTest = errFixture("boom")

type errFixture string

func (e errFixture) Error() string { return string(e) }

func TestServeRoundTripsCBOR(t *testing.T) {
	store := openTestStore(t)
	seedUser(t, store, "erin")
	verifier := NewTokenVerifier("test-signing-key", store)
	token, _, err := verifier.IssueToken(context.Background(), "erin", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	echo := Handler[InstallRequest, InstallResponse](func(ctx context.Context, userID string, req InstallRequest) Result[InstallResponse] {
		if userID != "erin" {
			t.Errorf("handler saw userID %q, want erin", userID)
		}
		return Ok(InstallResponse{Title: req.Name + "-" + req.Version, Status: "installed"})
	})

	handler := Serve(verifier, true, echo)

	var body bytes.Buffer
	if err := cbor.NewEncoder(&body).Encode(InstallRequest{Name: "plex", Version: "1.0.0"}); err != nil {
		t.Fatalf("encode request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/packages/install", &body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp InstallResponse
	if err := cbor.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Title != "plex-1.0.0" || resp.Status != "installed" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestServeRejectsMissingBearerToken(t *testing.T) {
	store := openTestStore(t)
	verifier := NewTokenVerifier("test-signing-key", store)

	echo := Handler[InstallRequest, InstallResponse](func(ctx context.Context, userID string, req InstallRequest) Result[InstallResponse] {
		return Ok(InstallResponse{})
	})
	handler := Serve(verifier, true, echo)

	var body bytes.Buffer
	cbor.NewEncoder(&body).Encode(InstallRequest{Name: "plex", Version: "1.0.0"})
	req := httptest.NewRequest(http.MethodPost, "/packages/install", &body)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var problem Problem
	if err := cbor.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if problem.Type != "validation" {
		t.Errorf("problem.Type = %q, want validation", problem.Type)
	}
}
