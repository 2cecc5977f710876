package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// fakeStore emulates the KV-v2 endpoints the client touches.
type fakeStore struct {
	secrets map[string]map[string]string
	hits    atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{secrets: make(map[string]map[string]string)}
}

func (s *fakeStore) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)

		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/secret/data/"):
			key := strings.TrimPrefix(r.URL.Path, "/v1/secret/data/")
			switch r.Method {
			case http.MethodPut:
				var payload struct {
					Data map[string]string `json:"data"`
				}
				if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				s.secrets[key] = payload.Data
				w.WriteHeader(http.StatusOK)
			case http.MethodGet:
				fields, ok := s.secrets[key]
				if !ok {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				json.NewEncoder(w).Encode(map[string]any{
					"data": map[string]any{"data": fields},
				})
			}
		case strings.HasPrefix(r.URL.Path, "/v1/secret/metadata/"):
			if r.Method != http.MethodDelete {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			key := strings.TrimPrefix(r.URL.Path, "/v1/secret/metadata/")
			delete(s.secrets, key)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestClient(t *testing.T, store *fakeStore) *Client {
	t.Helper()
	srv := httptest.NewServer(store.handler())
	t.Cleanup(srv.Close)
	return NewClient(Config{Address: srv.URL, Token: "test-token"})
}

func TestClient_InvalidSegmentsNeverReachStore(t *testing.T) {
	store := newFakeStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	tests := []struct {
		name     string
		userID   string
		provider string
	}{
		{"slash in user", "u1/../etc", "openai"},
		{"space in user", "u 1", "openai"},
		{"empty user", "", "openai"},
		{"slash in provider", "u1", "open/ai"},
		{"hash in provider", "u1", "open#ai"},
		{"empty provider", "u1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := client.AddSecret(ctx, tt.userID, tt.provider, map[string]string{"k": "v"}); !IsKind(err, KindPath) {
				t.Errorf("AddSecret error = %v, want path error", err)
			}
			if _, err := client.GetSecret(ctx, tt.userID, tt.provider); !IsKind(err, KindPath) {
				t.Errorf("GetSecret error = %v, want path error", err)
			}
			if err := client.DeleteSecret(ctx, tt.userID, tt.provider); !IsKind(err, KindPath) {
				t.Errorf("DeleteSecret error = %v, want path error", err)
			}
		})
	}

	if hits := store.hits.Load(); hits != 0 {
		t.Errorf("store received %d requests, want 0", hits)
	}
}

func TestClient_AddGetRoundTrip(t *testing.T) {
	store := newFakeStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	fields := map[string]string{"api_key": "sk-123", "region": "us-east-1"}
	if err := client.AddSecret(ctx, "user-1", "openai", fields); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}

	got, err := client.GetSecret(ctx, "user-1", "openai")
	if err != nil {
		t.Fatalf("GetSecret: %v", err)
	}

	if len(got) != len(fields) {
		t.Fatalf("got %d fields, want %d", len(got), len(fields))
	}
	for k, v := range fields {
		if got[k] != v {
			t.Errorf("field %q = %q, want %q", k, got[k], v)
		}
	}
}

func TestClient_AddSecretOverwrites(t *testing.T) {
	store := newFakeStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	if err := client.AddSecret(ctx, "user-1", "openai", map[string]string{"api_key": "old", "region": "eu-west-1"}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}
	if err := client.AddSecret(ctx, "user-1", "openai", map[string]string{"api_key": "new"}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}

	got, err := client.GetSecret(ctx, "user-1", "openai")
	if err != nil {
		t.Fatalf("GetSecret: %v", err)
	}

	// Full overwrite, no merge: the old region field must be gone.
	if got["api_key"] != "new" {
		t.Errorf("api_key = %q, want %q", got["api_key"], "new")
	}
	if _, ok := got["region"]; ok {
		t.Error("region survived overwrite, want it gone")
	}
}

func TestClient_GetSecretNullPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"data":null}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{Address: srv.URL, Token: "t"})

	_, err := client.GetSecret(context.Background(), "user-1", "openai")
	if !IsKind(err, KindRead) {
		t.Fatalf("error = %v, want read error", err)
	}
}

func TestClient_GetSecretNonObjectPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"data":["not","a","map"]}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{Address: srv.URL, Token: "t"})

	_, err := client.GetSecret(context.Background(), "user-1", "openai")
	if !IsKind(err, KindRead) {
		t.Fatalf("error = %v, want read error", err)
	}
}

func TestClient_GetSecretNotFound(t *testing.T) {
	store := newFakeStore()
	client := newTestClient(t, store)

	_, err := client.GetSecret(context.Background(), "user-1", "missing")
	if !IsKind(err, KindRead) {
		t.Fatalf("error = %v, want read error", err)
	}
}

func TestClient_DeleteTargetsMetadataPath(t *testing.T) {
	var deletedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deletedPath = r.URL.Path
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(Config{Address: srv.URL, Token: "t"})
	if err := client.DeleteSecret(context.Background(), "user-1", "openai"); err != nil {
		t.Fatalf("DeleteSecret: %v", err)
	}

	want := "/v1/secret/metadata/user-1/openai"
	if deletedPath != want {
		t.Errorf("delete path = %q, want %q", deletedPath, want)
	}
}

func TestClient_BackendFailureKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{Address: srv.URL, Token: "t"})
	ctx := context.Background()

	if err := client.AddSecret(ctx, "u", "p", nil); !IsKind(err, KindWrite) {
		t.Errorf("AddSecret error = %v, want write error", err)
	}
	if _, err := client.GetSecret(ctx, "u", "p"); !IsKind(err, KindRead) {
		t.Errorf("GetSecret error = %v, want read error", err)
	}
	if err := client.DeleteSecret(ctx, "u", "p"); !IsKind(err, KindDelete) {
		t.Errorf("DeleteSecret error = %v, want delete error", err)
	}
}

func TestClient_HealthSealed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sys/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"initialized":true,"sealed":true}`))
	}))
	defer srv.Close()

	client := NewClient(Config{Address: srv.URL, Token: "t"})
	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !status.Sealed {
		t.Error("Sealed = false, want true")
	}
}
