package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"llm_router/internal/auth"
)

// fakeVerifier returns a canned result or error and counts calls.
type fakeVerifier struct {
	result *auth.VerifyResult
	err    error
	calls  int
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (*auth.VerifyResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestAuthMiddleware_Success(t *testing.T) {
	verifier := &fakeVerifier{result: &auth.VerifyResult{
		Valid:     true,
		UserID:    "u1",
		Providers: []string{"openai"},
	}}
	mw := AuthMiddleware(verifier)

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc, ok := GetRequestContext(r.Context())
		if !ok {
			t.Error("request context not found")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if rc.UserID != "u1" {
			t.Errorf("UserID = %q, want u1", rc.UserID)
		}
		if len(rc.UserProviders) != 1 || rc.UserProviders[0] != "openai" {
			t.Errorf("UserProviders = %v, want [openai]", rc.UserProviders)
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("POST", "/v1/route/candidates", nil)
	req.Header.Set("Authorization", "Bearer T")
	w := httptest.NewRecorder()

	mw(nextHandler).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_BearerSchemeCaseInsensitive(t *testing.T) {
	verifier := &fakeVerifier{result: &auth.VerifyResult{Valid: true, UserID: "u1"}}
	mw := AuthMiddleware(verifier)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("Authorization", "bearer T")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for lowercase scheme", w.Code)
	}
}

func TestAuthMiddleware_RejectsWithoutVerifierCall(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic X"},
		{"scheme only", "Bearer"},
		{"empty token", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &fakeVerifier{result: &auth.VerifyResult{Valid: true, UserID: "u1"}}
			mw := AuthMiddleware(verifier)

			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("next handler should not run")
			}))

			req := httptest.NewRequest("POST", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			if verifier.calls != 0 {
				t.Errorf("verifier called %d times, want 0", verifier.calls)
			}
		})
	}
}

func TestAuthMiddleware_VerifierFailureIsUnauthorized(t *testing.T) {
	verifier := &fakeVerifier{err: errors.New("connection refused")}
	mw := AuthMiddleware(verifier)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not run")
	}))

	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("Authorization", "Bearer T")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// Backend failures never surface as 5xx; the caller cannot tell
	// "backend down" from "bad key".
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_InvalidResultIsUnauthorized(t *testing.T) {
	tests := []struct {
		name   string
		result *auth.VerifyResult
	}{
		{"valid false", &auth.VerifyResult{Valid: false, UserID: "u1"}},
		{"missing userId", &auth.VerifyResult{Valid: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &fakeVerifier{result: tt.result}
			mw := AuthMiddleware(verifier)

			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("next handler should not run")
			}))

			req := httptest.NewRequest("POST", "/", nil)
			req.Header.Set("Authorization", "Bearer T")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestAuthMiddleware_ContextScopedPerRequest(t *testing.T) {
	verifier := &fakeVerifier{result: &auth.VerifyResult{Valid: true, UserID: "u1"}}
	mw := AuthMiddleware(verifier)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Authorized request attaches a context; a bare context has none.
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("Authorization", "Bearer T")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if _, ok := GetRequestContext(context.Background()); ok {
		t.Error("request context leaked outside the request")
	}
}
