package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPVerifier_Verify(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(VerifyResult{
			Valid:     true,
			UserID:    "u1",
			Providers: []string{"openai", "anthropic"},
		})
	}))
	defer srv.Close()

	verifier := NewHTTPVerifier(srv.URL, 0)
	result, err := verifier.Verify(context.Background(), "tok-abc")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if gotPath != "/v1/apikey/verify" {
		t.Errorf("path = %q, want /v1/apikey/verify", gotPath)
	}
	if gotBody["key"] != "tok-abc" {
		t.Errorf("body key = %q, want tok-abc", gotBody["key"])
	}
	if !result.Valid || result.UserID != "u1" {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.Providers) != 2 {
		t.Errorf("providers = %v, want two entries", result.Providers)
	}
}

func TestHTTPVerifier_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	verifier := NewHTTPVerifier(srv.URL, 0)
	if _, err := verifier.Verify(context.Background(), "tok"); err == nil {
		t.Fatal("expected error for non-success status")
	}
}

func TestHTTPVerifier_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	verifier := NewHTTPVerifier(srv.URL, 0)
	if _, err := verifier.Verify(context.Background(), "tok"); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestNewRequestContext_DefaultsProviders(t *testing.T) {
	rc := NewRequestContext(&VerifyResult{Valid: true, UserID: "u1"})
	if rc.UserProviders == nil {
		t.Fatal("UserProviders is nil, want empty slice")
	}
	if len(rc.UserProviders) != 0 {
		t.Errorf("UserProviders = %v, want empty", rc.UserProviders)
	}
}

func TestNewRequestContext_CarriesPreferences(t *testing.T) {
	rc := NewRequestContext(&VerifyResult{
		Valid:                     true,
		UserID:                    "u2",
		Providers:                 []string{"openai"},
		FallbackProviderModelPair: "openai/gpt-4o-mini",
		AnalysisTarget:            AnalysisTargetCost,
	})

	if rc.UserID != "u2" {
		t.Errorf("UserID = %q", rc.UserID)
	}
	if rc.FallbackProviderModelPair != "openai/gpt-4o-mini" {
		t.Errorf("FallbackProviderModelPair = %q", rc.FallbackProviderModelPair)
	}
	if rc.AnalysisTarget != AnalysisTargetCost {
		t.Errorf("AnalysisTarget = %q", rc.AnalysisTarget)
	}
}
