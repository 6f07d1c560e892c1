package bureau_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/lendflow/pkg/adapters/bureau"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	low := ports.VerificationResult{CreditScore: 550, KYCStatus: "verified", DocumentStatus: "complete"}
	s := bureau.NewStatic(bureau.WithReport("9876543210", low))

	got, err := s.Verify(ctx, "9876543210", ports.IdentifierMobile)
	require.NoError(t, err)
	assert.Equal(t, 550, got.CreditScore)

	got, err = s.Verify(ctx, "someone@example.com", ports.IdentifierEmail)
	require.NoError(t, err)
	assert.Equal(t, bureau.DefaultReport, got)

	s.Set("Someone@Example.com ", low)
	got, err = s.Verify(ctx, "someone@example.com", ports.IdentifierEmail)
	require.NoError(t, err)
	assert.Equal(t, 550, got.CreditScore)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Verify(canceled, "x", ports.IdentifierCustomer)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Verify(t *testing.T) {
	var gotQuery map[string]string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != bureau.VerifyPath {
			http.NotFound(w, r)
			return
		}
		gotKey = r.Header.Get("X-API-Key")
		gotQuery = map[string]string{
			"identifier":      r.URL.Query().Get("identifier"),
			"identifier_type": r.URL.Query().Get("identifier_type"),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(bureau.DefaultReport)
	}))
	defer srv.Close()

	c := bureau.NewClient(srv.URL+"/", bureau.WithAPIKey("secret"), bureau.WithTimeout(time.Second))
	require.True(t, c.IsEnabled())

	got, err := c.Verify(context.Background(), "asha@example.com", ports.IdentifierEmail)
	require.NoError(t, err)
	assert.Equal(t, bureau.DefaultReport, got)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "asha@example.com", gotQuery["identifier"])
	assert.Equal(t, "email", gotQuery["identifier_type"])
}

func TestClient_Errors(t *testing.T) {
	t.Run("Not configured", func(t *testing.T) {
		_, err := bureau.NewClient("").Verify(context.Background(), "x", ports.IdentifierCustomer)
		assert.ErrorIs(t, err, bureau.ErrNotConfigured)
	})

	t.Run("Server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bureau down", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := bureau.NewClient(srv.URL).Verify(context.Background(), "x", ports.IdentifierCustomer)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})
}
