package entitlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaCountsDown(t *testing.T) {
	q := NewQuota(2)

	remaining, err := q.Consume(context.Background(), "codegen")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	remaining, err = q.Consume(context.Background(), "codegen")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	_, err = q.Consume(context.Background(), "codegen")
	assert.Error(t, err)
	assert.Equal(t, 0, q.Remaining())
}

func TestQuotaUnlimited(t *testing.T) {
	q := NewQuota(-1)
	for i := 0; i < 100; i++ {
		remaining, err := q.Consume(context.Background(), "codegen")
		require.NoError(t, err)
		assert.Equal(t, -1, remaining)
	}
	assert.Equal(t, -1, q.Remaining())
}

func TestQuotaConcurrentConsume(t *testing.T) {
	q := NewQuota(50)
	var wg sync.WaitGroup
	errs := make([]error, 80)
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = q.Consume(context.Background(), "codegen")
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	assert.Equal(t, 30, failed)
	assert.Equal(t, 0, q.Remaining())
}

func TestLicenseClientConsume(t *testing.T) {
	remaining := 5
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ai-request", r.URL.Path)
		var req consumeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "key-123", req.LicenseKey)
		assert.Equal(t, "codegen", req.Operation)

		remaining--
		json.NewEncoder(w).Encode(consumeResponse{Success: true, Remaining: remaining})
	}))
	defer server.Close()

	c := NewLicenseClient(server.URL, "key-123", "machine-1")
	got, err := c.Consume(context.Background(), "codegen")
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestLicenseClientDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(consumeResponse{Success: false, Error: "license expired"})
	}))
	defer server.Close()

	c := NewLicenseClient(server.URL, "key-123", "machine-1")
	_, err := c.Consume(context.Background(), "codegen")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "license expired")
}

func TestLicenseClientUnreachable(t *testing.T) {
	c := NewLicenseClient("http://127.0.0.1:1", "key", "machine")
	_, err := c.Consume(context.Background(), "codegen")
	assert.Error(t, err)
}
