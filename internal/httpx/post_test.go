package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	t.Parallel()

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"events_received":1}`))
	}))
	defer srv.Close()

	var out struct {
		EventsReceived int `json:"events_received"`
	}
	err := PostJSON(context.Background(), srv.Client(), srv.URL, map[string]string{"k": "v"}, &out)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"k": "v"}, got)
	require.Equal(t, 1, out.EventsReceived)
}

func TestPostJSONStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), srv.Client(), srv.URL+"/events?access_token=secret", struct{}{}, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusUnauthorized, statusErr.Code)
	require.Equal(t, "bad token", statusErr.Body)
	require.NotContains(t, err.Error(), "secret")
}
