package integrations

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/nugallery/pkg/errors"
)

func TestNewClient(t *testing.T) {
	client := NewClient(nil, map[string]string{"User-Agent": "test"})
	require.NotNil(t, client.http)
	assert.Equal(t, DefaultTimeout, client.http.Timeout)
	assert.Equal(t, "test", client.headers["User-Agent"])

	custom := &http.Client{Timeout: time.Second}
	assert.Same(t, custom, NewClient(custom, nil).http)
}

func TestClientGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "default", r.Header.Get("X-Default"))
		assert.Equal(t, "override", r.Header.Get("X-Override"))
		w.Write([]byte(`{"name":"value"}`))
	}))
	defer server.Close()

	client := NewClient(nil, map[string]string{"X-Default": "default", "X-Override": "default"})
	var got struct {
		Name string `json:"name"`
	}
	err := client.GetWithHeaders(context.Background(), server.URL, map[string]string{"X-Override": "override"}, &got)
	require.NoError(t, err)
	assert.Equal(t, "value", got.Name)
}

func TestClientGetDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	var v map[string]any
	err := NewClient(nil, nil).Get(context.Background(), server.URL, &v)
	assert.True(t, errors.Is(err, errors.ErrCodeParse))
}

func TestClientGetBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x50, 0x4b, 0x03, 0x04})
	}))
	defer server.Close()

	data, err := NewClient(nil, nil).GetBytes(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x50, 0x4b, 0x03, 0x04}, data)
}

func TestClientStatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     errors.Code
		sentinel error
	}{
		{"not found", http.StatusNotFound, errors.ErrCodeNotFound, ErrNotFound},
		{"server error", http.StatusBadGateway, errors.ErrCodeNetwork, ErrNetwork},
		{"forbidden", http.StatusForbidden, errors.ErrCodeNetwork, ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewClient(nil, nil).GetBytes(context.Background(), server.URL)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "code = %s", errors.GetCode(err))
			assert.True(t, stderrors.Is(err, tt.sentinel))
		})
	}
}

func TestClientCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(nil, nil).GetBytes(ctx, server.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUserAgent(t *testing.T) {
	assert.Contains(t, UserAgent(), "nugallery/")
}

func TestClientDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(nil, nil).GetBytes(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNetwork))
	assert.Equal(t, int32(1), calls.Load())
}
