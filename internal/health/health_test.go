package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckProvider(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"ok", http.StatusOK, `[{"id":"m"}]`, false},
		{"unauthorized", http.StatusUnauthorized, ``, true},
		{"empty menu", http.StatusOK, `[]`, true},
		{"html", http.StatusOK, `<html>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			err := CheckProvider(context.Background(), srv.URL)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.Error(t, CheckProvider(context.Background(), ""))
}

func TestCheckEndpoints(t *testing.T) {
	serve := func(missing string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == missing {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
	}

	ok := serve("")
	defer ok.Close()
	assert.NoError(t, CheckEndpoints(context.Background(), ok.URL+"/"))

	broken := serve("/metrics")
	defer broken.Close()
	assert.ErrorContains(t, CheckEndpoints(context.Background(), broken.URL), "/metrics")
}
