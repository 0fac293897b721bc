// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package adminapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustercockpit-labs/dcrunner/internal/metadata"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
	"github.com/clustercockpit-labs/dcrunner/internal/shutdown"
	"github.com/clustercockpit-labs/dcrunner/internal/taskgroup"
	"github.com/clustercockpit-labs/dcrunner/pkg/schema"
)

func testServer(t *testing.T, secret string) *Server {
	t.Helper()
	reg := plugin.NewRegistry(metadata.NewRegistry(), plugin.DuplicateWarnKeepLast)
	plan := &taskgroup.Plan{Chains: map[string]*taskgroup.Chain{}}
	coord := shutdown.New(time.Second, time.Second)
	cfg := schema.AdminAPIConfig{Addr: "127.0.0.1:0", JWTSecret: secret}
	return New(cfg, plan, reg, nil, coord)
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	s := testServer(t, "secret")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTasksRejectsMissingToken(t *testing.T) {
	s := testServer(t, "secret")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTasksAcceptsValidToken(t *testing.T) {
	s := testServer(t, "secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestShutdownClosesCoordinator(t *testing.T) {
	s := testServer(t, "")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/shutdown", nil)
	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, s.coord.Closing())
}
