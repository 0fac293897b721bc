// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package adminapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/clustercockpit-labs/dcrunner/pkg/dclog"
)

type ctxKey int

const requestIDKey ctxKey = iota

// requestIDMiddleware stamps every request with a correlation id,
// reused in log output and echoed back as X-Request-Id.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		rw.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}

// requestID returns the correlation id stamped by requestIDMiddleware,
// or "" if it never ran.
func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

// authMiddleware requires an HS256-signed bearer token matching
// cfg.JWTSecret on every request it guards. Unlike the teacher's
// EdDSA keypair login flow, the admin API has no user accounts to
// issue tokens for, so it accepts a single shared secret instead.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(s.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			dclog.Warnf("adminapi: rejected token for %s: %v", requestID(r), err)
			writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}

		next.ServeHTTP(rw, r)
	})
}

// rateLimitMiddleware applies a single shared token bucket across all
// guarded routes; the admin API is an operator surface, not a
// multi-tenant one, so a per-client limiter would be overkill.
func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(rw, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}
