// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package adminapi

import "net/http"

// docJSON is a hand-written OpenAPI 2.0 document describing the
// routes below; swaggo annotations on the handlers in handlers.go are
// documentation only here, since this module has no swag-init build
// step wired into it.
const docJSON = `{
  "swagger": "2.0",
  "info": {"title": "dcrunner admin API", "version": "1.0"},
  "paths": {
    "/healthz": {"get": {"summary": "Liveness probe", "responses": {"200": {"description": "ok"}}}},
    "/tasks": {"get": {"summary": "List task graph elements", "responses": {"200": {"description": "ok"}}}},
    "/plugins": {"get": {"summary": "List registered elements", "responses": {"200": {"description": "ok"}}}},
    "/ledger/{groupID}": {"get": {"summary": "Task group event history", "parameters": [{"name": "groupID", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}, "404": {"description": "ledger disabled"}}}},
    "/shutdown": {"post": {"summary": "Request engine shutdown", "responses": {"202": {"description": "accepted"}}}},
    "/metrics": {"get": {"summary": "Prometheus scrape endpoint", "responses": {"200": {"description": "ok"}}}}
  }
}`

func serveDocJSON(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	rw.Write([]byte(docJSON))
}
