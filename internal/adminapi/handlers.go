// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/clustercockpit-labs/dcrunner/pkg/dclog"
)

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		dclog.Errorf("adminapi: encoding response: %v", err)
	}
}

type taskInfo struct {
	ID      string `json:"id"`
	Element string `json:"element"`
	Root    string `json:"root_task_id"`
	Fused   bool   `json:"fused"`
}

// handleTasks lists every task in the loaded plan, one entry per
// element, grouped by the root task group it was fused into.
//
// @Summary List task graph elements
// @Produce json
// @Success 200 {array} taskInfo
// @Router /tasks [get]
func (s *Server) handleTasks(rw http.ResponseWriter, r *http.Request) {
	var out []taskInfo
	for rootID, chain := range s.plan.Chains {
		for i, e := range chain.Elements {
			out = append(out, taskInfo{
				ID:      e.TaskID,
				Element: e.Descriptor.Name,
				Root:    rootID,
				Fused:   i > 0,
			})
		}
	}
	writeJSON(rw, http.StatusOK, out)
}

type pluginInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	RecvPorts   int    `json:"recv_ports"`
	SendPorts   int    `json:"send_ports"`
}

// handlePlugins lists every element currently registered, whether
// loaded from a shared library or registered in-process.
//
// @Summary List registered elements
// @Produce json
// @Success 200 {array} pluginInfo
// @Router /plugins [get]
func (s *Server) handlePlugins(rw http.ResponseWriter, r *http.Request) {
	names := s.reg.Names()
	out := make([]pluginInfo, 0, len(names))
	for _, name := range names {
		d, ok := s.reg.Lookup(name)
		if !ok {
			continue
		}
		out = append(out, pluginInfo{
			Name:        d.Name,
			Description: d.Description,
			RecvPorts:   d.RecvPorts,
			SendPorts:   d.SendPorts,
		})
	}
	writeJSON(rw, http.StatusOK, out)
}

// handleLedgerHistory returns the recorded lifecycle events for one
// task group, oldest first. Returns 404 if the ledger is disabled.
//
// @Summary Task group event history
// @Produce json
// @Param groupID path string true "task group id"
// @Success 200 {array} ledger.Event
// @Failure 404 {object} map[string]string
// @Router /ledger/{groupID} [get]
func (s *Server) handleLedgerHistory(rw http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(rw, http.StatusNotFound, map[string]string{"error": "ledger not enabled"})
		return
	}
	groupID := mux.Vars(r)["groupID"]
	events, err := s.store.History(groupID)
	if err != nil {
		dclog.Errorf("adminapi: ledger history for %s: %v", groupID, err)
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, events)
}

// handleShutdown requests a graceful shutdown of the whole engine.
//
// @Summary Request engine shutdown
// @Produce json
// @Success 202 {object} map[string]string
// @Router /shutdown [post]
func (s *Server) handleShutdown(rw http.ResponseWriter, r *http.Request) {
	dclog.Infof("adminapi: shutdown requested via API (request %s)", requestID(r))
	s.coord.Close()
	writeJSON(rw, http.StatusAccepted, map[string]string{"status": "shutting down"})
}
