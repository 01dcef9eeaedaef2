package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseLimit parses and validates a limit parameter with default and max values
func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			return parsed
		}
	}
	return defaultLimit
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	State         string    `json:"state"`
	Online        bool      `json:"online"`
	PlayersOnline int       `json:"players_online"`
	PlayersMax    int       `json:"players_max"`
	LatencyMs     int       `json:"latency_ms"`
	MOTD          string    `json:"motd,omitempty"`
	StartTime     time.Time `json:"start_time,omitzero"`
	UptimeSeconds int64     `json:"uptime_seconds"`
}

// handleStatus returns the lifecycle snapshot enriched with a live ping
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	snap := r.machine.Snapshot()
	status := r.prober.Query()
	writeJSON(w, http.StatusOK, StatusResponse{
		State:         snap.State.String(),
		Online:        status.Online,
		PlayersOnline: status.PlayersOnline,
		PlayersMax:    status.PlayersMax,
		LatencyMs:     status.LatencyMs,
		MOTD:          status.MOTD,
		StartTime:     snap.StartTime,
		UptimeSeconds: int64(r.machine.Uptime(r.clk.Now()).Seconds()),
	})
}

// handleHistory returns the most recent relayed events, newest first
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) {
	if r.hist == nil {
		writeError(w, http.StatusNotFound, "history not enabled")
		return
	}
	limit := parseLimit(req, 100, 500)
	entries, err := r.hist.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleHealth is the liveness endpoint
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  r.machine.Snapshot().State.String(),
	})
}
