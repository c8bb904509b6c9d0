package api

import (
	"encoding/json"
	"net/http"

	"afps-server/internal/signaling"
)

// Handler methods for routerHandlers. Mirrors the teacher's handlers.go shape
// (thin decode/dispatch/encode functions hung off a shared deps struct) but
// dispatches into the signaling registry instead of the game engine.

func (h *routerHandlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	token := h.store.CreateSession()
	writeJSON(w, map[string]any{"token": token})
}

func (h *routerHandlers) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionToken == "" {
		writeError(w, "sessionToken is required", http.StatusBadRequest)
		return
	}

	offer, err := h.store.CreateConnection(req.SessionToken)
	if err != nil {
		writeSignalingError(w, err)
		return
	}

	writeJSON(w, map[string]any{
		"connectionId": offer.ConnectionID,
		"offer": map[string]string{
			"type": string(offer.Offer.Type.String()),
			"sdp":  offer.Offer.SDP,
		},
	})
}

func (h *routerHandlers) handleApplyAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionToken string `json:"sessionToken"`
		ConnectionID string `json:"connectionId"`
		SDP          string `json:"sdp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionToken == "" || req.ConnectionID == "" || req.SDP == "" {
		writeError(w, "sessionToken, connectionId and sdp are required", http.StatusBadRequest)
		return
	}

	if err := h.store.ApplyAnswer(req.SessionToken, req.ConnectionID, req.SDP); err != nil {
		writeSignalingError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionToken string `json:"sessionToken"`
		ConnectionID string `json:"connectionId"`
		Candidate    string `json:"candidate"`
		Mid          string `json:"mid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionToken == "" || req.ConnectionID == "" {
		writeError(w, "sessionToken and connectionId are required", http.StatusBadRequest)
		return
	}

	if err := h.store.AddRemoteCandidate(req.SessionToken, req.ConnectionID, req.Candidate, req.Mid); err != nil {
		writeSignalingError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleDrainCandidates(w http.ResponseWriter, r *http.Request) {
	sessionToken := r.URL.Query().Get("sessionToken")
	connectionID := r.URL.Query().Get("connectionId")
	if sessionToken == "" || connectionID == "" {
		writeError(w, "sessionToken and connectionId query params are required", http.StatusBadRequest)
		return
	}

	candidates, err := h.store.DrainLocalCandidates(sessionToken, connectionID)
	if err != nil {
		writeSignalingError(w, err)
		return
	}

	out := make([]map[string]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, map[string]string{"candidate": c.Candidate, "mid": c.Mid})
	}
	writeJSON(w, map[string]any{"candidates": out})
}

// writeSignalingError maps the signaling.Error taxonomy onto the closed set
// of HTTP statuses spec.md §6 names for these endpoints (400/401/413/429).
// None of this registry's own errors are auth or size related, so every one
// of them surfaces as 400 — a malformed or stale caller-supplied reference.
func writeSignalingError(w http.ResponseWriter, err error) {
	switch err {
	case signaling.ErrSessionNotFound, signaling.ErrSessionExpired:
		RecordConnectionRejected("session_expired")
	}
	writeError(w, err.Error(), http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
