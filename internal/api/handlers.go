package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BTreeMap/FlowMentor/internal/models"
	"github.com/BTreeMap/FlowMentor/internal/store"
)

// HealthResult is the result body of the health check.
type HealthResult struct {
	Providers []string `json:"providers"`
	Concepts  int      `json:"concepts"`
}

// chatRequestBody is the wire form of models.ChatRequest with history left undecoded.
type chatRequestBody struct {
	Message string          `json:"message"`
	History json.RawMessage `json:"history"`
}

// decodeHistory decodes a history array. Anything that is not an array yields no history.
func decodeHistory(raw json.RawMessage) []models.HistoryEntry {
	if len(raw) == 0 {
		return nil
	}
	var history []models.HistoryEntry
	if err := json.Unmarshal(raw, &history); err != nil {
		slog.Debug("Server.decodeHistory: history is not an array, ignoring", "error", err)
		return nil
	}
	return history
}

// chatHandler answers one chat turn and returns the payload unwrapped.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chatHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req chatRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	payload, err := s.flow.HandleChat(r.Context(), req.Message, decodeHistory(req.History))
	if err != nil {
		if errors.Is(err, models.ErrMessageRequired) {
			slog.Warn("Server.chatHandler: validation failed", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.chatHandler: pipeline failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to answer message"))
		return
	}

	slog.Info("Server.chatHandler: answered", "source", payload.Source, "zone", payload.Analysis.Zone, "strategy", payload.Strategy, "providerErrors", len(payload.LLMErrors))
	writeJSONResponse(w, http.StatusOK, payload)
}

// exchangesHandler lists recent exchanges, newest first.
func (s *Server) exchangesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := store.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			slog.Warn("Server.exchangesHandler: invalid limit", "limit", raw)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit"))
			return
		}
		limit = min(n, store.MaxListLimit)
	}

	if s.exchanges == nil {
		writeJSONResponse(w, http.StatusOK, models.Success([]store.Exchange{}))
		return
	}
	exchanges, err := s.exchanges.ListExchanges(r.Context(), limit)
	if err != nil {
		slog.Error("Server.exchangesHandler: failed to list exchanges", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list exchanges"))
		return
	}
	if exchanges == nil {
		exchanges = []store.Exchange{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(exchanges))
}

// healthHandler reports the configured providers and the knowledge base size.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(HealthResult{
		Providers: s.flow.Providers(),
		Concepts:  s.flow.Knowledge().Len(),
	}))
}
