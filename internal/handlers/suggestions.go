package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/AnshRaj112/whisper-backend/internal/services"
)

type suggestRequest struct {
	Prompt string `json:"prompt"`
}

type suggestResponse struct {
	Success     bool   `json:"success"`
	Suggestions string `json:"suggestions"`
}

// SuggestMessages relays a generated list of message ideas. The body is
// optional; a missing or unreadable body uses the default prompt.
func (a *API) SuggestMessages(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if !errors.Is(err, io.EOF) {
			a.Log.WithError(err).Debug("Unreadable suggestion body, using default prompt")
		}
		req = suggestRequest{}
	}

	text, err := a.Suggester.Suggest(r.Context(), req.Prompt)
	switch {
	case errors.Is(err, services.ErrSuggestionsDisabled):
		a.Log.Error("Suggestion requested but GOOGLE_API_KEY is not set")
		writeError(w, http.StatusInternalServerError, "Missing GOOGLE_API_KEY. Add it to your environment and restart the server.")
	case errors.Is(err, services.ErrNoSupportedModel):
		a.Log.Error("No supported Gemini model available")
		writeError(w, http.StatusInternalServerError, "No supported Gemini models found for this API key")
	case err != nil:
		a.Log.WithError(err).Error("Failed to generate suggestions")
		writeError(w, http.StatusInternalServerError, "Failed to generate suggestions")
	default:
		writeJSON(w, http.StatusOK, suggestResponse{Success: true, Suggestions: text})
	}
}
