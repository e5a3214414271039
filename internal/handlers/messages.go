package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AnshRaj112/whisper-backend/internal/models"
	"github.com/AnshRaj112/whisper-backend/internal/services"
	"github.com/AnshRaj112/whisper-backend/pkg/clientip"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// sendMessageRequest keeps both fields untyped so that a wrong-typed field is
// reported as a field error rather than a JSON error.
type sendMessageRequest struct {
	Username interface{} `json:"username"`
	Content  interface{} `json:"content"`
}

type messagesResponse struct {
	Success  bool                 `json:"success"`
	Messages []models.MessageView `json:"messages"`
}

type acceptMessagesRequest struct {
	AcceptMessages *bool `json:"acceptMessages"`
}

type acceptMessagesResponse struct {
	Success             bool   `json:"success"`
	Message             string `json:"message,omitempty"`
	IsAcceptingMessages bool   `json:"isAcceptingMessages"`
}

// SendMessage accepts an anonymous message for a handle. No session needed.
func (a *API) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	username, ok := req.Username.(string)
	if !ok || strings.TrimSpace(username) == "" {
		writeError(w, http.StatusBadRequest, "Missing or invalid username")
		return
	}
	content, ok := req.Content.(string)
	if !ok || strings.TrimSpace(content) == "" {
		a.Metrics.MessagesRejected.WithLabelValues("empty").Inc()
		writeError(w, http.StatusBadRequest, "Message content cannot be empty")
		return
	}

	_, err := a.Messages.Send(r.Context(), username, content, clientip.RealClientIP(r))
	switch {
	case err == nil:
		a.Metrics.MessagesSent.Inc()
		writeJSON(w, http.StatusCreated, APIResponse{Success: true, Message: "Message sent successfully"})
	case errors.Is(err, services.ErrEmptyContent):
		a.Metrics.MessagesRejected.WithLabelValues("empty").Inc()
		writeError(w, http.StatusBadRequest, "Message content cannot be empty")
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrNotAccepting):
		a.Metrics.MessagesRejected.WithLabelValues("not_accepting").Inc()
		writeError(w, http.StatusForbidden, "User is not accepting messages")
	case errors.Is(err, services.ErrRejectedByModeration):
		a.Metrics.MessagesRejected.WithLabelValues("moderation").Inc()
		writeError(w, http.StatusUnprocessableEntity, "Message rejected by moderation")
	default:
		a.internalError(w, r, err, "Failed to send message")
	}
}

// GetMessages lists the caller's messages, newest first.
func (a *API) GetMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := a.sessionUser(w, r)
	if !ok {
		return
	}

	msgs, err := a.Messages.List(r.Context(), user.ID)
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		a.internalError(w, r, err, "Failed to list messages")
		return
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, m.View())
	}
	writeJSON(w, http.StatusOK, messagesResponse{Success: true, Messages: views})
}

// DeleteMessage removes one of the caller's messages by id.
func (a *API) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := a.sessionUser(w, r)
	if !ok {
		return
	}

	messageID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "messageId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message id")
		return
	}

	err = a.Messages.Remove(r.Context(), user.ID, messageID)
	switch {
	case err == nil:
		a.Metrics.MessagesDeleted.Inc()
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "Message deleted"})
	case errors.Is(err, services.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "Message not found or already deleted")
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	default:
		a.internalError(w, r, err, "Failed to delete message")
	}
}

// GetAcceptMessages reports the caller's acceptance flag.
func (a *API) GetAcceptMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := a.sessionUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, acceptMessagesResponse{
		Success:             true,
		IsAcceptingMessages: user.IsAcceptingMessages,
	})
}

// SetAcceptMessages sets the caller's acceptance flag.
func (a *API) SetAcceptMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := a.sessionUser(w, r)
	if !ok {
		return
	}

	var req acceptMessagesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.AcceptMessages == nil {
		writeError(w, http.StatusBadRequest, "acceptMessages must be a boolean")
		return
	}

	accept := *req.AcceptMessages
	err := a.Profiles.SetAcceptingMessages(r.Context(), user.ID, user.Username, accept)
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		a.internalError(w, r, err, "Failed to update message acceptance status")
		return
	}

	a.Log.WithFields(logrus.Fields{
		"user_id":   user.ID.Hex(),
		"accepting": accept,
	}).Info("Acceptance flag updated")
	writeJSON(w, http.StatusOK, acceptMessagesResponse{
		Success:             true,
		Message:             "Message acceptance status updated successfully",
		IsAcceptingMessages: accept,
	})
}
