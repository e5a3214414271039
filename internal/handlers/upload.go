package handlers

import (
	"errors"
	"net/http"

	"github.com/AnshRaj112/whisper-backend/internal/services"
	"github.com/go-chi/chi/v5"
)

// MaxAvatarBytes caps avatar uploads at 5MB.
const MaxAvatarBytes = 5 << 20

type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

type profileResponse struct {
	Success bool `json:"success"`
	*services.PublicProfile
}

// Profile returns the public part of a user's profile.
func (a *API) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := a.Profiles.Profile(r.Context(), chi.URLParam(r, "username"))
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		a.internalError(w, r, err, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Success: true, PublicProfile: p})
}

// UploadAvatar stores the multipart "file" field as the caller's avatar.
func (a *API) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := a.sessionUser(w, r)
	if !ok {
		return
	}

	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarBytes+(1<<20))
	if err := r.ParseMultipartForm(MaxAvatarBytes); err != nil {
		writeError(w, http.StatusBadRequest, "File too large or malformed form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()
	if header.Size > MaxAvatarBytes {
		writeError(w, http.StatusBadRequest, "File must be 5MB or smaller")
		return
	}

	url, err := a.Profiles.UploadAvatar(r.Context(), user.ID, user.Username, file)
	switch {
	case errors.Is(err, services.ErrUploadsDisabled):
		writeError(w, http.StatusServiceUnavailable, "Avatar uploads are not configured")
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case err != nil:
		a.internalError(w, r, err, "Failed to upload avatar")
	default:
		writeJSON(w, http.StatusOK, UploadResponse{
			Success: true,
			Message: "Avatar updated successfully",
			URL:     url,
		})
	}
}
