package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"account-service/internal/users"
	"account-service/pkg/jwt"
)

// Handler exposes login and password endpoints.
type Handler struct {
	svc    *users.Service
	tokens *jwt.Manager
}

// NewHandler wires a handler to the user service.
func NewHandler(svc *users.Service, tokens *jwt.Manager) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

// Routes returns a chi.Router for the /auth mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.tokens.RequireAuth)
		r.Post("/change-password", h.ChangePassword)
	})

	return r
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(r, &req, func() {
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
	}); err != nil {
		writeJSON(w, http.StatusBadRequest, users.NewErrorBody("Invalid request body"))
		return
	}

	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var verr *users.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, users.ErrorBody{Error: verr.Messages})
		case errors.Is(err, users.ErrInvalidCredentials):
			writeJSON(w, http.StatusBadRequest, users.NewErrorBody("Invalid credentials"))
		default:
			log.Printf("[auth] login failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, users.NewErrorBody("There was an issue logging in"))
		}
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := jwt.ClaimsFrom(r.Context())

	var req ChangePasswordRequest
	if err := decode(r, &req, func() {
		req.OldPassword = r.PostFormValue("old_password")
		req.NewPassword = r.PostFormValue("new_password")
	}); err != nil {
		writeJSON(w, http.StatusBadRequest, users.NewErrorBody("Invalid request body"))
		return
	}

	u, err := h.svc.ChangePassword(r.Context(), claims.User.ID, req.OldPassword, req.NewPassword)
	if err != nil {
		var verr *users.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, users.ErrorBody{Error: verr.Messages})
		case errors.Is(err, users.ErrInvalidCredentials):
			writeJSON(w, http.StatusBadRequest, users.NewErrorBody("Invalid credentials"))
		default:
			log.Printf("[auth] change password for %s: %v", claims.User.ID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "There was an issue changing the password"})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Password for %s updated", u.Name)})
}

// decode reads a JSON body into dst, or calls fromForm for form encodings.
func decode(r *http.Request, dst any, fromForm func()) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		fromForm()
		return nil
	default:
		return json.NewDecoder(r.Body).Decode(dst)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
