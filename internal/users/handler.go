package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"account-service/pkg/jwt"
	"account-service/pkg/storage"
)

const (
	maxMultipartMemory = 10 << 20
	pictureField       = "profile_picture"
)

// Handler exposes user HTTP endpoints.
type Handler struct {
	svc    *Service
	tokens *jwt.Manager
}

// NewHandler wires a handler to the user service. tokens guards the
// authenticated routes.
func NewHandler(svc *Service, tokens *jwt.Manager) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

// Routes returns a chi.Router with all user routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Public
	r.Post("/", h.Register)

	// Protected
	r.Group(func(r chi.Router) {
		r.Use(h.tokens.RequireAuth)
		r.Get("/", h.GetProfile)
		r.Get("/users", h.ListUsers)
		r.Post("/update", h.Update)
	})

	return r
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	picture, err := decodeForm(r, &req, func(form *multipart.Form) {
		req.Name = formValue(form, "name")
		req.Email = formValue(form, "email")
		req.Phone = formValue(form, "phone")
		req.Password = formValue(form, "password")
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, NewErrorBody("Invalid request body"))
		return
	}

	result, err := h.svc.Register(r.Context(), req, picture)
	if err != nil {
		if writeRequestError(w, err) {
			return
		}
		log.Printf("[users] register failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, NewErrorBody("There was an issue registering the user"))
		return
	}
	writeJSON(w, result.Status, result.Body)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := jwt.ClaimsFrom(r.Context())
	p, err := h.svc.Profile(r.Context(), claims.User.ID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("[users] profile %s: %v", claims.User.ID, err)
		}
		writeJSON(w, http.StatusBadRequest, NewErrorBody("There was an error fetching your profile"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		log.Printf("[users] list failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, NewErrorBody("There was an error fetching users"))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	claims := jwt.ClaimsFrom(r.Context())

	var req UpdateRequest
	picture, err := decodeForm(r, &req, func(form *multipart.Form) {
		req.Name = formValue(form, "name")
		req.Email = formValue(form, "email")
		req.Phone = formValue(form, "phone")
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, NewErrorBody("Invalid request body"))
		return
	}

	u, err := h.svc.Update(r.Context(), claims.User.ID, req, picture)
	if err != nil {
		if writeRequestError(w, err) {
			return
		}
		switch {
		case errors.Is(err, ErrAlreadyExists):
			writeJSON(w, http.StatusBadRequest, NewErrorBody("User already exists"))
		case errors.Is(err, ErrNotFound):
			writeJSON(w, http.StatusBadRequest, NewErrorBody("There was an error fetching your profile"))
		default:
			log.Printf("[users] update %s: %v", claims.User.ID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "There was an issue updating the user"})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("User %s updated", u.Name)})
}

// writeRequestError answers the errors shared by registration and update.
// It reports whether err was handled.
func writeRequestError(w http.ResponseWriter, err error) bool {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: verr.Messages})
	case errors.Is(err, storage.ErrUnsupportedType):
		writeJSON(w, http.StatusBadRequest, NewErrorBody("Only images allowed"))
	case errors.Is(err, ErrUpload):
		log.Printf("[users] %v", err)
		writeJSON(w, http.StatusInternalServerError, NewErrorBody("There was an error with uploading the file"))
	default:
		return false
	}
	return true
}

// decodeForm reads a multipart form through fromForm, or a JSON body into
// dst. The returned picture is nil when none was sent.
func decodeForm(r *http.Request, dst any, fromForm func(*multipart.Form)) (*multipart.FileHeader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, err
		}
		fromForm(r.MultipartForm)
		if files := r.MultipartForm.File[pictureField]; len(files) > 0 {
			return files[0], nil
		}
		return nil, nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		fromForm(&multipart.Form{Value: r.PostForm})
		return nil, nil
	default:
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
