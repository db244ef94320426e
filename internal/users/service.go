package users

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"account-service/internal/events"
	"account-service/pkg/jwt"
	"account-service/pkg/kafka"
	"account-service/pkg/storage"
	"account-service/pkg/validation"
)

// ErrUpload marks a picture that was acceptable but could not be stored.
var ErrUpload = errors.New("upload failed")

// ValidationError carries field messages for a rejected request.
type ValidationError struct {
	Messages []validation.Message
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Messages))
	for i, m := range e.Messages {
		parts[i] = m.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// PictureIntake validates and stores uploaded profile pictures.
type PictureIntake interface {
	Accept(ctx context.Context, fh *multipart.FileHeader) (string, error)
	Remove(ctx context.Context, name string) error
}

// ProfileCache caches profile fields by user id.
type ProfileCache interface {
	CacheProfile(ctx context.Context, userID string, fields map[string]string) error
	GetCachedProfile(ctx context.Context, userID string) (map[string]string, error)
	InvalidateProfile(ctx context.Context, userID string) error
}

// EventPublisher publishes user lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// TokenIssuer signs tokens for authenticated users.
type TokenIssuer interface {
	Issue(id jwt.Identity) (string, error)
}

// Deps are the collaborators of a Service. Cache and Events may be nil.
type Deps struct {
	Store    Store
	Hasher   Hasher
	Tokens   TokenIssuer
	Pictures PictureIntake
	Cache    ProfileCache
	Events   EventPublisher
}

// Service contains user business logic.
type Service struct {
	store    Store
	hasher   Hasher
	tokens   TokenIssuer
	pictures PictureIntake
	cache    ProfileCache
	events   EventPublisher
}

// NewService creates a user service.
func NewService(d Deps) *Service {
	return &Service{
		store:    d.Store,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		pictures: d.Pictures,
		cache:    d.Cache,
		events:   d.Events,
	}
}

func registerChecks(req RegisterRequest) []validation.Check {
	return []validation.Check{
		validation.Field(req.Name, validation.Required("Name is required")),
		validation.Field(req.Email, validation.Email("Enter a valid email id")...),
		validation.Field(req.Phone, validation.Phone("Enter a valid 10 digit phone number")...),
		validation.Field(req.Password, append(
			validation.MinLength(6, "Password must have 6 or more characters"),
			validation.MaxBytes(MaxPasswordBytes, passwordTooLong))...),
	}
}

const passwordTooLong = "Password must be at most 72 bytes long"

// Register validates the request, stores the optional picture, hashes the
// password and hands the new record to the store. The store's result is
// returned as-is.
func (s *Service) Register(ctx context.Context, req RegisterRequest, picture *multipart.FileHeader) (RegisterResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if msgs := validation.Run(registerChecks(req)...); msgs != nil {
		return RegisterResult{}, &ValidationError{Messages: msgs}
	}

	var pictureName string
	if picture != nil {
		name, err := s.accept(ctx, picture)
		if err != nil {
			return RegisterResult{}, err
		}
		pictureName = name
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.discard(pictureName)
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		PasswordHash:   hash,
		ProfilePicture: pictureName,
	}
	result, err := s.store.RegisterUser(ctx, u)
	if err != nil {
		s.discard(pictureName)
		return RegisterResult{}, err
	}
	if result.Status >= http.StatusBadRequest {
		s.discard(pictureName)
		return result, nil
	}

	s.publish(kafka.TopicUserRegistered, u.ID, events.UserRegisteredEvent{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		RegisteredAt: time.Now().Format(time.RFC3339),
	})
	return result, nil
}

// Login checks credentials and returns a signed token. Unknown emails and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	msgs := validation.Run(
		validation.Field(email, validation.Email("Valid email required")...),
		validation.Field(password, validation.Required("Password required")),
	)
	if msgs != nil {
		return "", &ValidationError{Messages: msgs}
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	token, err := s.tokens.Issue(jwt.Identity{ID: u.ID, Name: u.Name, Email: u.Email})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ChangePassword replaces the password of userID after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (*User, error) {
	msgs := validation.Run(
		validation.Field(oldPassword, validation.Required("Old password required")),
		validation.Field(newPassword,
			validation.Required("New password required"),
			validation.MaxBytes(MaxPasswordBytes, passwordTooLong)),
	)
	if msgs != nil {
		return nil, &ValidationError{Messages: msgs}
	}

	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.hasher.Compare(u.PasswordHash, oldPassword); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, u.ID, hash); err != nil {
		return nil, err
	}
	u.PasswordHash = hash

	s.publish(kafka.TopicUserPasswordChanged, u.ID, events.PasswordChangedEvent{
		UserID:    u.ID,
		ChangedAt: time.Now().Format(time.RFC3339),
	})
	return u, nil
}

// Profile returns the public view of userID, served from cache when possible.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	if s.cache != nil {
		fields, err := s.cache.GetCachedProfile(ctx, userID)
		if err != nil {
			log.Printf("[users] profile cache read for %s: %v", userID, err)
		} else if fields["id"] == userID {
			return profileFromFields(fields), nil
		}
	}

	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	p := u.Profile()
	if s.cache != nil {
		s.fillCache(ctx, p)
	}
	return p, nil
}

// fillCache stores p, then drops it again if the row changed meanwhile.
// Update invalidates after its write, so no stale entry survives both.
func (s *Service) fillCache(ctx context.Context, p Profile) {
	if err := s.cache.CacheProfile(ctx, p.ID, profileFields(p)); err != nil {
		log.Printf("[users] profile cache write for %s: %v", p.ID, err)
		return
	}
	u, err := s.store.GetUserByID(ctx, p.ID)
	if err == nil && u.Profile() == p {
		return
	}
	if err := s.cache.InvalidateProfile(ctx, p.ID); err != nil {
		log.Printf("[users] profile cache invalidate for %s: %v", p.ID, err)
	}
}

// List returns every user's public profile.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	all, err := s.store.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(all))
	for i := range all {
		out = append(out, all[i].Profile())
	}
	return out, nil
}

// Update merges the provided fields and optional picture over userID's
// record. Empty fields keep their current value; the password hash is
// never touched.
func (s *Service) Update(ctx context.Context, userID string, req UpdateRequest, picture *multipart.FileHeader) (*User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	var checks []validation.Check
	if req.Email != "" {
		checks = append(checks, validation.Field(req.Email, validation.Email("Enter a valid email id")...))
	}
	if req.Phone != "" {
		checks = append(checks, validation.Field(req.Phone, validation.Phone("Enter a valid 10 digit phone number")...))
	}
	if msgs := validation.Run(checks...); msgs != nil {
		return nil, &ValidationError{Messages: msgs}
	}

	current, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var pictureName string
	if picture != nil {
		if pictureName, err = s.accept(ctx, picture); err != nil {
			return nil, err
		}
	}

	updated := &User{
		ID:             current.ID,
		Name:           fallback(req.Name, current.Name),
		Email:          fallback(req.Email, current.Email),
		Phone:          fallback(req.Phone, current.Phone),
		ProfilePicture: fallback(pictureName, current.ProfilePicture),
	}
	if err := s.store.UpdateProfile(ctx, updated); err != nil {
		s.discard(pictureName)
		return nil, err
	}
	if pictureName != "" && current.ProfilePicture != "" {
		s.discard(current.ProfilePicture)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateProfile(ctx, userID); err != nil {
			log.Printf("[users] profile cache invalidate for %s: %v", userID, err)
		}
	}
	s.publish(kafka.TopicUserUpdated, updated.ID, events.UserUpdatedEvent{
		UserID:         updated.ID,
		Name:           updated.Name,
		Email:          updated.Email,
		Phone:          updated.Phone,
		ProfilePicture: updated.ProfilePicture,
		UpdatedAt:      time.Now().Format(time.RFC3339),
	})
	return updated, nil
}

// ---- helpers ----

func (s *Service) accept(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	name, err := s.pictures.Accept(ctx, fh)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return name, nil
}

// discard removes a picture stored during a request that did not complete.
func (s *Service) discard(name string) {
	if name == "" {
		return
	}
	if err := s.pictures.Remove(context.Background(), name); err != nil {
		log.Printf("[users] failed to remove picture %s: %v", name, err)
	}
}

func (s *Service) publish(topic, key string, ev any) {
	if s.events == nil {
		return
	}
	go func() {
		if err := s.events.Publish(context.Background(), topic, key, ev); err != nil {
			log.Printf("[users] failed to publish %s: %v", topic, err)
		} else {
			log.Printf("[users] published %s for user %s", topic, key)
		}
	}()
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func profileFields(p Profile) map[string]string {
	return map[string]string{
		"id":              p.ID,
		"name":            p.Name,
		"email":           p.Email,
		"phone":           p.Phone,
		"profile_picture": p.ProfilePicture,
	}
}

func profileFromFields(f map[string]string) Profile {
	return Profile{
		ID:             f["id"],
		Name:           f["name"],
		Email:          f["email"],
		Phone:          f["phone"],
		ProfilePicture: f["profile_picture"],
	}
}
