package users

import (
	"errors"
	"time"

	"account-service/pkg/validation"
)

var (
	// ErrNotFound indicates a user record does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyExists indicates the email is taken.
	ErrAlreadyExists = errors.New("email already exists")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User represents an account.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	PasswordHash   string    `json:"-"`
	ProfilePicture string    `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
}

// Profile is the public view of a user. It never carries the password hash.
type Profile struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	ProfilePicture string `json:"profile_picture"`
	ID             string `json:"id"`
}

// Profile returns the public view of u.
func (u *User) Profile() Profile {
	return Profile{
		Name:           u.Name,
		Email:          u.Email,
		Phone:          u.Phone,
		ProfilePicture: u.ProfilePicture,
		ID:             u.ID,
	}
}

// RegisterRequest is the body for POST /user.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// UpdateRequest is the body for POST /user/update. Empty fields keep the
// current value.
type UpdateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// RegisterResult is the store-authored reply to a registration. Handlers
// write Body with Status unmodified.
type RegisterResult struct {
	Status int
	Body   any
}

// ErrorBody is the `{error:[{message}]}` shape used for 4xx replies.
type ErrorBody struct {
	Error []validation.Message `json:"error"`
}

// NewErrorBody wraps a single message.
func NewErrorBody(msg string) ErrorBody {
	return ErrorBody{Error: []validation.Message{{Message: msg}}}
}
