package events

// UserRegisteredEvent is published to user.registered.
type UserRegisteredEvent struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	RegisteredAt string `json:"registered_at"`
}

// UserUpdatedEvent is published to user.updated.
type UserUpdatedEvent struct {
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	ProfilePicture string `json:"profile_picture"`
	UpdatedAt      string `json:"updated_at"`
}

// PasswordChangedEvent is published to user.password_changed.
type PasswordChangedEvent struct {
	UserID    string `json:"user_id"`
	ChangedAt string `json:"changed_at"`
}
