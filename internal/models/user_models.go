// internal/models/user_models.go
package models

// User is the result of a directory login attempt.
// Only Username is set when Authenticated is false.
type User struct {
	Username      string   `json:"username"`
	Password      string   `json:"-"`
	DN            string   `json:"dn,omitempty"`
	FullName      string   `json:"fullName,omitempty"`
	Email         string   `json:"email,omitempty"`
	Authenticated bool     `json:"authenticated"`
	Roles         []string `json:"roles"`
}

// Unauthenticated returns the user value reported for any failed login.
func Unauthenticated(username string) *User {
	return &User{Username: username}
}

// UserProfile is the public view of the logged-in user
type UserProfile struct {
	Username  string   `json:"username"`
	FullName  string   `json:"fullName,omitempty"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles"`
	Theme     string   `json:"theme"`
	ExpiresAt int64    `json:"expiresAt"` // unix seconds
}
