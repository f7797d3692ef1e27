package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/lco77/netops-portal/internal/models"
)

// MockUser is one entry of the mock users file.
type MockUser struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	DN       string   `json:"dn"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Groups   []string `json:"groups"`
}

// MockDirectory is an in-memory Directory for development and tests.
type MockDirectory struct {
	users map[string]MockUser
	roles RoleMap
}

// NewMockDirectory loads users from a JSON file. With an empty path the built-in
// dev users are used:
//
//	admin / admin  → CN=NetAdmins, CN=NetOps
//	noc   / noc    → CN=NetOps
//	guest / guest  → no groups
func NewMockDirectory(usersFile string, roles RoleMap) (*MockDirectory, error) {
	if usersFile == "" {
		return NewMockDirectoryFromUsers(defaultMockUsers(), roles), nil
	}

	data, err := os.ReadFile(usersFile)
	if err != nil {
		return nil, fmt.Errorf("mock directory: read users file %q: %w", usersFile, err)
	}
	var users []MockUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("mock directory: parse users file: %w", err)
	}
	return NewMockDirectoryFromUsers(users, roles), nil
}

// NewMockDirectoryFromUsers builds a MockDirectory from explicit entries.
func NewMockDirectoryFromUsers(users []MockUser, roles RoleMap) *MockDirectory {
	md := &MockDirectory{users: make(map[string]MockUser, len(users)), roles: roles}
	for _, u := range users {
		md.users[u.Username] = u
	}
	return md
}

func (md *MockDirectory) Authenticate(_ context.Context, username, password string) *models.User {
	u, ok := md.users[username]
	if !ok || password == "" || subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		log.Infof("Mock directory login for '%s' rejected", username)
		return models.Unauthenticated(username)
	}
	return &models.User{
		Username:      u.Username,
		Password:      password,
		DN:            u.DN,
		FullName:      u.FullName,
		Email:         u.Email,
		Authenticated: true,
		Roles:         md.roles.Roles(u.Groups),
	}
}

func defaultMockUsers() []MockUser {
	return []MockUser{
		{
			Username: "admin", Password: "admin",
			DN:       "CN=Admin,OU=Users,DC=example,DC=net",
			FullName: "Portal Admin", Email: "admin@example.net",
			Groups: []string{
				"CN=NetAdmins,OU=Groups,DC=example,DC=net",
				"CN=NetOps,OU=Groups,DC=example,DC=net",
			},
		},
		{
			Username: "noc", Password: "noc",
			DN:       "CN=NOC Operator,OU=Users,DC=example,DC=net",
			FullName: "NOC Operator", Email: "noc@example.net",
			Groups: []string{"CN=NetOps,OU=Groups,DC=example,DC=net"},
		},
		{
			Username: "guest", Password: "guest",
			DN:       "CN=Guest,OU=Users,DC=example,DC=net",
			FullName: "Guest", Email: "guest@example.net",
		},
	}
}
