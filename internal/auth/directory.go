// Package auth authenticates portal users against a directory and protects the
// credentials that later jobs reuse.
//
// Three Directory backends exist: LDAP (production), PAM (local accounts, built
// with the "pam" tag) and a mock backed by a JSON file for development.
package auth

import (
	"context"

	"github.com/lco77/netops-portal/internal/models"
)

// Directory authenticates a username/password pair.
//
// Implementations never return an error: every failure (unknown account, wrong
// password, unreachable server) yields an unauthenticated user carrying only the
// supplied username.
type Directory interface {
	Authenticate(ctx context.Context, username, password string) *models.User
}
