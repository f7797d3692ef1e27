//go:build pam

package auth

import (
	"context"
	"errors"
	"fmt"
	"os/user"

	"github.com/charmbracelet/log"
	"github.com/msteinert/pam"

	"github.com/lco77/netops-portal/internal/models"
)

// PAMDirectory authenticates local Linux accounts through PAM and maps their
// group names to roles.
type PAMDirectory struct {
	service string
	roles   RoleMap
}

// NewPAMDirectory creates a PAM-backed Directory for the given PAM service (e.g. "login").
func NewPAMDirectory(service string, roles RoleMap) (Directory, error) {
	if service == "" {
		service = "login"
	}
	return &PAMDirectory{service: service, roles: roles}, nil
}

func (d *PAMDirectory) Authenticate(_ context.Context, username, password string) *models.User {
	if username == "" || password == "" {
		return models.Unauthenticated(username)
	}

	// 1. Check if the user exists on the system
	account, err := lookupLocalAccount(username)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			log.Infof("Login attempt failed: User '%s' not found", username)
		} else {
			log.Errorf("Error looking up user '%s': %v", username, err)
		}
		return models.Unauthenticated(username)
	}

	// 2. Password validation using PAM
	log.Debugf("Attempting password validation for user '%s' via PAM", username)
	t, err := pam.StartFunc(d.service, username, func(s pam.Style, text string) (string, error) {
		switch s {
		case pam.PromptEchoOff:
			return password, nil
		case pam.ErrorMsg, pam.TextInfo:
			log.Debugf("PAM message for user '%s': %s", username, text)
			return "", nil
		}
		return "", fmt.Errorf("unhandled PAM style: %v", s)
	})
	if err != nil {
		log.Errorf("PAM transaction start failed for user '%s': %v", username, err)
		return models.Unauthenticated(username)
	}

	if err := t.Authenticate(0); err != nil {
		log.Infof("Login attempt failed for user '%s': PAM authentication failed: %v", username, err)
		return models.Unauthenticated(username)
	}

	if err := t.AcctMgmt(0); err != nil {
		log.Infof("Login attempt denied for user '%s': PAM account check failed: %v", username, err)
		return models.Unauthenticated(username)
	}

	// 3. Local groups play the part of directory memberships
	roles := d.roles.Roles(account.Groups)
	log.Infof("Authentication successful for user '%s' via PAM with roles %v", username, roles)

	return &models.User{
		Username:      username,
		Password:      password,
		FullName:      account.FullName,
		Authenticated: true,
		Roles:         roles,
	}
}
