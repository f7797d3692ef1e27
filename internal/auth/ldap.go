package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	goldap "github.com/go-ldap/ldap/v3"

	"github.com/lco77/netops-portal/internal/models"
)

const defaultLDAPTimeout = 10 * time.Second

// searchAttributes are read from the user's entry after the service-account search.
var searchAttributes = []string{"distinguishedName", "memberOf", "displayName", "mail"}

// LDAPConfig holds the directory connection parameters.
type LDAPConfig struct {
	Host               string // hostname only; the scheme is always ldaps
	Port               int    // default 636
	BaseDN             string
	BindDN             string // service account
	BindPassword       string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// ldapConn is the subset of *goldap.Conn the login flow needs.
type ldapConn interface {
	Bind(username, password string) error
	Search(req *goldap.SearchRequest) (*goldap.SearchResult, error)
	close()
}

type dialFunc func(ctx context.Context, cfg LDAPConfig) (ldapConn, error)

// LDAPDirectory authenticates users with a service-account search followed by a
// bind as the user.
type LDAPDirectory struct {
	cfg   LDAPConfig
	roles RoleMap
	dial  dialFunc
}

// NewLDAPDirectory creates a directory client. roles is captured for the life of the process.
func NewLDAPDirectory(cfg LDAPConfig, roles RoleMap) *LDAPDirectory {
	if cfg.Port == 0 {
		cfg.Port = 636
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultLDAPTimeout
	}
	return &LDAPDirectory{cfg: cfg, roles: roles, dial: dialLDAPS}
}

// Authenticate runs the two-bind login flow. See Directory for the error policy.
func (d *LDAPDirectory) Authenticate(ctx context.Context, username, password string) *models.User {
	// An empty password turns the second bind into an anonymous bind, which succeeds.
	if username == "" || password == "" {
		return models.Unauthenticated(username)
	}
	if ctx.Err() != nil {
		return models.Unauthenticated(username)
	}

	conn, err := d.dial(ctx, d.cfg)
	if err != nil {
		log.Errorf("Directory login for '%s': failed to connect to %s: %v", username, d.cfg.Host, err)
		return models.Unauthenticated(username)
	}
	defer conn.close()

	// A cancelled request aborts any bind or search in flight.
	stop := context.AfterFunc(ctx, conn.close)
	defer stop()

	// 1. Service account bind
	if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
		log.Errorf("Directory login for '%s': service account bind failed: %v", username, err)
		return models.Unauthenticated(username)
	}

	// 2. Look up the user's entry
	req := goldap.NewSearchRequest(
		d.cfg.BaseDN,
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		1, 0, false,
		fmt.Sprintf("(sAMAccountName=%s)", goldap.EscapeFilter(username)),
		searchAttributes,
		nil,
	)
	result, err := conn.Search(req)
	if err != nil || len(result.Entries) == 0 {
		if err != nil {
			log.Warnf("Directory login for '%s': search failed: %v", username, err)
		} else {
			log.Infof("Directory login for '%s': account not found", username)
		}
		return models.Unauthenticated(username)
	}
	entry := result.Entries[0]

	// 3. Verify the password by binding as the user
	if err := conn.Bind(entry.DN, password); err != nil {
		log.Infof("Directory login for '%s': user bind rejected", username)
		return models.Unauthenticated(username)
	}

	// 4. Role mapping
	memberOf := entry.GetAttributeValues("memberOf")
	roles := d.roles.Roles(memberOf)

	log.Infof("Directory login for '%s' succeeded with roles %v", username, roles)
	return &models.User{
		Username:      username,
		Password:      password,
		DN:            entry.DN,
		FullName:      entry.GetAttributeValue("displayName"),
		Email:         entry.GetAttributeValue("mail"),
		Authenticated: true,
		Roles:         roles,
	}
}

type goldapConn struct {
	*goldap.Conn
}

func (c goldapConn) close() {
	c.Conn.Close()
}

func dialLDAPS(ctx context.Context, cfg LDAPConfig) (ldapConn, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: cfg.Timeout},
		Config: &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for lab directories with self-signed certs
			MinVersion:         tls.VersionTLS12,
		},
	}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ldap dial ldaps://%s: %w", addr, err)
	}
	conn := goldap.NewConn(raw, true)
	conn.Start()
	conn.SetTimeout(cfg.Timeout)
	return goldapConn{conn}, nil
}
