package auth

import (
	"fmt"
	"os/user"
	"strings"

	"github.com/charmbracelet/log"
)

// localAccount is what the PAM backend knows about a local user besides the password check.
type localAccount struct {
	FullName string
	Groups   []string
}

// lookupLocalAccount returns the account's display name and the names of all its groups.
// Returns user.UnknownUserError when the account does not exist.
func lookupLocalAccount(username string) (*localAccount, error) {
	usr, err := user.Lookup(username)
	if err != nil {
		return nil, err
	}

	groupIds, err := usr.GroupIds()
	if err != nil {
		return nil, fmt.Errorf("error getting user group IDs: %w", err)
	}

	groups := make([]string, 0, len(groupIds))
	for _, gid := range groupIds {
		grp, err := user.LookupGroupId(gid)
		if err != nil {
			log.Debugf("Group lookup: GID %s of user '%s' has no name: %v", gid, username, err)
			continue
		}
		groups = append(groups, grp.Name)
	}

	return &localAccount{
		FullName: gecosName(usr.Name),
		Groups:   groups,
	}, nil
}

// gecosName keeps the full-name part of a GECOS field ("Full Name,Room,Phone,...").
func gecosName(gecos string) string {
	name, _, _ := strings.Cut(gecos, ",")
	return name
}
