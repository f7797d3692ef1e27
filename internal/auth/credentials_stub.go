//go:build !pam

package auth

import "errors"

// NewPAMDirectory is unavailable without the "pam" build tag (it needs cgo and libpam headers).
func NewPAMDirectory(_ string, _ RoleMap) (Directory, error) {
	return nil, errors.New("PAM support not compiled in: rebuild with -tags pam")
}
