// errors.go defines the error taxonomy shared by the authentication and
// authorization layers. Handlers map these sentinels onto HTTP status codes;
// everything else is logged and surfaced as a generic internal error.
package auth

import "errors"

var (
	// ErrAuthentication covers every credential/token failure: bad password,
	// unknown email, missing, expired, malformed, or already-consumed token.
	// It is deliberately cause-free so that responses never reveal whether an
	// account or token exists.
	ErrAuthentication = errors.New("authentication failed")

	// ErrAuthorization means the identity is valid but lacks a required
	// permission. The checked verb may be echoed; internal state may not.
	ErrAuthorization = errors.New("insufficient permissions")

	// ErrNotFound means a referenced principal, resource, or role id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict covers duplicate grants, duplicate names, and refresh-token
	// reuse detected mid-rotation.
	ErrConflict = errors.New("conflict")
)
