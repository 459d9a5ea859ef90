package core

import (
	"context"
	"io"
)

// Session is the external proof of an authenticated identity, opaque beyond
// its identity id and raw profile fields. It is replaced wholesale on every
// gateway push, never mutated in place; a nil *Session means unauthenticated.
type Session struct {
	Token      string `json:"-"`
	IdentityID string `json:"identity_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}

type (
	// AuthGateway is the credential side of the hosted backend.
	AuthGateway interface {
		// Exchange trades credentials for a session. Any failure to
		// authenticate returns ErrAuthenticationFailed; it never discloses
		// whether the identity exists.
		Exchange(ctx context.Context, identity, secret string) (*Session, error)
		SignOut(ctx context.Context) error
		// SessionChanges delivers the current session immediately, then every
		// subsequent replacement (sign-in, refresh, sign-out as nil), in
		// emission order, until ctx is done.
		SessionChanges(ctx context.Context) (<-chan *Session, error)
	}

	// AdminDirectory resolves an identity id against the privileged-accounts
	// collection. A missing row is ErrNoPrivilege; any other error is a
	// transient gateway failure.
	AdminDirectory interface {
		LookupRole(ctx context.Context, identityID string) (string, error)
	}

	// ObjectStorage is the binary side of the gateway (bucket uploads and
	// public URLs). Remove is best-effort at every call site.
	ObjectStorage interface {
		Upload(ctx context.Context, path string, r io.Reader, contentType string) error
		PublicURL(path string) string
		Remove(ctx context.Context, path string) error
	}
)

// Upload carries an inbound binary attachment through a create/update.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}
