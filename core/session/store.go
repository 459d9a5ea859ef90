package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/vocsite/chuo/core"
)

// Store is the single source of truth for "who is logged in and with what
// privilege". It owns at most one live session per process; its state only
// ever mutates in response to gateway session pushes, so Login/Logout have
// exactly one mutation path: the push they provoke.
type Store struct {
	auth   core.AuthGateway
	dir    core.AdminDirectory
	logger core.Logger

	mu       sync.Mutex
	state    State
	identity *ResolvedIdentity
	gen      uint64
	changed  chan struct{}

	done chan struct{}
}

func NewStore(auth core.AuthGateway, dir core.AdminDirectory, logger core.Logger) *Store {
	return &Store{
		auth:    auth,
		dir:     dir,
		logger:  logger,
		state:   Uninitialized,
		changed: make(chan struct{}),
	}
}

// Start subscribes to the gateway's session feed and runs the resolution
// pipeline for every pushed session (including the immediate replay of the
// current one) until ctx is done.
func (s *Store) Start(ctx context.Context) error {
	sessions, err := s.auth.SessionChanges(ctx)
	if err != nil {
		return errors.Wrap(err, "subscribing to session changes")
	}
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for sess := range sessions {
			s.consume(ctx, sess)
		}
	}()
	return nil
}

// Done is closed once the session feed has been drained after ctx
// cancellation.
func (s *Store) Done() <-chan struct{} { return s.done }

// consume enters Loading and kicks off role resolution for one pushed
// session. The lookup runs in its own goroutine carrying the event's
// generation: a result arriving after a newer push has bumped the
// generation is discarded, never applied.
func (s *Store) consume(ctx context.Context, sess *core.Session) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = Loading
	s.broadcast()
	s.mu.Unlock()

	if sess == nil {
		s.resolve(gen, nil)
		return
	}

	go func() {
		role, err := s.dir.LookupRole(ctx, sess.IdentityID)
		if err != nil {
			// fail safe: connectivity hiccups resolve to no privilege,
			// never to the last known role
			role = RoleNone
			if errors.Cause(err) != core.ErrNoPrivilege {
				// the session extra attributes the report to the identity
				// whose lookup failed
				s.logger.Error(fmt.Sprintf("resolving role for %s: %v", sess.IdentityID, err), err, *sess)
			}
		}
		s.resolve(gen, &ResolvedIdentity{Session: *sess, Role: role})
	}()
}

func (s *Store) resolve(gen uint64, identity *ResolvedIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// superseded by a newer session push while the lookup was in flight
		return
	}
	s.identity = identity
	if identity == nil {
		s.state = Anonymous
	} else {
		s.state = Authenticated
	}
	s.broadcast()
}

func (s *Store) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// State returns a point-in-time snapshot; the store may transition the
// moment it returns, so gate decisions must re-read per request.
func (s *Store) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Identity: s.identity}
}

// Changed returns a channel closed on the store's next transition.
func (s *Store) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Login forwards credentials to the gateway. It does not touch store state;
// a successful exchange surfaces through the session feed.
func (s *Store) Login(ctx context.Context, identity, secret string) error {
	if _, err := s.auth.Exchange(ctx, identity, secret); err != nil {
		if errors.Cause(err) == core.ErrAuthenticationFailed {
			return core.ErrAuthenticationFailed
		}
		return errors.Wrap(err, "exchanging credentials")
	}
	return nil
}

// Logout forwards sign-out to the gateway; the nil-session push clears the
// store.
func (s *Store) Logout(ctx context.Context) error {
	return errors.Wrap(s.auth.SignOut(ctx), "signing out")
}

// EnforceStalePolicy applies StaleSessionPolicy for the route being served:
// an identity lingering outside the protected surface triggers a logout.
func (s *Store) EnforceStalePolicy(ctx context.Context, routePath, adminPathPrefix string) {
	if !StaleSessionPolicy(s.State(), routePath, adminPathPrefix) {
		return
	}
	if err := s.Logout(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("clearing stale session on %s: %v", routePath, err), err)
	}
}
