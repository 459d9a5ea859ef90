package session

import (
	"strings"

	"github.com/vocsite/chuo/core"
)

// Roles
const (
	RoleAdmin = "admin"
	RoleNone  = ""
)

// State of the store. Transitions are driven exclusively by gateway session
// pushes: Uninitialized -> Loading -> {Authenticated | Anonymous}, with
// Loading re-entered on every push while its role lookup is in flight.
type State int

const (
	Uninitialized State = iota
	Loading
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return "uninitialized"
}

// ResolvedIdentity is a gateway session enriched with a locally-determined
// privilege role. It is recomputed on every session change, never cached
// across them.
type ResolvedIdentity struct {
	core.Session
	Role string `json:"role"`
}

func (ri *ResolvedIdentity) IsAdmin() bool {
	return ri != nil && ri.Role == RoleAdmin
}

// Snapshot is one point-in-time read of the store.
type Snapshot struct {
	State    State
	Identity *ResolvedIdentity
}

func (s Snapshot) Loading() bool {
	return s.State == Uninitialized || s.State == Loading
}

// StaleSessionPolicy decides whether a resolved identity observed while
// serving a route outside the protected surface should be discarded. This
// portal has a single privileged surface; a session lingering on public
// pages is treated as stale state to be cleared, not as a valid
// "logged in but browsing" state. Kept as a named policy so the product
// call can be revisited without touching the store's state machine.
func StaleSessionPolicy(snap Snapshot, routePath, adminPathPrefix string) bool {
	if snap.Identity == nil {
		return false
	}
	return !strings.HasPrefix(routePath, adminPathPrefix)
}
