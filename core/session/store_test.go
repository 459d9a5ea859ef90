package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/session"
	dummygw "github.com/vocsite/chuo/gateway/dummy"
	testutil "github.com/vocsite/chuo/tests"
)

func setup(t *testing.T) (*session.Store, *dummygw.DB) {
	t.Helper()
	db, err := dummygw.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	store := session.NewStore(db, db, testutil.NewLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err = store.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	return store, db
}

func waitForState(t *testing.T, store *session.Store, want session.State) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	testutil.Eventually(t, time.Second, func() bool {
		snap = store.State()
		return snap.State == want
	})
	return snap
}

func TestStoreResolvesAdmin(t *testing.T) {
	store, db := setup(t)

	id, err := db.RegisterAccount("kepala@chuo.sc.id", "Kepala Sekolah", "s3cret!")
	assert.NoError(t, err)
	db.GrantRole(id, session.RoleAdmin)

	// replayed nil session resolves to anonymous first
	waitForState(t, store, session.Anonymous)

	assert.NoError(t, store.Login(context.Background(), "kepala@chuo.sc.id", "s3cret!"))

	snap := waitForState(t, store, session.Authenticated)
	assert.True(t, snap.Identity.IsAdmin())
	assert.Equal(t, id, snap.Identity.IdentityID)
}

func TestStoreRoleFailsSafe(t *testing.T) {
	tests := []struct {
		name string
		prep func(db *dummygw.DB, identityID string)
	}{
		{name: "identity absent from directory", prep: func(*dummygw.DB, string) {}},
		{name: "directory lookup error", prep: func(db *dummygw.DB, _ string) {
			db.RoleLookupErr = errors.New("gateway unreachable")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, db := setup(t)

			id, err := db.RegisterAccount("guru@chuo.sc.id", "Guru", "s3cret!")
			assert.NoError(t, err)
			tt.prep(db, id)

			waitForState(t, store, session.Anonymous)
			assert.NoError(t, store.Login(context.Background(), "guru@chuo.sc.id", "s3cret!"))

			// never "admin" by default, never the last known role
			snap := waitForState(t, store, session.Authenticated)
			assert.False(t, snap.Identity.IsAdmin())
			assert.Equal(t, session.RoleNone, snap.Identity.Role)
		})
	}
}

// recordingLogger captures the extras passed to Error so tests can inspect
// how reports are attributed.
type recordingLogger struct {
	mu     sync.Mutex
	extras [][]interface{}
}

func (l *recordingLogger) Debug(msg string, extras ...interface{}) {}
func (l *recordingLogger) Info(msg string, extras ...interface{})  {}
func (l *recordingLogger) Error(msg string, extras ...interface{}) {
	l.mu.Lock()
	l.extras = append(l.extras, extras)
	l.mu.Unlock()
}
func (l *recordingLogger) Fatal(msg string, extras ...interface{}) {
	l.Error(msg, extras...)
}

func (l *recordingLogger) sessions() []core.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []core.Session
	for _, extras := range l.extras {
		for _, x := range extras {
			if sess, ok := x.(core.Session); ok {
				out = append(out, sess)
			}
		}
	}
	return out
}

func TestStoreRoleFailureAttributed(t *testing.T) {
	db, err := dummygw.Open()
	assert.NoError(t, err)
	rec := &recordingLogger{}

	store := session.NewStore(db, db, rec)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	assert.NoError(t, store.Start(ctx))

	id, err := db.RegisterAccount("guru@chuo.sc.id", "Guru", "s3cret!")
	assert.NoError(t, err)
	db.RoleLookupErr = errors.New("gateway unreachable")

	waitForState(t, store, session.Anonymous)
	assert.NoError(t, store.Login(context.Background(), "guru@chuo.sc.id", "s3cret!"))
	waitForState(t, store, session.Authenticated)

	// the report carries the session whose lookup failed
	attributed := rec.sessions()
	if assert.Len(t, attributed, 1) {
		assert.Equal(t, id, attributed[0].IdentityID)
	}
}

func TestStoreLoginFailureIsUniform(t *testing.T) {
	store, db := setup(t)

	_, err := db.RegisterAccount("admin@chuo.sc.id", "Admin", "right-secret")
	assert.NoError(t, err)

	// unknown identity and wrong secret must be indistinguishable
	errUnknown := store.Login(context.Background(), "nobody@chuo.sc.id", "whatever")
	errWrongPwd := store.Login(context.Background(), "admin@chuo.sc.id", "wrong-secret")

	assert.Equal(t, core.ErrAuthenticationFailed, errUnknown)
	assert.Equal(t, core.ErrAuthenticationFailed, errWrongPwd)
}

func TestStoreDiscardsStaleLookup(t *testing.T) {
	store, db := setup(t)

	adminID, err := db.RegisterAccount("admin@chuo.sc.id", "Admin", "s3cret!")
	assert.NoError(t, err)
	db.GrantRole(adminID, session.RoleAdmin)

	waitForState(t, store, session.Anonymous)

	// block the first login's role lookup until after a sign-out has been
	// pushed; its result must not overwrite the newer resolution
	release := make(chan struct{})
	first := true
	db.RoleLookupHook = func(string) {
		if first {
			first = false
			<-release
		}
	}

	assert.NoError(t, store.Login(context.Background(), "admin@chuo.sc.id", "s3cret!"))
	assert.NoError(t, store.Logout(context.Background()))

	waitForState(t, store, session.Anonymous)
	close(release)

	// give the stale lookup a chance to (incorrectly) apply itself
	time.Sleep(50 * time.Millisecond)
	snap := store.State()
	assert.Equal(t, session.Anonymous, snap.State)
	assert.Nil(t, snap.Identity)
}

func TestStoreLogoutClears(t *testing.T) {
	store, db := setup(t)

	id, err := db.RegisterAccount("admin@chuo.sc.id", "Admin", "s3cret!")
	assert.NoError(t, err)
	db.GrantRole(id, session.RoleAdmin)

	waitForState(t, store, session.Anonymous)
	assert.NoError(t, store.Login(context.Background(), "admin@chuo.sc.id", "s3cret!"))
	waitForState(t, store, session.Authenticated)

	assert.NoError(t, store.Logout(context.Background()))
	snap := waitForState(t, store, session.Anonymous)
	assert.Nil(t, snap.Identity)
}

func TestStaleSessionPolicy(t *testing.T) {
	identity := &session.ResolvedIdentity{Role: session.RoleAdmin}
	tests := []struct {
		name  string
		snap  session.Snapshot
		route string
		want  bool
	}{
		{name: "no identity on public route", snap: session.Snapshot{State: session.Anonymous}, route: "/", want: false},
		{name: "identity on admin route", snap: session.Snapshot{State: session.Authenticated, Identity: identity}, route: "/admin/news", want: false},
		{name: "identity on public route", snap: session.Snapshot{State: session.Authenticated, Identity: identity}, route: "/news", want: true},
		{name: "identity on landing route", snap: session.Snapshot{State: session.Authenticated, Identity: identity}, route: "/", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, session.StaleSessionPolicy(tt.snap, tt.route, "/admin"))
		})
	}
}

func TestStoreEnforceStalePolicy(t *testing.T) {
	store, db := setup(t)

	id, err := db.RegisterAccount("admin@chuo.sc.id", "Admin", "s3cret!")
	assert.NoError(t, err)
	db.GrantRole(id, session.RoleAdmin)

	waitForState(t, store, session.Anonymous)
	assert.NoError(t, store.Login(context.Background(), "admin@chuo.sc.id", "s3cret!"))
	waitForState(t, store, session.Authenticated)

	// serving a public route with a live identity clears the session
	store.EnforceStalePolicy(context.Background(), "/news", "/admin")
	snap := waitForState(t, store, session.Anonymous)
	assert.Nil(t, snap.Identity)
}
