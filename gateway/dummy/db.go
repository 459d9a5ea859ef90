package dummygw

import (
	"context"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/vocsite/chuo/core"
	"github.com/vocsite/chuo/core/livecache"
	"github.com/vocsite/chuo/core/news"
	"github.com/vocsite/chuo/core/teacher"
)

const feedBuffer = 64

type (
	account struct {
		id     string
		email  string
		name   string
		secret []byte
	}

	// DB is the in-memory stand-in for the hosted gateway: accounts, the
	// privileged-accounts collection, both managed collections, the current
	// session and the per-collection change feeds. Used by tests and DEV.
	DB struct {
		mu       sync.RWMutex
		accounts map[string]*account // keyed by email
		admins   map[string]string   // identity id -> role

		teachers map[string]*teacher.Teacher
		newsRows map[string]*news.NewsItem

		session     *core.Session
		sessionSubs map[int]chan *core.Session
		teacherSubs map[int]chan livecache.Event[teacher.Teacher]
		newsSubs    map[int]chan livecache.Event[news.NewsItem]
		subSeq      int

		// failure injection (tests only)
		RoleLookupErr   error
		RoleLookupHook  func(identityID string)
		TeacherQueryErr error
		TeacherWriteErr error
		NewsQueryErr    error
		NewsWriteErr    error
	}
)

func Open() (*DB, error) {
	return &DB{
		accounts:    make(map[string]*account),
		admins:      make(map[string]string),
		teachers:    make(map[string]*teacher.Teacher),
		newsRows:    make(map[string]*news.NewsItem),
		sessionSubs: make(map[int]chan *core.Session),
		teacherSubs: make(map[int]chan livecache.Event[teacher.Teacher]),
		newsSubs:    make(map[int]chan livecache.Event[news.NewsItem]),
	}, nil
}

// RegisterAccount seeds a credential; returns the assigned identity id.
func (db *DB) RegisterAccount(email, name, secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	acc := &account{id: uuid.New().String(), email: email, name: name, secret: hash}
	db.accounts[email] = acc
	return acc.id, nil
}

// GrantRole seeds a privileged-accounts row.
func (db *DB) GrantRole(identityID, role string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.admins[identityID] = role
}

// SeedTeacher plants a roster row directly, without emitting a change event;
// test setup for initial-load content.
func (db *DB) SeedTeacher(t teacher.Teacher) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.teachers[t.ID] = &t
}

// SeedNewsItem plants an article directly, without emitting a change event.
func (db *DB) SeedNewsItem(n news.NewsItem) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.newsRows[n.ID] = &n
}

// auth gateway

var _ core.AuthGateway = (*DB)(nil)

func (db *DB) Exchange(_ context.Context, identity, secret string) (*core.Session, error) {
	db.mu.Lock()
	acc, ok := db.accounts[identity]
	if !ok {
		db.mu.Unlock()
		// uniform failure: unknown identity and wrong secret are identical
		return nil, core.ErrAuthenticationFailed
	}
	if bcrypt.CompareHashAndPassword(acc.secret, []byte(secret)) != nil {
		db.mu.Unlock()
		return nil, core.ErrAuthenticationFailed
	}
	sess := &core.Session{
		Token:      uuid.New().String(),
		IdentityID: acc.id,
		Email:      acc.email,
		Name:       acc.name,
	}
	db.session = sess
	db.pushSession(sess)
	db.mu.Unlock()
	return sess, nil
}

func (db *DB) SignOut(_ context.Context) error {
	db.mu.Lock()
	db.session = nil
	db.pushSession(nil)
	db.mu.Unlock()
	return nil
}

func (db *DB) SessionChanges(ctx context.Context) (<-chan *core.Session, error) {
	db.mu.Lock()
	db.subSeq++
	key := db.subSeq
	ch := make(chan *core.Session, feedBuffer)
	ch <- db.session // replay current state first
	db.sessionSubs[key] = ch
	db.mu.Unlock()

	go func() {
		<-ctx.Done()
		db.mu.Lock()
		delete(db.sessionSubs, key)
		close(ch)
		db.mu.Unlock()
	}()
	return ch, nil
}

// pushSession delivers sess to every live subscriber. Callers hold db.mu,
// the same lock SessionChanges closes channels under, so a send can never
// hit a closed channel.
func (db *DB) pushSession(sess *core.Session) {
	for _, sub := range db.sessionSubs {
		sub <- sess
	}
}

// privileged-accounts directory

var _ core.AdminDirectory = (*DB)(nil)

func (db *DB) LookupRole(_ context.Context, identityID string) (string, error) {
	if db.RoleLookupHook != nil {
		db.RoleLookupHook(identityID)
	}
	if db.RoleLookupErr != nil {
		return "", db.RoleLookupErr
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	role, ok := db.admins[identityID]
	if !ok {
		return "", core.ErrNoPrivilege
	}
	return role, nil
}
