package postgresgw

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/vocsite/chuo/core"
)

// Claims is the session token payload: the identity id travels as the
// standard subject claim.
type Claims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// AuthGateway implements the credential side of the gateway contract against
// the account table. The session feed carries this process's single live
// session: every exchange or sign-out replaces it wholesale and is pushed to
// all subscribers, current state replayed first on subscribe.
type AuthGateway struct {
	db   *sqlx.DB
	conf *core.Config

	mu      sync.Mutex
	session *core.Session
	subs    map[int]chan *core.Session
	subSeq  int
}

var _ core.AuthGateway = (*AuthGateway)(nil)

func NewAuthGateway(db *sqlx.DB, conf *core.Config) *AuthGateway {
	return &AuthGateway{
		db:   db,
		conf: conf,
		subs: make(map[int]chan *core.Session),
	}
}

type dbAccount struct {
	ID         string `db:"id"`
	Email      string `db:"email"`
	Name       string `db:"name"`
	SecretHash []byte `db:"secret_hash"`
}

func (gw *AuthGateway) Exchange(ctx context.Context, identity, secret string) (*core.Session, error) {
	var acc dbAccount
	err := gw.db.GetContext(ctx, &acc, `SELECT id, email, name, secret_hash FROM account WHERE email = $1`, core.CleanString(identity, true))
	if err != nil {
		if err == sql.ErrNoRows {
			// uniform failure: do not disclose whether the identity exists
			return nil, core.ErrAuthenticationFailed
		}
		return nil, errors.Wrap(err, "querying account")
	}
	if bcrypt.CompareHashAndPassword(acc.SecretHash, []byte(secret)) != nil {
		return nil, core.ErrAuthenticationFailed
	}

	token, err := gw.generateToken(acc)
	if err != nil {
		return nil, errors.Wrap(err, "generating session token")
	}

	sess := &core.Session{
		Token:      token,
		IdentityID: acc.ID,
		Email:      acc.Email,
		Name:       acc.Name,
	}
	gw.replace(sess)
	return sess, nil
}

func (gw *AuthGateway) SignOut(_ context.Context) error {
	gw.replace(nil)
	return nil
}

func (gw *AuthGateway) SessionChanges(ctx context.Context) (<-chan *core.Session, error) {
	gw.mu.Lock()
	gw.subSeq++
	key := gw.subSeq
	ch := make(chan *core.Session, 16)
	ch <- gw.session // replay current state first
	gw.subs[key] = ch
	gw.mu.Unlock()

	go func() {
		<-ctx.Done()
		gw.mu.Lock()
		delete(gw.subs, key)
		close(ch)
		gw.mu.Unlock()
	}()
	return ch, nil
}

// replace swaps the live session and delivers it to every subscriber. Sends
// happen under gw.mu, the same lock the unsubscribe path closes channels
// under, so a send can never hit a closed channel; subscribers drain their
// buffered channels without touching gw.mu.
func (gw *AuthGateway) replace(sess *core.Session) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.session = sess
	for _, sub := range gw.subs {
		sub <- sess
	}
}

func (gw *AuthGateway) generateToken(acc dbAccount) (string, error) {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    gw.conf.AppName,
			Subject:   acc.ID,
			ExpiresAt: now.Add(gw.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: acc.Email,
		Name:  acc.Name,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(gw.conf.SecretKey))
}

// AdminDirectory resolves privilege roles from the admin_account table.
type AdminDirectory struct {
	db *sqlx.DB
}

var _ core.AdminDirectory = (*AdminDirectory)(nil)

func NewAdminDirectory(db *sqlx.DB) *AdminDirectory {
	return &AdminDirectory{db: db}
}

func (dir *AdminDirectory) LookupRole(ctx context.Context, identityID string) (string, error) {
	var role string
	err := dir.db.GetContext(ctx, &role, `SELECT role FROM admin_account WHERE identity_id = $1`, identityID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", core.ErrNoPrivilege
		}
		return "", errors.Wrap(err, "querying admin account")
	}
	return role, nil
}
