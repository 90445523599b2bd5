package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/internal/localstore"
	"github.com/smsdesk-org/smsdesk/internal/model"
	"github.com/smsdesk-org/smsdesk/internal/op"
	"github.com/smsdesk-org/smsdesk/pkg/clock"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

type Claims struct {
	Email string `json:"email"`
	PwdTS int64  `json:"pwd_ts"`
	jwt.RegisteredClaims
}

type LocalOptions struct {
	Store driver.Store
	// Tokens keeps the signed ID token. Tabs sharing it share sign-in state.
	Tokens         localstore.Storage
	Clock          clock.Clock
	Secret         []byte
	TokenExpiresIn time.Duration
	MinPassword    int
}

// LocalProvider keeps accounts in the shared store and hands out signed
// ID tokens.
type LocalProvider struct {
	opts LocalOptions

	notify    sync.Mutex
	mu        sync.Mutex
	current   *model.Identity
	nextID    uint64
	listeners map[uint64]func(*model.Identity)
	unwatch   func()
}

func NewLocalProvider(opts LocalOptions) *LocalProvider {
	if opts.TokenExpiresIn <= 0 {
		opts.TokenExpiresIn = 48 * time.Hour
	}
	if opts.MinPassword <= 0 {
		opts.MinPassword = 6
	}
	p := &LocalProvider{opts: opts, listeners: map[uint64]func(*model.Identity){}}
	p.unwatch = opts.Tokens.Watch(p.onTokenEvent)
	return p
}

// Restore signs in from a token left in storage by an earlier run.
func (p *LocalProvider) Restore(ctx context.Context) *model.Identity {
	raw, ok := p.opts.Tokens.Get(conf.AuthTokenKey)
	if !ok {
		return nil
	}
	id, err := p.verify(ctx, raw)
	if err != nil {
		log.Debugf("discarding stored token: %v", err)
		_ = p.opts.Tokens.Remove(conf.AuthTokenKey)
		return nil
	}
	p.setCurrent(id)
	return id
}

func (p *LocalProvider) Close() {
	p.unwatch()
}

// emailKey turns an address into a store key.
func emailKey(email string) string {
	return strings.NewReplacer(".", ",", "#", "_", "$", "_", "[", "_", "]", "_", "/", "_").
		Replace(strings.ToLower(strings.TrimSpace(email)))
}

func accountPath(uid string) string {
	return utils.JoinPath(conf.AccountsRoot, uid)
}

// Lookup returns the user id registered for email.
func (p *LocalProvider) Lookup(ctx context.Context, email string) (string, error) {
	uid, ok, err := op.Get[string](ctx, p.opts.Store, utils.JoinPath(conf.EmailsRoot, emailKey(email)))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.WithStack(errs.ObjectNotFound)
	}
	return uid, nil
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*model.Identity, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, errors.WithStack(errs.InvalidEmail)
	}
	if len(password) < p.opts.MinPassword {
		return nil, errors.WithStack(errs.PasswordTooShort)
	}
	if _, err := p.Lookup(ctx, email); err == nil {
		return nil, errors.WithStack(errs.EmailTaken)
	} else if !errors.Is(err, errs.ObjectNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	now := clock.UnixMilli(p.opts.Clock)
	acc := model.Account{
		UserID:       utils.NewUserID(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		PwdTS:        now,
	}
	if err := p.opts.Store.Set(ctx, accountPath(acc.UserID), acc); err != nil {
		return nil, err
	}
	if err := p.opts.Store.Set(ctx, utils.JoinPath(conf.EmailsRoot, emailKey(email)), acc.UserID); err != nil {
		return nil, err
	}
	return p.signInAccount(&acc)
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*model.Identity, error) {
	uid, err := p.Lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	acc, ok, err := op.Get[model.Account](ctx, p.opts.Store, accountPath(uid))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.WithStack(errs.ObjectNotFound)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, errors.WithStack(err)
	}
	return p.signInAccount(&acc)
}

func (p *LocalProvider) signInAccount(acc *model.Account) (*model.Identity, error) {
	token, err := p.issue(acc)
	if err != nil {
		return nil, err
	}
	if err := p.opts.Tokens.Set(conf.AuthTokenKey, token); err != nil {
		return nil, err
	}
	id := &model.Identity{UserID: acc.UserID, Email: acc.Email}
	p.setCurrent(id)
	return id, nil
}

func (p *LocalProvider) issue(acc *model.Account) (string, error) {
	now := p.opts.Clock.Now()
	claims := Claims{
		Email: acc.Email,
		PwdTS: acc.PwdTS,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.opts.TokenExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(p.opts.Secret)
	return s, errors.WithStack(err)
}

// verify checks the signature, expiry against the injected clock, and
// that the password has not changed since the token was issued.
func (p *LocalProvider) verify(ctx context.Context, raw string) (*model.Identity, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return p.opts.Secret, nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if claims.ExpiresAt == nil || !p.opts.Clock.Now().Before(claims.ExpiresAt.Time) {
		return nil, errors.New("token expired")
	}
	acc, ok, err := op.Get[model.Account](ctx, p.opts.Store, accountPath(claims.Subject))
	if err != nil {
		return nil, err
	}
	if !ok || acc.PwdTS != claims.PwdTS {
		return nil, errors.WithStack(errs.SessionRevoked)
	}
	return &model.Identity{UserID: acc.UserID, Email: acc.Email}, nil
}

func (p *LocalProvider) SignOut(ctx context.Context) error {
	err := p.opts.Tokens.Remove(conf.AuthTokenKey)
	p.setCurrent(nil)
	return err
}

func (p *LocalProvider) CurrentUser() *model.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *LocalProvider) OnAuthStateChange(fn func(*model.Identity)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *LocalProvider) UpdatePassword(ctx context.Context, password string) error {
	cur := p.CurrentUser()
	if cur.IsZero() {
		return errors.WithStack(errs.NotSignedIn)
	}
	if len(password) < p.opts.MinPassword {
		return errors.WithStack(errs.PasswordTooShort)
	}
	acc, ok, err := op.Get[model.Account](ctx, p.opts.Store, accountPath(cur.UserID))
	if err != nil {
		return err
	}
	if !ok {
		return errors.WithStack(errs.ObjectNotFound)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.WithStack(err)
	}
	acc.PasswordHash = string(hash)
	acc.PwdTS = clock.UnixMilli(p.opts.Clock)
	return p.opts.Store.Update(ctx, accountPath(cur.UserID), map[string]any{
		"passwordHash": acc.PasswordHash,
		"pwdTs":        acc.PwdTS,
	})
}

func (p *LocalProvider) setCurrent(id *model.Identity) {
	p.notify.Lock()
	defer p.notify.Unlock()
	p.mu.Lock()
	p.current = id
	fns := make([]func(*model.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

// onTokenEvent follows sign in and sign out done by other tabs sharing
// the token storage.
func (p *LocalProvider) onTokenEvent(ev localstore.Event) {
	if ev.Key != conf.AuthTokenKey {
		return
	}
	if ev.Removed {
		p.setCurrent(nil)
		return
	}
	id, err := p.verify(context.Background(), ev.Value)
	if err != nil {
		log.Debugf("ignoring token from another tab: %v", err)
		return
	}
	p.setCurrent(id)
}

var _ Provider = (*LocalProvider)(nil)
