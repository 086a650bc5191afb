// Package session is the application's view of "who is signed in".
//
// Provider wraps the identity provider (internal/auth + the users table) and
// exposes the operations the rest of the app needs:
//
//	SignUp / SignIn / SignInWithOAuth → *Result{User, Token}
//	SignOut / Refresh                 → revoke (and reissue) a token
//	Resolve                           → token → *model.User
//	Subscribe                         → session-change events
//
// Every operation returns either a result or an error, never both. Nothing
// is retried.
//
// REVOCATION:
// Tokens are stateless JWTs, so sign-out writes the token ID into the cache
// with a TTL equal to the token's remaining lifetime. Resolve rejects any token
// whose ID is on that list; once the token would have expired anyway, the
// cache entry disappears by itself.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/wastenot/internal/apperror"
	"github.com/sakif/wastenot/internal/auth"
	"github.com/sakif/wastenot/internal/cache"
	"github.com/sakif/wastenot/internal/model"
	"github.com/sakif/wastenot/internal/repository"
)

// invalidCredentials is deliberately the same for unknown email and wrong
// password.
const invalidCredentials = "invalid email or password"

// OAuthProvider is the federated sign-in backend. *auth.GoogleProvider
// implements it; tests substitute a fake.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// Result is returned by every operation that issues a token.
type Result struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Provider implements the session operations. Safe for concurrent use.
type Provider struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	oauth     OAuthProvider // nil when Google sign-in is not configured
	revoked   cache.Cache
	validate  *validator.Validate
	logger    *slog.Logger

	mu      sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
}

// NewProvider wires a Provider. oauth may be nil.
func NewProvider(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	oauth OAuthProvider,
	revoked cache.Cache,
	logger *slog.Logger,
) *Provider {
	return &Provider{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		oauth:     oauth,
		revoked:   revoked,
		validate:  validator.New(),
		logger:    logger,
		subs:      make(map[int]func(Event)),
	}
}

// SignUp creates a password account and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password, fullName string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := p.validate.Var(email, "required,email"); err != nil {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if len(password) < auth.MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}

	hash, err := p.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
	}
	if err := p.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("session: creating account: %w", err)
	}

	p.logger.Info("account created", slog.String("userID", user.ID))
	return p.signIn(user)
}

// SignIn checks an email/password pair.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Result, error) {
	user, err := p.users.GetUserByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized(invalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("session: looking up account: %w", err)
	}

	if err := p.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("session: verifying password: %w", err)
	}

	return p.signIn(user)
}

// OAuthEnabled reports whether federated sign-in is configured.
func (p *Provider) OAuthEnabled() bool {
	return p.oauth != nil
}

// OAuthURL returns the provider consent URL for state.
func (p *Provider) OAuthURL(state string) (string, error) {
	if p.oauth == nil {
		return "", apperror.PreconditionFailed("google sign-in is not configured")
	}
	return p.oauth.AuthURL(state), nil
}

// SignInWithOAuth completes the OAuth callback: exchange the code, then find,
// link or create the account.
func (p *Provider) SignInWithOAuth(ctx context.Context, code string) (*Result, error) {
	if p.oauth == nil {
		return nil, apperror.PreconditionFailed("google sign-in is not configured")
	}
	if code == "" {
		return nil, apperror.Unauthorized("missing authorization code")
	}

	gu, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		p.logger.Warn("oauth exchange failed", slog.String("error", err.Error()))
		return nil, apperror.Unauthorized("google sign-in failed")
	}

	user := &model.User{
		Email:     gu.Email,
		FullName:  gu.Name,
		AvatarURL: gu.Picture,
		GoogleID:  &gu.Subject,
	}
	if err := p.users.UpsertGoogle(ctx, user); err != nil {
		return nil, fmt.Errorf("session: upserting google account: %w", err)
	}

	p.logger.Info("user authenticated via Google", slog.String("userID", user.ID))
	return p.signIn(user)
}

func (p *Provider) signIn(user *model.User) (*Result, error) {
	token, claims, err := p.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("session: issuing token: %w", err)
	}
	p.publish(Event{Type: EventSignedIn, UserID: user.ID, User: user, TokenID: claims.TokenID})
	return &Result{User: user, Token: token, ExpiresAt: claims.ExpiresAt}, nil
}

// SignOut revokes token. An already invalid or expired token is treated as
// signed out.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	claims, err := p.tokens.Validate(token)
	if err != nil {
		return nil
	}
	if err := p.revoke(ctx, claims); err != nil {
		return err
	}
	p.logger.Info("signed out", slog.String("userID", claims.UserID))
	p.publish(Event{Type: EventSignedOut, UserID: claims.UserID, TokenID: claims.TokenID})
	return nil
}

// Refresh exchanges a valid token for a new one and revokes the old.
func (p *Provider) Refresh(ctx context.Context, token string) (*Result, error) {
	user, old, err := p.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	fresh, claims, err := p.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("session: issuing token: %w", err)
	}
	if err := p.revoke(ctx, old); err != nil {
		return nil, err
	}

	p.publish(Event{
		Type:            EventTokenRefreshed,
		UserID:          user.ID,
		User:            user,
		TokenID:         claims.TokenID,
		PreviousTokenID: old.TokenID,
	})
	return &Result{User: user, Token: fresh, ExpiresAt: claims.ExpiresAt}, nil
}

// Resolve returns the user a token belongs to.
func (p *Provider) Resolve(ctx context.Context, token string) (*model.User, error) {
	user, _, err := p.resolve(ctx, token)
	return user, err
}

// UserIDForToken makes Provider an auth.Validator that also honours
// revocation, without loading the user row.
func (p *Provider) UserIDForToken(ctx context.Context, token string) (string, error) {
	claims, err := p.check(ctx, token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// Claims validates token, honouring revocation, and returns its claims.
func (p *Provider) Claims(ctx context.Context, token string) (*auth.Claims, error) {
	return p.check(ctx, token)
}

func (p *Provider) resolve(ctx context.Context, token string) (*model.User, *auth.Claims, error) {
	claims, err := p.check(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	user, err := p.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil, apperror.Unauthorized("account no longer exists")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("session: loading account: %w", err)
	}
	return user, claims, nil
}

func (p *Provider) check(ctx context.Context, token string) (*auth.Claims, error) {
	if token == "" {
		return nil, apperror.Unauthorized("not signed in")
	}
	claims, err := p.tokens.Validate(token)
	if err != nil {
		return nil, apperror.Unauthorized("session expired or invalid")
	}
	revoked, err := p.revoked.Exists(ctx, revokedKey(claims.TokenID))
	if err != nil {
		return nil, fmt.Errorf("session: checking revocation: %w", err)
	}
	if revoked {
		return nil, apperror.Unauthorized("session has been signed out")
	}
	return claims, nil
}

func (p *Provider) revoke(ctx context.Context, claims *auth.Claims) error {
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := p.revoked.Set(ctx, revokedKey(claims.TokenID), []byte(claims.UserID), ttl); err != nil {
		return fmt.Errorf("session: revoking token: %w", err)
	}
	return nil
}

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}
