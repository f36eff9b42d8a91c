package contacts

import (
	"context"
	"database/sql"
	"reflect"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RegisterInput carries the fields needed to open an account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Auther drives the credential and session lifecycle: registration, email
// verification, login, refresh rotation, logout, and password resets.
type Auther struct {
	provider     IdentityProvider
	users        Users
	revocations  RevocationRegistry
	tokenService TokenService
	policy       TokenPolicy
	limiter      RateLimiter
	notifier     Notifier
	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
	txRun        TxRunner
}

// TxRunner executes fn inside a database transaction. It matches the
// RepositoryManager RunInTx signature.
type TxRunner func(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, users Users, revocations RevocationRegistry, opts Config) *Auther {
	policy := opts.GetTokenPolicy()

	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		policy,
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		users:        users,
		revocations:  revocations,
		tokenService: tokenService,
		policy:       policy,
		limiter:      NewFixedWindowLimiter(10, 15*time.Minute),
		notifier:     noopNotifier{},
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithTokenService overrides the default token service.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// WithRateLimiter overrides the limiter guarding login and reset requests.
func (s *Auther) WithRateLimiter(limiter RateLimiter) *Auther {
	if limiter != nil {
		s.limiter = limiter
	}
	return s
}

// WithNotifier configures the outbound mail channel.
func (s *Auther) WithNotifier(n Notifier) *Auther {
	s.notifier = normalizeNotifier(n)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTxRunner makes single-use token consumption share a transaction with
// the user mutation it gates, so a failed mutation does not burn the token.
func (s *Auther) WithTxRunner(run TxRunner) *Auther {
	if run != nil {
		s.txRun = run
	}
	return s
}

// WithClock injects a custom clock, useful for expiry tests.
func (s *Auther) WithClock(clock func() time.Time) *Auther {
	if clock != nil {
		s.now = clock
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Register opens a pending account and sends the verification email. The
// email address must not belong to an existing account, and repeat attempts
// for the same address are rate limited.
func (s *Auther) Register(ctx context.Context, input RegisterInput) (*User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	username := strings.TrimSpace(input.Username)

	if !s.limiter.Allow(registerLimiterKey(email)) {
		return nil, ErrTooManyLoginAttempts
	}

	if email == "" || !isEmail(email) {
		return nil, goerrors.New("a valid email is required", goerrors.CategoryValidation)
	}
	if username == "" {
		username = email
	}

	taken, err := s.users.EmailTaken(ctx, email)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to check email availability")
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Register(ctx, &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleMember,
		Status:       UserStatusPending,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to create account")
	}

	s.emitAuthEvent(ctx, ActivityEventUserRegistered, s.actorFromUser(user), user.ID.String(), map[string]any{
		"email": user.Email,
	})

	s.sendVerificationEmail(ctx, user)

	return user, nil
}

// Login verifies credentials and returns a fresh token pair. Attempts are
// rate limited per identifier, and a successful login clears the counter.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	if !s.limiter.Allow(loginLimiterKey(identifier)) {
		s.emitAuthEvent(ctx, ActivityEventLoginThrottled, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
		})
		return nil, ErrTooManyLoginAttempts
	}

	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrIdentityNotFound.Error(),
		})
		return nil, ErrIdentityNotFound
	}

	if status, err := s.ensureIdentityActive(identity); err != nil {
		s.logger.Error("Login blocked due to user status %s: %v", status, err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
			"status":     status,
		})
		return nil, err
	}

	pair, _, err := s.tokenService.IssuePair(identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.limiter.Reset(loginLimiterKey(identifier))

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return pair, nil
}

// Refresh rotates a refresh token: the old token is consumed and a new pair
// issued. Consuming is atomic, so a token presented twice yields exactly one
// new pair and the loser gets a revocation error.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.validateForPurpose(refreshToken, PurposeRefresh)
	if err != nil {
		return nil, err
	}

	if err := s.ensureTokenLive(ctx, claims); err != nil {
		return nil, err
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, claims.UserID())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if _, err := s.ensureIdentityActive(identity); err != nil {
		return nil, err
	}

	pair, _, err := s.tokenService.IssuePair(identity)
	if err != nil {
		return nil, err
	}

	// Consuming the old token is the commit point. If another rotation got
	// here first the freshly issued pair is discarded and the caller sees
	// the replay error.
	won, err := s.revocations.Consume(ctx, claims.TokenID(), claims.Subject(), claims.Expires())
	if err != nil {
		return nil, storeUnavailable(err)
	}
	if !won {
		s.emitAuthEvent(ctx, ActivityEventTokenReplayed, s.actorFromIdentity(identity), claims.UserID(), map[string]any{
			"jti": claims.TokenID(),
		})
		return nil, ErrTokenRevoked
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, s.actorFromIdentity(identity), claims.UserID(), nil)

	return pair, nil
}

// Logout revokes the refresh token. Revoking an already revoked token
// succeeds, and an expired token needs no revocation at all.
func (s *Auther) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokenService.Validate(refreshToken)
	if err != nil {
		if IsTokenExpiredError(err) {
			return nil
		}
		return err
	}

	if claims.Purpose() != PurposeRefresh {
		return ErrTokenWrongPurpose
	}

	if err := s.revocations.Revoke(ctx, claims.TokenID(), claims.Subject(), claims.Expires()); err != nil {
		return storeUnavailable(err)
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, ActorRef{ID: claims.UserID(), Type: "user"}, claims.UserID(), nil)

	return nil
}

// VerifyEmail consumes a verification token and activates the account.
func (s *Auther) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.validateForPurpose(token, PurposeVerifyEmail)
	if err != nil {
		return err
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return ErrUnableToMapClaims
	}

	err = s.consumeSingleUse(ctx, claims, func(ctx context.Context, tx bun.IDB) error {
		var mErr error
		if tx != nil {
			mErr = s.users.MarkEmailVerifiedTx(ctx, tx, userID)
		} else {
			mErr = s.users.MarkEmailVerified(ctx, userID)
		}
		if mErr != nil {
			if goerrors.IsNotFound(mErr) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(mErr, goerrors.CategoryOperation, "failed to mark email verified")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventEmailVerified, ActorRef{ID: claims.UserID(), Type: "user"}, claims.UserID(), nil)

	return nil
}

// consumeSingleUse retires the claims' jti and applies mutate behind the
// same commit point. With a TxRunner configured both run in one
// transaction, so a failed mutation leaves the token usable for a retry.
func (s *Auther) consumeSingleUse(ctx context.Context, claims AuthClaims, mutate func(ctx context.Context, tx bun.IDB) error) error {
	if s.txRun == nil {
		won, err := s.revocations.Consume(ctx, claims.TokenID(), claims.Subject(), claims.Expires())
		if err != nil {
			return storeUnavailable(err)
		}
		if !won {
			return ErrTokenRevoked
		}
		return mutate(ctx, nil)
	}

	return s.txRun(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		registry := s.revocations
		if scoped, ok := registry.(TxScopedRevocations); ok {
			registry = scoped.WithTx(tx)
		}

		won, err := registry.Consume(ctx, claims.TokenID(), claims.Subject(), claims.Expires())
		if err != nil {
			return storeUnavailable(err)
		}
		if !won {
			return ErrTokenRevoked
		}
		return mutate(ctx, tx)
	})
}

// RequestPasswordReset issues a reset token and mails it to the account.
// Unknown addresses complete silently so the endpoint cannot be used to
// enumerate registered emails.
func (s *Auther) RequestPasswordReset(ctx context.Context, email string) error {
	if !s.limiter.Allow(resetLimiterKey(email)) {
		return ErrTooManyLoginAttempts
	}

	user, err := s.users.GetByIdentifier(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to look up account")
	}

	token, claims, err := s.tokenService.Issue(NewIdentityFromUser(user), PurposeResetPassword)
	if err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordResetRequest, s.actorFromUser(user), user.ID.String(), map[string]any{
		"jti": claims.TokenID(),
	})

	s.deliver(ctx, func(ctx context.Context) error {
		return s.notifier.SendPasswordReset(ctx, user.Email, token)
	})

	return nil
}

// CompletePasswordReset consumes a reset token, installs the new password,
// and revokes every outstanding refresh token for the account.
func (s *Auther) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	claims, err := s.validateForPurpose(token, PurposeResetPassword)
	if err != nil {
		return err
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return ErrUnableToMapClaims
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = s.consumeSingleUse(ctx, claims, func(ctx context.Context, tx bun.IDB) error {
		var mErr error
		if tx != nil {
			mErr = s.users.ResetPasswordTx(ctx, tx, userID, hash)
		} else {
			mErr = s.users.ResetPassword(ctx, userID, hash)
		}
		if mErr != nil {
			if goerrors.IsNotFound(mErr) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(mErr, goerrors.CategoryOperation, "failed to reset password")
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Every session opened with the old password dies with it.
	now := s.now()
	if err := s.revocations.RevokeAllForSubject(ctx, claims.Subject(), now, now.Add(s.policy.RefreshTTL)); err != nil {
		return storeUnavailable(err)
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordResetSuccess, ActorRef{ID: claims.UserID(), Type: "user"}, claims.UserID(), nil)

	return nil
}

// ResendVerification issues a fresh verification token for a pending account.
func (s *Auther) ResendVerification(ctx context.Context, email string) error {
	if !s.limiter.Allow(resetLimiterKey(email)) {
		return ErrTooManyLoginAttempts
	}

	user, err := s.users.GetByIdentifier(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to look up account")
	}

	if user.EmailValidated {
		return nil
	}

	s.sendVerificationEmail(ctx, user)
	return nil
}

func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
	if err != nil {
		s.logger.Error("IdentityFromSession find identity by identifier: %v", err)
		return nil, err
	}

	return identity, nil
}

func (s *Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed: %v", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims: %v", err)
		return nil, err
	}

	return session, nil
}

// validateForPurpose validates the raw token and checks the purpose tag.
func (s *Auther) validateForPurpose(raw string, purpose TokenPurpose) (AuthClaims, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		return nil, err
	}

	if claims.Purpose() != purpose {
		return nil, ErrTokenWrongPurpose
	}

	return claims, nil
}

// ensureTokenLive checks the token against individual and subject-wide
// revocations.
func (s *Auther) ensureTokenLive(ctx context.Context, claims AuthClaims) error {
	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		return storeUnavailable(err)
	}
	if revoked {
		return ErrTokenRevoked
	}

	revoked, err = s.revocations.IsSubjectRevoked(ctx, claims.Subject(), claims.IssuedAt())
	if err != nil {
		return storeUnavailable(err)
	}
	if revoked {
		return ErrTokenRevoked
	}

	return nil
}

func (s *Auther) sendVerificationEmail(ctx context.Context, user *User) {
	token, _, err := s.tokenService.Issue(NewIdentityFromUser(user), PurposeVerifyEmail)
	if err != nil {
		s.logger.Error("failed to issue verification token: %v", err)
		return
	}

	s.deliver(ctx, func(ctx context.Context) error {
		return s.notifier.SendVerificationEmail(ctx, user.Email, token)
	})
}

// deliver runs an outbound notification without blocking the request.
// Failures are logged, never surfaced to the caller.
func (s *Auther) deliver(ctx context.Context, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		if err := send(ctx); err != nil {
			s.logger.Error("notification delivery failed: %v", err)
		}
	}()
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Error("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}

func (s *Auther) actorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{
		ID:   user.ID.String(),
		Type: "user",
	}
}

func (s *Auther) ensureIdentityActive(identity Identity) (UserStatus, error) {
	status, ok := identityStatus(identity)
	if !ok {
		return "", nil
	}

	if status == "" {
		status = UserStatusActive
	}

	if err := statusAuthError(status); err != nil {
		return status, err
	}

	return status, nil
}

type statusAwareIdentity interface {
	Status() UserStatus
}

func identityStatus(identity Identity) (UserStatus, bool) {
	if identity == nil {
		return "", false
	}

	if sa, ok := identity.(statusAwareIdentity); ok {
		return sa.Status(), true
	}

	return "", false
}

// storeUnavailable marks a failure that came from the persistence layer
// rather than from the token itself.
func storeUnavailable(err error) error {
	return goerrors.Wrap(err, ErrStoreUnavailable.Category, ErrStoreUnavailable.Message).
		WithTextCode(ErrStoreUnavailable.TextCode)
}

func loginLimiterKey(identifier string) string {
	return "login:" + strings.TrimSpace(strings.ToLower(identifier))
}

func resetLimiterKey(email string) string {
	return "reset:" + strings.TrimSpace(strings.ToLower(email))
}

func registerLimiterKey(email string) string {
	return "register:" + strings.TrimSpace(strings.ToLower(email))
}
