package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"budgetauth/internal/domain/models"
	jwtlib "budgetauth/internal/lib/jwt"
	"budgetauth/internal/lib/mailer"
	"budgetauth/internal/lib/sl"
	"budgetauth/internal/lib/validate"
	"budgetauth/internal/ratelimit"
	"budgetauth/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

const defaultCurrency = "EUR"

type Auth struct {
	logger       *slog.Logger
	userSaver    UserSaver
	userProvider UserProvider
	userMutator  UserMutator
	ledger       TokenLedger
	limiter      RateLimiter
	mailer       mailer.Mailer
	tokens       TokenConfig
	frontendURL  string
}

// TokenConfig carries the signing secrets and lifetimes for issued tokens.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
}

type UserSaver interface {
	SaveUser(
		ctx context.Context,
		username string,
		email string,
		passHash []byte,
		currency string,
	) (uid int64, err error)
}

type UserProvider interface {
	User(
		ctx context.Context,
		email string,
	) (user *models.User, err error)
	UserByID(
		ctx context.Context,
		userID int64,
	) (user *models.User, err error)
}

type UserMutator interface {
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userID int64) error
}

type TokenLedger interface {
	SaveToken(ctx context.Context, userID int64, accessToken, refreshToken string) error
	InvalidateToken(ctx context.Context, userID int64, accessToken string) error
	TokenByAccess(ctx context.Context, accessToken string) (*models.TokenRecord, error)
}

type RateLimiter interface {
	Check(ctx context.Context, clientKey string) error
	Record(ctx context.Context, clientKey string, outcome ratelimit.Outcome) error
}

// TokenPair is an access/refresh token pair returned to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserUpdate carries the profile changes a user may request. Empty fields keep
// their current value; NewPassword empty keeps the current password.
type UserUpdate struct {
	NewUsername string
	NewEmail    string
	OldPassword string
	NewPassword string
	NewCurrency string
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid access token")
	ErrPermissionDenied   = errors.New("permission denied")
)

// New returns a new instance of the Auth service.
func New(
	logger *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	userMutator UserMutator,
	ledger TokenLedger,
	limiter RateLimiter,
	m mailer.Mailer,
	tokens TokenConfig,
	frontendURL string,
) *Auth {
	return &Auth{
		logger:       logger,
		userSaver:    userSaver,
		userProvider: userProvider,
		userMutator:  userMutator,
		ledger:       ledger,
		limiter:      limiter,
		mailer:       m,
		tokens:       tokens,
		frontendURL:  frontendURL,
	}
}

// Register creates a new account. The rate-limit gate is consulted first; any
// validation failure is recorded as failed so it never counts toward the limit,
// while a successful registration is recorded and trips the gate for the rest
// of the window.
func (a *Auth) Register(
	ctx context.Context,
	clientKey string,
	username string,
	email string,
	password string,
	currency string,
) (userID int64, err error) {
	const op = "auth.Register"
	log := a.logger.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	log.Info("register request")

	if err := a.limiter.Check(ctx, clientKey); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
			log.Warn("registration rate limited", slog.String("client", clientKey))
			return 0, fmt.Errorf("%s: %w", op, ratelimit.ErrRateLimitExceeded)
		}
		log.Error("rate limit check failed", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := validate.Email(email); err != nil {
		a.recordAttempt(ctx, log, clientKey, ratelimit.OutcomeFailed)
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := validate.Password(password); err != nil {
		a.recordAttempt(ctx, log, clientKey, ratelimit.OutcomeFailed)
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if username == "" {
		username = email[:strings.IndexByte(email, '@')]
	}
	if currency == "" {
		currency = defaultCurrency
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	userID, err = a.userSaver.SaveUser(ctx, username, email, passHash, currency)
	if err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			log.Warn("email already registered")
			a.recordAttempt(ctx, log, clientKey, ratelimit.OutcomeFailed)
			return 0, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		log.Error("failed to save user", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	a.recordAttempt(ctx, log, clientKey, ratelimit.OutcomeSuccess)
	log.Info("user registered", slog.Int64("userID", userID))

	return userID, nil
}

// recordAttempt updates the gate counter. Gate bookkeeping is allowed to lag
// the credential store, so failures here are logged, not surfaced.
func (a *Auth) recordAttempt(ctx context.Context, log *slog.Logger, clientKey string, outcome ratelimit.Outcome) {
	if err := a.limiter.Record(ctx, clientKey, outcome); err != nil {
		log.Warn("failed to record rate limit outcome", sl.Err(err))
	}
}

// Login authenticates the user and returns the profile with a freshly issued
// token pair. The pair is only returned once the ledger has persisted it.
func (a *Auth) Login(
	ctx context.Context,
	email string,
	password string,
) (*models.User, TokenPair, error) {
	const op = "auth.Login"
	log := a.logger.With(slog.String("op", op))
	log.Info("login request", slog.String("email", email))

	user, err := a.userProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", sl.Err(err))
			return nil, TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Warn("invalid password", sl.Err(err))
		return nil, TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := a.issuePair(ctx, user.ID, a.tokens.AccessTTL)
	if err != nil {
		log.Error("failed to issue token pair", sl.Err(err))
		return nil, TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.Int64("userID", user.ID))

	return user, pair, nil
}

// Logout invalidates the active ledger record for the token. A missing active
// record means the token was already logged out, swept, or never issued.
func (a *Auth) Logout(ctx context.Context, userID int64, accessToken string) error {
	const op = "auth.Logout"
	log := a.logger.With(slog.String("op", op), slog.Int64("userID", userID))

	if err := a.ledger.InvalidateToken(ctx, userID, accessToken); err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			log.Warn("no active token to invalidate")
			return fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}
		log.Error("failed to invalidate token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged out")

	return nil
}

// UpdateUser applies profile changes after verifying ownership and the old
// password. Empty update fields keep the current values.
func (a *Auth) UpdateUser(
	ctx context.Context,
	authUserID int64,
	userID int64,
	upd UserUpdate,
) (*models.User, error) {
	const op = "auth.UpdateUser"
	log := a.logger.With(slog.String("op", op), slog.Int64("userID", userID))
	log.Info("update request")

	user, err := a.userProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if authUserID != userID {
		log.Warn("user attempted to update another profile", slog.Int64("authUserID", authUserID))
		return nil, fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(upd.OldPassword)); err != nil {
		log.Warn("incorrect old password")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if upd.NewEmail != "" && upd.NewEmail != user.Email {
		if err := validate.Email(upd.NewEmail); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		user.Email = upd.NewEmail
	}
	if upd.NewUsername != "" {
		user.Username = upd.NewUsername
	}
	if upd.NewCurrency != "" {
		user.Currency = upd.NewCurrency
	}
	if upd.NewPassword != "" {
		if err := validate.Password(upd.NewPassword); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		passHash, err := bcrypt.GenerateFromPassword([]byte(upd.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Error("failed to generate password hash", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		user.PassHash = passHash
	}

	if err := a.userMutator.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			log.Warn("new email already registered")
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		log.Error("failed to update user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user updated")

	return user, nil
}

// DeleteUser removes the account after verifying ownership and the password.
func (a *Auth) DeleteUser(
	ctx context.Context,
	authUserID int64,
	userID int64,
	password string,
) error {
	const op = "auth.DeleteUser"
	log := a.logger.With(slog.String("op", op), slog.Int64("userID", userID))
	log.Info("delete request")

	user, err := a.userProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if authUserID != userID {
		log.Warn("user attempted to delete another profile", slog.Int64("authUserID", authUserID))
		return fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Warn("incorrect password")
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if err := a.userMutator.DeleteUser(ctx, userID); err != nil {
		log.Error("failed to delete user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user deleted")

	return nil
}

// ForgotPassword issues a short-lived reset token pair, records it in the
// ledger and mails the reset link to the account's address.
func (a *Auth) ForgotPassword(ctx context.Context, email string) error {
	const op = "auth.ForgotPassword"
	log := a.logger.With(slog.String("op", op))
	log.Info("forgot password request", slog.String("email", email))

	user, err := a.userProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	pair, err := a.issuePair(ctx, user.ID, a.tokens.ResetTTL)
	if err != nil {
		log.Error("failed to issue reset token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	resetLink := fmt.Sprintf("%s/reset-password.html?token=%s", a.frontendURL, pair.AccessToken)
	if err := a.mailer.Send(user.Email, "Password Reset", resetMailBody(user.Username, resetLink)); err != nil {
		log.Error("failed to send reset mail", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("reset mail sent", slog.Int64("userID", user.ID))

	return nil
}

// ResetPassword consumes a reset token: the ledger record must still be
// active, the token must verify against the access secret, and on success the
// record is invalidated so the link is single-use.
func (a *Auth) ResetPassword(ctx context.Context, resetToken string, newPassword string) error {
	const op = "auth.ResetPassword"
	log := a.logger.With(slog.String("op", op))
	log.Info("reset password request")

	rec, err := a.ledger.TokenByAccess(ctx, resetToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			log.Warn("reset token unknown")
			return fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}
		log.Error("failed to look up token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if !rec.Status {
		log.Warn("reset token already invalidated")
		return fmt.Errorf("%s: %w", op, jwtlib.ErrTokenExpired)
	}

	claims, err := jwtlib.ParseToken(resetToken, a.tokens.AccessSecret)
	if err != nil {
		log.Warn("reset token failed verification", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	userID, err := jwtlib.Subject(claims)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.userProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := validate.Password(newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	user.PassHash = passHash

	if err := a.userMutator.UpdateUser(ctx, user); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.ledger.InvalidateToken(ctx, userID, resetToken); err != nil {
		// The password change already committed; the sweep collects the token.
		log.Warn("failed to invalidate reset token", sl.Err(err))
	}

	log.Info("password reset", slog.Int64("userID", userID))

	return nil
}

// issuePair mints an access/refresh pair and persists it in the ledger. The
// pair is discarded when persistence fails: revocation depends on the ledger,
// so tokens it never saw must not reach the client.
func (a *Auth) issuePair(ctx context.Context, userID int64, accessTTL time.Duration) (TokenPair, error) {
	accessToken, err := jwtlib.NewToken(userID, a.tokens.AccessSecret, accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := jwtlib.NewToken(userID, a.tokens.RefreshSecret, a.tokens.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	if err := a.ledger.SaveToken(ctx, userID, accessToken, refreshToken); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
