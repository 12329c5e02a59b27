// Package service implements the authentication flows: authorization-code
// issuance with PKCE, code exchange, refresh-token rotation with family
// revocation, logout, and access-token verification.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/theseyan/418-nits-hacks/internal/adapter/captcha"
	"github.com/theseyan/418-nits-hacks/internal/adapter/identity"
	"github.com/theseyan/418-nits-hacks/internal/apperr"
	"github.com/theseyan/418-nits-hacks/internal/config"
	"github.com/theseyan/418-nits-hacks/internal/domain"
	"github.com/theseyan/418-nits-hacks/internal/pkce"
	"github.com/theseyan/418-nits-hacks/internal/repository"
	"github.com/theseyan/418-nits-hacks/internal/token"
)

// AuthorizeRequest carries the inputs of the authorize protocol.
type AuthorizeRequest struct {
	ClientID      string
	GISToken      string
	CodeChallenge string
	CaptchaToken  string
	RemoteIP      string
}

// ExchangeRequest carries the inputs of the code-exchange protocol.
type ExchangeRequest struct {
	Code         string
	ClientID     string
	CodeVerifier string
}

// CreateAccountRequest carries the inputs of account provisioning.
type CreateAccountRequest struct {
	GISToken     string
	CaptchaToken string
	RemoteIP     string
}

// AuthService orchestrates the authentication protocols over the stores and
// oracles it is wired with.
type AuthService struct {
	users     repository.UserRepository
	ledger    repository.RefreshTokenLedger
	codes     repository.AuthCodeStore
	identity  identity.Verifier
	captcha   captcha.Verifier
	issuer    *token.Issuer
	snowflake *snowflake.Node
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies. captchaVerifier may be nil when CAPTCHA
// verification is not configured.
func NewAuthService(
	users repository.UserRepository,
	ledger repository.RefreshTokenLedger,
	codes repository.AuthCodeStore,
	identityVerifier identity.Verifier,
	captchaVerifier captcha.Verifier,
	issuer *token.Issuer,
	node *snowflake.Node,
	cfg config.Config,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		ledger:    ledger,
		codes:     codes,
		identity:  identityVerifier,
		captcha:   captchaVerifier,
		issuer:    issuer,
		snowflake: node,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/theseyan/418-nits-hacks/internal/service"),
	}
}

// Authorize verifies the federated identity assertion and, if the user exists
// and is in good standing, mints a single-use authorization code bound to the
// client and the PKCE challenge.
func (s *AuthService) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Authorize")
	defer span.End()

	if req.ClientID == "" || req.GISToken == "" || req.CodeChallenge == "" {
		return "", apperr.BadRequest("client_id, token and code_challenge are required")
	}
	if !s.clientRegistered(req.ClientID) {
		return "", apperr.Unauthorized("Invalid or unregistered client ID")
	}
	if err := s.checkCaptcha(ctx, req.CaptchaToken, req.RemoteIP); err != nil {
		return "", err
	}

	ident, err := s.identity.Verify(ctx, req.GISToken)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	user, err := s.users.GetByGoogleID(ctx, ident.ExternalID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", apperr.Unauthorized("User account does not exist")
	}
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if user.Disabled {
		return "", apperr.Unauthorized("Account is disabled. Please contact support.")
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate authorization code: %w", err)
	}

	record := domain.AuthCodeRecord{
		Code:          code,
		ClientID:      req.ClientID,
		UserID:        user.ID,
		CodeChallenge: req.CodeChallenge,
		ExpiresAt:     time.Now().Add(s.cfg.AuthCodeTTL),
	}
	if err := s.codes.Put(ctx, record, s.cfg.AuthCodeTTL); err != nil {
		return "", fmt.Errorf("store authorization code: %w", err)
	}

	s.audit("auth.authorize.success", "user_id", user.ID, "client_id", req.ClientID)
	return code, nil
}

// Exchange redeems a single-use authorization code for a token pair. The code
// must belong to the presenting client and the verifier must match the PKCE
// challenge recorded at authorization time.
func (s *AuthService) Exchange(ctx context.Context, req ExchangeRequest) (domain.TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Exchange")
	defer span.End()

	if req.Code == "" || req.ClientID == "" || req.CodeVerifier == "" {
		return domain.TokenPair{}, apperr.BadRequest("code, client_id and code_verifier are required")
	}

	record, err := s.codes.Take(ctx, req.Code)
	if errors.Is(err, repository.ErrCodeNotFound) {
		return domain.TokenPair{}, apperr.Unauthorized("Authorization code is invalid or expired")
	}
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("take authorization code: %w", err)
	}

	if record.ClientID != req.ClientID {
		return domain.TokenPair{}, apperr.Unauthorized("Invalid or unknown client ID")
	}
	if !pkce.VerifyChallenge(record.CodeChallenge, req.CodeVerifier) {
		return domain.TokenPair{}, apperr.Unauthorized("Code challenge verification failed")
	}

	pair, err := s.generatePair(ctx, record.UserID)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, err
	}

	s.audit("auth.exchange.success", "user_id", record.UserID, "client_id", req.ClientID)
	return pair, nil
}

// Rotate exchanges a live refresh token for a fresh token pair. Presenting a
// token that was already rotated out is treated as replay and revokes the
// entire token family.
func (s *AuthService) Rotate(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Rotate")
	defer span.End()

	claims, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		span.RecordError(err)
		return domain.TokenPair{}, err
	}
	family := familyRoot(claims)

	live, err := s.ledger.Exists(ctx, claims.TokenID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("lookup refresh token: %w", err)
	}
	if !live {
		// A well-signed token missing from the ledger was rotated out
		// already. Someone is replaying old credentials, so the whole
		// family is burned.
		if err := s.ledger.RevokeFamily(ctx, family); err != nil {
			return domain.TokenPair{}, fmt.Errorf("revoke token family: %w", err)
		}
		s.auditWarn("auth.rotate.replay", "user_id", claims.UserID, "family", family)
		return domain.TokenPair{}, apperr.Unauthorized("Invalid, malformed or expired refresh token")
	}

	signed, tokenID, err := s.issuer.IssueRefreshToken(claims.UserID, family)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	entry := domain.RefreshTokenEntry{
		TokenID:       tokenID,
		UserID:        claims.UserID,
		ParentTokenID: family,
		IssuedAt:      time.Now().UTC(),
	}
	if err := s.ledger.RotateAtomic(ctx, claims.TokenID, entry); err != nil {
		if errors.Is(err, repository.ErrTokenStale) {
			// Lost the race against a concurrent rotation or revocation.
			return domain.TokenPair{}, apperr.Unauthorized("Invalid, malformed or expired refresh token")
		}
		return domain.TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	access, err := s.issuer.IssueAccessToken(claims.UserID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	s.audit("auth.rotate.success", "user_id", claims.UserID, "family", family)
	return domain.TokenPair{AccessToken: access, RefreshToken: signed}, nil
}

// Logout revokes the whole family of the presented refresh token. The token
// must carry a valid signature but may be past its expiry.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	claims, err := s.issuer.DecodeRefreshToken(refreshToken)
	if err != nil {
		span.RecordError(err)
		return err
	}

	family := familyRoot(claims)
	if err := s.ledger.RevokeFamily(ctx, family); err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}

	s.audit("auth.logout.success", "user_id", claims.UserID, "family", family)
	return nil
}

// VerifyAccessToken validates the access token and returns the user id.
func (s *AuthService) VerifyAccessToken(_ context.Context, raw string) (string, error) {
	return s.issuer.VerifyAccessToken(raw)
}

// CreateAccount provisions a user from a verified identity assertion and logs
// them straight in with a fresh token pair.
func (s *AuthService) CreateAccount(ctx context.Context, req CreateAccountRequest) (domain.User, domain.TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.CreateAccount")
	defer span.End()

	if req.GISToken == "" {
		return domain.User{}, domain.TokenPair{}, apperr.BadRequest("token is required")
	}
	if err := s.checkCaptcha(ctx, req.CaptchaToken, req.RemoteIP); err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	ident, err := s.identity.Verify(ctx, req.GISToken)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, domain.TokenPair{}, err
	}

	if _, err := s.users.GetByGoogleID(ctx, ident.ExternalID); err == nil {
		return domain.User{}, domain.TokenPair{}, apperr.Conflict("User account already exists. Please log in instead.")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	user := domain.User{
		ID:        s.snowflake.Generate().String(),
		GoogleID:  ident.ExternalID,
		Email:     ident.Email,
		FullName:  ident.Name,
		AvatarURL: ident.Picture,
		JoinedAt:  time.Now().UTC(),
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.generatePair(ctx, created.ID)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, domain.TokenPair{}, err
	}

	s.audit("auth.create_account.success", "user_id", created.ID)
	return created, pair, nil
}

// GetUser returns the account for a verified user id.
func (s *AuthService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.GetUser")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return domain.User{}, apperr.NotFound("User ID does not exist.")
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// generatePair mints a fresh root refresh token plus access token for a new
// session. The active-session cap applies here only; rotation replaces a row
// instead of adding one, so it is exempt.
func (s *AuthService) generatePair(ctx context.Context, userID string) (domain.TokenPair, error) {
	active, err := s.ledger.CountActive(ctx, userID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("count active tokens: %w", err)
	}
	if active >= s.cfg.MaxActiveRefreshTokens {
		return domain.TokenPair{}, apperr.Forbidden("Too many logged-in devices. Please log out and try again.")
	}

	signed, tokenID, err := s.issuer.IssueRefreshToken(userID, "")
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	// A root token is its own family: parent points at itself.
	entry := domain.RefreshTokenEntry{
		TokenID:       tokenID,
		UserID:        userID,
		ParentTokenID: tokenID,
		IssuedAt:      time.Now().UTC(),
	}
	if err := s.ledger.Insert(ctx, entry); err != nil {
		return domain.TokenPair{}, fmt.Errorf("insert refresh token: %w", err)
	}

	access, err := s.issuer.IssueAccessToken(userID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: signed}, nil
}

func (s *AuthService) checkCaptcha(ctx context.Context, captchaToken, remoteIP string) error {
	if s.captcha == nil {
		return nil
	}
	ok, err := s.captcha.Verify(ctx, captchaToken, remoteIP)
	if err != nil {
		return fmt.Errorf("verify captcha: %w", err)
	}
	if !ok {
		return apperr.BadRequest("CAPTCHA verification failed")
	}
	return nil
}

func (s *AuthService) clientRegistered(clientID string) bool {
	for _, id := range s.cfg.OAuthClientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}

// familyRoot resolves the family of a refresh token. Tokens minted before the
// parent claim existed carry no parent and are their own root.
func familyRoot(claims token.RefreshClaims) string {
	if claims.ParentTokenID != "" {
		return claims.ParentTokenID
	}
	return claims.TokenID
}

func generateCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	s.emit(zap.InfoLevel, event, attrs...)
}

func (s *AuthService) auditWarn(event string, attrs ...any) {
	s.emit(zap.WarnLevel, event, attrs...)
}

func (s *AuthService) emit(level zapcore.Level, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	s.logger.Log(level, event, fields...)
}
