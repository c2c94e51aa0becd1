package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/task-dashboard/internal"
	identityDatamodel "github.com/frahmantamala/task-dashboard/internal/core/datamodel/identity"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

// IdentityRepository stores login credentials. Lookups return (nil, nil) when
// no row matches.
type IdentityRepository interface {
	Create(ctx context.Context, identity *identityDatamodel.Identity) error
	GetByID(ctx context.Context, id string) (*identityDatamodel.Identity, error)
	GetByEmail(ctx context.Context, email string) (*identityDatamodel.Identity, error)
	SetDisabled(ctx context.Context, id string, disabled bool) error
	UpdateProfile(ctx context.Context, id, displayName, photoURL string) error
}

// DirectoryReader resolves the role and division attached to an identity.
// It returns internal.ErrUserNotFound when no directory record exists.
type DirectoryReader interface {
	LookupRole(ctx context.Context, userID string) (coreuser.Role, string, error)
}

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ResolvePrincipal(ctx context.Context, claims *Claims) (*coreuser.Principal, error)
	Session(p *coreuser.Principal) SessionResponse
}

// Service is the identity provider adapter: credentials, sessions and
// account lifecycle.
type Service struct {
	repo           IdentityRepository
	directory      DirectoryReader
	tokenGenerator TokenGenerator
	bcryptCost     int
	logger         *slog.Logger
}

func NewService(repo IdentityRepository, tokenGen TokenGenerator, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

// SetDirectory wires the directory lookup after both services exist.
func (s *Service) SetDirectory(directory DirectoryReader) {
	s.directory = directory
}

func NewJWTTokenGenerator(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		Issuer:             "task-dashboard",
	}
}

// Authenticate validates credentials and returns tokens
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	ident, err := s.repo.GetByEmail(ctx, dto.Email)
	if err != nil {
		return AuthTokens{}, internal.NewTransportError("failed to load identity", err)
	}
	if ident == nil {
		return AuthTokens{}, internal.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(dto.Password)); err != nil {
		return AuthTokens{}, internal.ErrInvalidCredentials
	}
	if ident.Disabled {
		return AuthTokens{}, internal.ErrIdentityDisabled
	}

	s.logger.InfoContext(ctx, "identity authenticated", "user_id", ident.ID)
	return s.issueTokens(ident.ID, ident.Email)
}

// RefreshTokens validates refresh token and returns new tokens
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}

	ident, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		return AuthTokens{}, internal.NewTransportError("failed to load identity", err)
	}
	if ident == nil {
		return AuthTokens{}, internal.ErrInvalidToken
	}
	if ident.Disabled {
		return AuthTokens{}, internal.ErrIdentityDisabled
	}

	return s.issueTokens(ident.ID, ident.Email)
}

func (s *Service) issueTokens(userID, email string) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(userID, email)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign access token", err)
	}

	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(userID, email)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign refresh token", err)
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateAccessToken(tokenString)
}

// ResolvePrincipal joins a validated token with the identity and directory
// records. A missing directory record yields a principal without a role.
func (s *Service) ResolvePrincipal(ctx context.Context, claims *Claims) (*coreuser.Principal, error) {
	ident, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, internal.NewTransportError("failed to load identity", err)
	}
	if ident == nil {
		return nil, internal.ErrInvalidToken
	}
	if ident.Disabled {
		return nil, internal.ErrIdentityDisabled
	}

	p := &coreuser.Principal{
		ID:          ident.ID,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		PhotoURL:    ident.PhotoURL,
	}

	if s.directory == nil {
		return p, nil
	}

	role, division, err := s.directory.LookupRole(ctx, ident.ID)
	switch {
	case err == nil:
		p.Role = role
		p.Division = division
	case errors.Is(err, internal.ErrUserNotFound):
		s.logger.WarnContext(ctx, "identity has no directory record", "user_id", ident.ID)
	default:
		return nil, err
	}
	return p, nil
}

func (s *Service) Session(p *coreuser.Principal) SessionResponse {
	return SessionResponse{
		Session: Session{
			ID:          p.ID,
			Email:       p.Email,
			DisplayName: p.DisplayName,
			PhotoURL:    p.PhotoURL,
		},
		Role:     string(p.Role),
		Division: p.Division,
	}
}

// CreateIdentity provisions a login account and returns its id.
func (s *Service) CreateIdentity(ctx context.Context, email, password, displayName string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < MinPasswordLength {
		return "", internal.ErrWeakCredential
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", internal.NewTransportError("failed to check identity", err)
	}
	if existing != nil {
		return "", internal.ErrDuplicateEmail
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return "", internal.NewInternalError("failed to hash password", err)
	}

	ident := &identityDatamodel.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
	}
	if err := s.repo.Create(ctx, ident); err != nil {
		if errors.Is(err, internal.ErrDuplicateEmail) {
			return "", internal.ErrDuplicateEmail
		}
		return "", internal.NewTransportError("failed to create identity", err)
	}

	s.logger.InfoContext(ctx, "identity created", "user_id", ident.ID, "email", email)
	return ident.ID, nil
}

func (s *Service) DisableIdentity(ctx context.Context, id string) error {
	if err := s.repo.SetDisabled(ctx, id, true); err != nil {
		return internal.NewTransportError("failed to disable identity", err)
	}
	s.logger.InfoContext(ctx, "identity disabled", "user_id", id)
	return nil
}

func (s *Service) UpdateIdentityProfile(ctx context.Context, id, displayName, photoURL string) error {
	if err := s.repo.UpdateProfile(ctx, id, displayName, photoURL); err != nil {
		return internal.NewTransportError("failed to update identity profile", err)
	}
	return nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (j *JWTTokenGenerator) sign(userID, email string, typ TokenType, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    j.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (j *JWTTokenGenerator) GenerateAccessToken(userID, email string) (string, error) {
	return j.sign(userID, email, TokenTypeAccess, j.AccessTokenTTL, j.AccessTokenSecret)
}

func (j *JWTTokenGenerator) GenerateRefreshToken(userID, email string) (string, error) {
	return j.sign(userID, email, TokenTypeRefresh, j.RefreshTokenTTL, j.RefreshTokenSecret)
}

func (j *JWTTokenGenerator) ValidateAccessToken(tokenString string) (*Claims, error) {
	return j.validate(tokenString, TokenTypeAccess, j.AccessTokenSecret)
}

func (j *JWTTokenGenerator) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return j.validate(tokenString, TokenTypeRefresh, j.RefreshTokenSecret)
}

func (j *JWTTokenGenerator) validate(tokenString string, want TokenType, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(j.Issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != want || claims.UserID == "" {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
