package service

import (
	"context"
	"time"

	"github.com/spec-kit/isp-support/internal/auth"
	"github.com/spec-kit/isp-support/internal/config"
	"github.com/spec-kit/isp-support/internal/domain"
	"github.com/spec-kit/isp-support/internal/repository"
	apperrors "github.com/spec-kit/isp-support/pkg/util/errorutil"
)

// IssuedToken is a signed access token for one actor.
type IssuedToken struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
	Actor     domain.ActorSummary `json:"actor"`
}

// AuthService mints access tokens for directory actors. Credential checks
// happen upstream; this only refuses actors that do not exist.
type AuthService struct {
	directory *ActorDirectory
	tokenMgr  *auth.TokenManager
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	ActorRepo repository.ActorRepository
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		directory: NewActorDirectory(deps.ActorRepo),
		tokenMgr:  auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes),
	}
}

// IssueToken resolves the actor and signs a token for it.
func (s *AuthService) IssueToken(ctx context.Context, ref domain.ActorRef) (*IssuedToken, error) {
	summary, err := s.directory.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	token, exp, err := s.tokenMgr.GenerateToken(summary.Ref)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &IssuedToken{Token: token, ExpiresAt: exp, Actor: *summary}, nil
}

// TokenManager exposes the token manager for the auth middleware.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Directory exposes the actor directory backing token issuance.
func (s *AuthService) Directory() *ActorDirectory {
	return s.directory
}
