// Package auth resolves a presented credential to the business it belongs to.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirasaad/tenantledger/pkg/config"
	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/apikey"
	"github.com/amirasaad/tenantledger/pkg/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Strategy turns a credential into a business id, or fails with
// domain.ErrUnauthenticated.
type Strategy interface {
	Authenticate(ctx context.Context, credential string) (uuid.UUID, error)
}

type Service struct {
	strategy Strategy
	logger   *slog.Logger
}

func New(strategy Strategy, logger *slog.Logger) *Service {
	return &Service{strategy: strategy, logger: logger.With("component", "auth")}
}

func NewWithAPIKey(uow repository.UnitOfWork, logger *slog.Logger) *Service {
	return New(NewAPIKeyStrategy(uow, logger), logger)
}

func NewWithJWT(uow repository.UnitOfWork, cfg *config.Jwt, logger *slog.Logger) *Service {
	return New(NewJWTStrategy(uow, cfg, logger), logger)
}

// Authenticate accepts the raw Authorization header value. A leading
// "Bearer " is optional.
func (s *Service) Authenticate(ctx context.Context, header string) (uuid.UUID, error) {
	credential := strings.TrimSpace(header)
	if len(credential) >= 6 && strings.EqualFold(credential[:6], "bearer") &&
		(len(credential) == 6 || credential[6] == ' ') {
		credential = strings.TrimSpace(credential[6:])
	}
	if credential == "" {
		return uuid.Nil, domain.ErrUnauthenticated
	}
	businessID, err := s.strategy.Authenticate(ctx, credential)
	if err != nil {
		if !errors.Is(err, domain.ErrUnauthenticated) && ctx.Err() == nil {
			s.logger.Error("Authenticate failed", "error", err)
		}
		return uuid.Nil, err
	}
	return businessID, nil
}

const apiKeyLookupTimeout = 5 * time.Second

// APIKeyStrategy looks the SHA-256 of the credential up among active keys.
type APIKeyStrategy struct {
	uow    repository.UnitOfWork
	group  singleflight.Group
	logger *slog.Logger
}

func NewAPIKeyStrategy(uow repository.UnitOfWork, logger *slog.Logger) *APIKeyStrategy {
	return &APIKeyStrategy{uow: uow, logger: logger}
}

func (s *APIKeyStrategy) Authenticate(ctx context.Context, credential string) (uuid.UUID, error) {
	hash := apikey.Hash(credential)
	// Bursts from one client share a single lookup. The lookup belongs to no
	// single caller, so one of them going away must not fail the others.
	ch := s.group.DoChan(hash, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), apiKeyLookupTimeout)
		defer cancel()
		repo, err := s.uow.APIKeyRepository()
		if err != nil {
			return uuid.Nil, err
		}
		key, err := repo.GetActiveByHash(lookupCtx, hash)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return uuid.Nil, domain.ErrUnauthenticated
			}
			return uuid.Nil, fmt.Errorf("lookup api key: %w", err)
		}
		return key.BusinessID, nil
	})
	select {
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return uuid.Nil, res.Err
		}
		return res.Val.(uuid.UUID), nil
	}
}

// JWTStrategy accepts HS256 tokens carrying a business_id claim for an
// existing business.
type JWTStrategy struct {
	uow    repository.UnitOfWork
	cfg    *config.Jwt
	logger *slog.Logger
}

func NewJWTStrategy(uow repository.UnitOfWork, cfg *config.Jwt, logger *slog.Logger) *JWTStrategy {
	return &JWTStrategy{uow: uow, cfg: cfg, logger: logger}
}

func (s *JWTStrategy) Authenticate(ctx context.Context, credential string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	token, err := jwt.Parse(credential, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		s.logger.Debug("JWT rejected", "error", err)
		return uuid.Nil, domain.ErrUnauthenticated
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, domain.ErrUnauthenticated
	}
	raw, ok := claims["business_id"].(string)
	if !ok {
		return uuid.Nil, domain.ErrUnauthenticated
	}
	businessID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthenticated
	}

	repo, err := s.uow.BusinessRepository()
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := repo.Get(ctx, businessID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return uuid.Nil, domain.ErrUnauthenticated
		}
		return uuid.Nil, err
	}
	return businessID, nil
}

// GenerateToken signs a token for businessID valid for the configured expiry.
func (s *JWTStrategy) GenerateToken(businessID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"business_id": businessID.String(),
		"iat":         time.Now().Unix(),
	}
	if s.cfg.Expiry > 0 {
		claims["exp"] = time.Now().Add(s.cfg.Expiry).Unix()
	}
	if s.cfg.Issuer != "" {
		claims["iss"] = s.cfg.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
}
