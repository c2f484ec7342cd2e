package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"medbridge/internal/domain/identity"
	"medbridge/internal/redis"
	"medbridge/internal/repository"
	medbridge_errors "medbridge/pkg/errors"
	"medbridge/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// IdentityResolver turns an opaque user id into a role-bearing identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) (identity.Identity, error)
}

// IdentityService resolves identities from the local user mirror, fronted
// by an optional Redis cache. Concurrent misses for one id share a lookup.
type IdentityService struct {
	users  repository.UserRepository
	cache  *redis.IdentityCache
	logger *logger.Logger
	group  singleflight.Group
}

func NewIdentityService(users repository.UserRepository, cache *redis.IdentityCache, log *logger.Logger) *IdentityService {
	return &IdentityService{users: users, cache: cache, logger: log.With(zap.String("component", "identity"))}
}

func (s *IdentityService) Resolve(ctx context.Context, userID string) (identity.Identity, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return identity.Identity{}, medbridge_errors.InvalidInput("user id is required")
	}

	if s.cache != nil {
		id, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.Warn(ctx, "identity cache read failed", zap.String("lookup_id", userID), zap.Error(err))
		} else if ok {
			return id, nil
		}
	}

	v, err, _ := s.group.Do(userID, func() (interface{}, error) {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, medbridge_errors.ErrNotFound) {
				return identity.Identity{}, medbridge_errors.NotFound("user not found")
			}
			return identity.Identity{}, medbridge_errors.Dependency("identity lookup failed", err)
		}
		id, ok := identity.FromUser(u)
		if !ok {
			return identity.Identity{}, medbridge_errors.NotFound("user has no usable role")
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, id); err != nil {
				s.logger.Warn(ctx, "identity cache write failed", zap.String("lookup_id", userID), zap.Error(err))
			}
		}
		return id, nil
	})
	if err != nil {
		return identity.Identity{}, err
	}
	return v.(identity.Identity), nil
}

// ResolveMany resolves ids in parallel. Unknown users are left out of the
// result rather than failing the batch.
func (s *IdentityService) ResolveMany(ctx context.Context, userIDs []string) (map[string]identity.Identity, error) {
	out := make(map[string]identity.Identity, len(userIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		id := id
		g.Go(func() error {
			resolved, err := s.Resolve(gctx, id)
			if errors.Is(err, medbridge_errors.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = resolved
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePushToken records the device token for a user. An empty token
// clears it.
func (s *IdentityService) UpdatePushToken(ctx context.Context, userID, token string) error {
	var value *string
	if t := strings.TrimSpace(token); t != "" {
		value = &t
	}
	if err := s.users.UpdatePushToken(ctx, userID, value); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.logger.Warn(ctx, "identity cache invalidate failed", zap.String("lookup_id", userID), zap.Error(err))
		}
	}
	return nil
}
