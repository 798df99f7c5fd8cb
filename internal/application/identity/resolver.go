package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"objektbetreuer-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	profileCachePrefix     = "profile:"
	defaultProfileCacheTTL = 10 * time.Minute
)

// Resolver maps a principal to its application profile.
//
// Resolve fails closed: a missing profile, an inactive profile and a lookup
// error all resolve to nil, which callers treat as "not authorized".
type Resolver struct {
	DB  *gorm.DB
	Rdb *redis.Client
	TTL time.Duration
	Now func() time.Time

	group singleflight.Group
}

func (r *Resolver) ttl() time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return defaultProfileCacheTTL
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve looks the profile up by primary key. Concurrent calls for the same
// principal share one query.
func (r *Resolver) Resolve(ctx context.Context, principalID uuid.UUID) *domain.AppUser {
	if principalID == uuid.Nil {
		return nil
	}
	v, _, _ := r.group.Do(principalID.String(), func() (interface{}, error) {
		return r.lookup(ctx, principalID), nil
	})
	u, _ := v.(*domain.AppUser)
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

func (r *Resolver) lookup(ctx context.Context, id uuid.UUID) *domain.AppUser {
	var u domain.AppUser
	err := r.DB.WithContext(ctx).Where("user_id = ?", id).First(&u).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Err(err).Str("user_id", id.String()).Msg("identity: profile lookup failed")
		}
		r.Invalidate(ctx, id)
		return nil
	}
	if !u.Active {
		r.Invalidate(ctx, id)
		return nil
	}
	r.store(ctx, &u)
	return &u
}

func (r *Resolver) store(ctx context.Context, u *domain.AppUser) {
	if r.Rdb == nil {
		return
	}
	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := r.Rdb.Set(ctx, profileCachePrefix+u.UserID.String(), b, r.ttl()).Err(); err != nil {
		log.Warn().Err(err).Msg("identity: profile cache write failed")
	}
}

// Cached returns the last resolved profile without touching the database, or
// nil. The result may be stale and is meant for rendering only; authorization
// decisions use Current.
func (r *Resolver) Cached(ctx context.Context, principalID uuid.UUID) *domain.AppUser {
	if r.Rdb == nil {
		return nil
	}
	b, err := r.Rdb.Get(ctx, profileCachePrefix+principalID.String()).Bytes()
	if err != nil {
		return nil
	}
	var u domain.AppUser
	if err := json.Unmarshal(b, &u); err != nil {
		return nil
	}
	return &u
}

// Current is the profile authorization decisions use. It always asks the
// database: a lookup racing a deactivation may still write the old row to the
// cache, so the cache is never trusted to grant access.
func (r *Resolver) Current(ctx context.Context, principalID uuid.UUID) *domain.AppUser {
	return r.Resolve(ctx, principalID)
}

// Invalidate drops the cached profile of principalID.
func (r *Resolver) Invalidate(ctx context.Context, principalID uuid.UUID) {
	if r.Rdb == nil {
		return
	}
	r.Rdb.Del(ctx, profileCachePrefix+principalID.String())
}

// RecordLogin stamps last_login_at.
func (r *Resolver) RecordLogin(ctx context.Context, principalID uuid.UUID) error {
	now := r.now()
	err := r.DB.WithContext(ctx).Model(&domain.AppUser{}).Where("user_id = ?", principalID).
		Updates(map[string]interface{}{"last_login_at": now}).Error
	if err != nil {
		return err
	}
	r.Invalidate(ctx, principalID)
	return nil
}
