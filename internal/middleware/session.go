package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"objektbetreuer-backend/internal/application/identity"
	"objektbetreuer-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionConfig for the Redis-backed cookie session.
type SessionConfig struct {
	Secret            string
	RedisURL          string
	AllowCrossSiteDev bool
	IsProduction      bool
	CookieDomain      string
}

const (
	SessionCookieName = "obp.sid"
	sessionMaxAge     = 24 * time.Hour

	localSessionData = "session_data"
	localSessionID   = "session_id"
)

// SessionUser is the shape stored in the session under "user".
type SessionUser struct {
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	CompanyID   *string `json:"company_id"`
}

// Session connects to Redis and returns the session middleware with its client.
func Session(cfg SessionConfig) (fiber.Handler, *redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opt)
	return SessionStore(rdb), rdb, nil
}

// SessionStore loads the session named by the cookie into Locals and saves it
// back after the handler ran. Cookie values are "s:<id>" or "s:<id>.<sig>".
func SessionStore(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies(SessionCookieName)
		if strings.HasPrefix(sessionID, "s:") {
			parts := strings.SplitN(sessionID[2:], ".", 2)
			sessionID = parts[0]
		}

		var data map[string]interface{}
		if sessionID != "" {
			b, err := rdb.Get(c.UserContext(), identity.SessionKeyPrefix+sessionID).Bytes()
			if err == nil {
				_ = json.Unmarshal(b, &data)
			}
		}
		if data == nil {
			// unknown or destroyed session: do not resurrect it on save
			data = make(map[string]interface{})
			sessionID = ""
		}

		c.Locals(localSessionData, data)
		if u, ok := data["user"]; ok {
			c.Locals(userLocal, u)
		} else {
			c.Locals(userLocal, nil)
		}
		c.Locals(localSessionID, sessionID)

		if err := c.Next(); err != nil {
			return err
		}

		if sid, _ := c.Locals(localSessionID).(string); sid != "" {
			updated, _ := c.Locals(localSessionData).(map[string]interface{})
			if len(updated) > 0 {
				b, _ := json.Marshal(updated)
				rdb.Set(context.Background(), identity.SessionKeyPrefix+sid, b, sessionMaxAge)
			}
		}
		return nil
	}
}

// GetSessionID returns the current session ID from context (for login/logout).
func GetSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(localSessionID).(string)
	return sid
}

// SetSessionUser sets the user in the session and marks session for save.
// Call after login/register; use RegenerateSessionID first to get a new id.
func SetSessionUser(c *fiber.Ctx, user SessionUser) {
	data, _ := c.Locals(localSessionData).(map[string]interface{})
	if data == nil {
		data = make(map[string]interface{})
	}
	data["user"] = map[string]interface{}{
		"user_id":      user.UserID,
		"display_name": user.DisplayName,
		"email":        user.Email,
		"role":         user.Role,
		"company_id":   user.CompanyID,
	}
	c.Locals(localSessionData, data)
	c.Locals(userLocal, data["user"])
}

// RegenerateSessionID creates a new session ID and sets it in Locals (cookie set by handler).
func RegenerateSessionID(c *fiber.Ctx) string {
	newID := uuid.New().String()
	c.Locals(localSessionID, newID)
	return newID
}

// StartSession signs u in on a fresh session id: the session user is stored,
// the id is added to the user's session index and the cookie is set.
func StartSession(c *fiber.Ctx, rdb *redis.Client, cfg SessionConfig, u *domain.AppUser) error {
	sid := RegenerateSessionID(c)
	RefreshSessionUser(c, u)
	if err := identity.TrackSession(c.UserContext(), rdb, u.UserID.String(), sid); err != nil {
		return err
	}
	cookie := SessionCookieConfig(cfg)
	cookie.Value = "s:" + sid
	c.Cookie(&cookie)
	c.Locals(principalLocal, u.UserID)
	return nil
}

// RefreshSessionUser rewrites the session user from the profile u.
func RefreshSessionUser(c *fiber.Ctx, u *domain.AppUser) {
	var companyID *string
	if cid := u.TenantID(); cid != uuid.Nil {
		s := cid.String()
		companyID = &s
	}
	SetSessionUser(c, SessionUser{
		UserID:      u.UserID.String(),
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Role:        u.Role,
		CompanyID:   companyID,
	})
}

// DestroySession clears the session from Locals and Redis and expires the cookie.
func DestroySession(c *fiber.Ctx, rdb *redis.Client, cfg SessionConfig) {
	sid := GetSessionID(c)
	if sid != "" && rdb != nil {
		ctx := c.UserContext()
		if userID := SessionUserID(c); userID != "" {
			identity.UntrackSession(ctx, rdb, userID, sid)
		}
		rdb.Del(ctx, identity.SessionKeyPrefix+sid)
	}
	c.Locals(localSessionData, make(map[string]interface{}))
	c.Locals(localSessionID, "")
	c.Locals(userLocal, nil)

	cookie := SessionCookieConfig(cfg)
	cookie.MaxAge = -1
	c.Cookie(&cookie)
}

// SessionUserID returns the user id stored in the session, or "".
func SessionUserID(c *fiber.Ctx) string {
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := m["user_id"].(string)
	return id
}

// SessionCookieConfig returns the cookie options used for SetCookie/ClearCookie.
func SessionCookieConfig(cfg SessionConfig) fiber.Cookie {
	sameSite := "Lax"
	if cfg.AllowCrossSiteDev {
		sameSite = "None"
	}
	secure := cfg.IsProduction || cfg.AllowCrossSiteDev
	return fiber.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   int(sessionMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}
}
