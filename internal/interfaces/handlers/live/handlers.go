// Package live streams live-query feeds to clients as Server-Sent Events.
package live

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	apptsvc "objektbetreuer-backend/internal/application/appointments"
	"objektbetreuer-backend/internal/application/access"
	empsvc "objektbetreuer-backend/internal/application/employees"
	"objektbetreuer-backend/internal/application/identity"
	invsvc "objektbetreuer-backend/internal/application/invitations"
	jobsvc "objektbetreuer-backend/internal/application/jobs"
	livesvc "objektbetreuer-backend/internal/application/live"
	propsvc "objektbetreuer-backend/internal/application/properties"
	"objektbetreuer-backend/internal/domain"
	"objektbetreuer-backend/internal/interfaces/handlers/appointments"
	"objektbetreuer-backend/internal/interfaces/handlers/jobs"
	"objektbetreuer-backend/internal/interfaces/handlers/properties"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/pkg/constants"
	"objektbetreuer-backend/internal/pkg/response"
	"objektbetreuer-backend/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const defaultHeartbeat = 25 * time.Second

var errUnknownEntity = apperr.New(apperr.KindNotFound, "not_found", "Unknown live entity")

type Handlers struct {
	Hub          *livesvc.Hub
	Profiles     middleware.ProfileResolver
	Properties   *propsvc.Service
	Jobs         *jobsvc.Service
	Appointments *apptsvc.Service
	Employees    *empsvc.Service
	Invitations  *invsvc.Service
	// Heartbeat is the interval of keep-alive comments; zero means 25s.
	Heartbeat time.Duration
}

// feedDef is one resolved subscription request.
type feedDef struct {
	key   livesvc.Key
	fetch livesvc.Fetch
	check func(u *domain.AppUser) error
}

func viewCheck(category string) func(u *domain.AppUser) error {
	return func(u *domain.AppUser) error {
		return access.Require(u, category, constants.ActionView)
	}
}

func (h *Handlers) feed(c *fiber.Ctx, scope tenant.Scope) (*feedDef, error) {
	entity := c.Params("entity")
	key := livesvc.Key{Entity: entity, CompanyID: scope.CompanyID()}
	switch entity {
	case livesvc.EntityProperties:
		f := properties.Filter(c)
		key.Filter = f.Signature()
		return &feedDef{key: key, check: viewCheck(constants.CategoryProperties), fetch: func(ctx context.Context) (interface{}, error) {
			return h.Properties.List(ctx, scope, f)
		}}, nil
	case livesvc.EntityJobs:
		f, err := jobs.Filter(c)
		if err != nil {
			return nil, err
		}
		key.Filter = f.Signature()
		return &feedDef{key: key, check: viewCheck(constants.CategoryJobs), fetch: func(ctx context.Context) (interface{}, error) {
			return h.Jobs.List(ctx, scope, f)
		}}, nil
	case livesvc.EntityAppointments:
		f, err := appointments.Filter(c)
		if err != nil {
			return nil, err
		}
		key.Filter = f.Signature()
		return &feedDef{key: key, check: viewCheck(constants.CategoryAppointments), fetch: func(ctx context.Context) (interface{}, error) {
			return h.Appointments.List(ctx, scope, f)
		}}, nil
	case livesvc.EntityEmployees:
		f := empsvc.ListFilter{IncludeInactive: c.QueryBool("include_inactive")}
		key.Filter = f.Signature()
		return &feedDef{key: key, check: access.RequireCompany, fetch: func(ctx context.Context) (interface{}, error) {
			return h.Employees.List(ctx, scope, f)
		}}, nil
	case livesvc.EntityInvitations:
		status := c.Query("status")
		key.Filter = livesvc.FilterSignature(map[string]string{"status": status})
		return &feedDef{key: key, check: access.RequireCompany, fetch: func(ctx context.Context) (interface{}, error) {
			return h.Invitations.List(ctx, scope, status)
		}}, nil
	}
	return nil, errUnknownEntity
}

// Subscribe GET /api/v1/live/:entity streams the full result set on connect
// and again after every change. Authorization failures are answered before the
// stream opens; afterwards every delivery re-checks the caller's profile.
func (h *Handlers) Subscribe(c *fiber.Ctx) error {
	profile := middleware.Profile(c)
	scope, err := tenant.FromUser(profile)
	if err != nil {
		return response.FromError(c, err)
	}
	feed, err := h.feed(c, scope)
	if err != nil {
		return response.FromError(c, err)
	}
	if err := feed.check(profile); err != nil {
		return response.FromError(c, err)
	}

	principal := profile.UserID
	guard := func(ctx context.Context) error {
		u := h.Profiles.Current(ctx, principal)
		if u == nil {
			return identity.ErrSessionRevoked
		}
		return feed.check(u)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log.Info().Str("entity", feed.key.Entity).Str("company_id", feed.key.CompanyID.String()).
		Str("user_id", principal.String()).Msg("live: stream opened")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		h.Stream(ctx, w, feed.key, feed.fetch, guard)
		log.Info().Str("entity", feed.key.Entity).Str("user_id", principal.String()).Msg("live: stream closed")
	})
	return nil
}

type event struct {
	name string
	data interface{}
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stream subscribes to key and writes events to w until ctx is done, the
// client goes away or the caller loses access. Only the newest undelivered
// snapshot is kept; a slow client skips intermediate ones.
func (h *Handlers) Stream(ctx context.Context, w *bufio.Writer, key livesvc.Key, fetch livesvc.Fetch, guard func(context.Context) error) {
	events := make(chan event, 1)
	push := func(ev event) {
		for {
			select {
			case events <- ev:
				return
			default:
			}
			select {
			case <-events:
			default:
			}
		}
	}
	unsubscribe := h.Hub.Subscribe(ctx, key, fetch, livesvc.Listener{
		OnData: func(data interface{}) { push(event{name: "snapshot", data: data}) },
		OnError: func(err error) {
			push(event{name: "error", data: errorPayload{Code: apperr.CodeOf(err), Message: apperr.MessageOf(err)}})
		},
		Guard: guard,
	})
	defer unsubscribe()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.WriteString(": ping\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		case ev := <-events:
			if err := writeEvent(w, ev); err != nil {
				return
			}
			if p, ok := ev.data.(errorPayload); ok && p.Code != "unavailable" {
				// access is gone; the client has to re-authenticate
				return
			}
		}
	}
}

func writeEvent(w *bufio.Writer, ev event) error {
	b, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, b); err != nil {
		return err
	}
	return w.Flush()
}
