package router

import (
	"context"

	acctsvc "objektbetreuer-backend/internal/application/account"
	apptsvc "objektbetreuer-backend/internal/application/appointments"
	emailsvc "objektbetreuer-backend/internal/application/emails"
	empsvc "objektbetreuer-backend/internal/application/employees"
	"objektbetreuer-backend/internal/application/identity"
	invsvc "objektbetreuer-backend/internal/application/invitations"
	jobsvc "objektbetreuer-backend/internal/application/jobs"
	livesvc "objektbetreuer-backend/internal/application/live"
	propsvc "objektbetreuer-backend/internal/application/properties"
	uploadsvc "objektbetreuer-backend/internal/application/uploads"
	"objektbetreuer-backend/internal/config"
	"objektbetreuer-backend/internal/infrastructure/database"
	accounthandler "objektbetreuer-backend/internal/interfaces/handlers/account"
	appthandler "objektbetreuer-backend/internal/interfaces/handlers/appointments"
	authhandler "objektbetreuer-backend/internal/interfaces/handlers/auth"
	emphandler "objektbetreuer-backend/internal/interfaces/handlers/employees"
	healthhandler "objektbetreuer-backend/internal/interfaces/handlers/health"
	invhandler "objektbetreuer-backend/internal/interfaces/handlers/invitations"
	jobhandler "objektbetreuer-backend/internal/interfaces/handlers/jobs"
	livehandler "objektbetreuer-backend/internal/interfaces/handlers/live"
	prophandler "objektbetreuer-backend/internal/interfaces/handlers/properties"
	"objektbetreuer-backend/internal/middleware"
	"objektbetreuer-backend/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateApp wires configuration, stores, services and routes into a Fiber app.
// Without a database only the health endpoints are mounted.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
		CookieDomain:      cfg.CookieDomain,
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, nil, nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.NewErrorHandler(rdb),
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(sessionHandler)
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	if cfg.DatabaseURL == "" {
		log.Warn().Msg("No database URL configured, serving health endpoints only")
		return app, nil, rdb, nil
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	hh.DB = &gormDBPinger{db: db}

	// Changes go through Redis so every instance refreshes its own feeds.
	hub := livesvc.NewHub()
	var changes livesvc.Publisher = hub
	bridge := &livesvc.RedisBridge{Rdb: rdb, Hub: hub}
	if err := bridge.Start(context.Background()); err != nil {
		log.Warn().Err(err).Msg("live: redis bridge unavailable, changes stay on this instance")
	} else {
		changes = bridge
	}

	var mailer emailsvc.Sender = &emailsvc.BrevoClient{APIKey: cfg.BrevoAPIKey, MailFrom: cfg.MailFrom, AppURL: cfg.AppBaseURL}

	provider := &identity.LocalProvider{DB: db, Rdb: rdb, Mailer: mailer, ResetBaseURL: cfg.AppBaseURL}
	resolver := &identity.Resolver{DB: db, Rdb: rdb, TTL: cfg.ProfileCacheTTL}
	provider.OnPrincipalChanged(func(ev identity.PrincipalEvent) {
		if ev.Kind != identity.EventSignedIn {
			resolver.Invalidate(context.Background(), ev.PrincipalID)
		}
	})
	tokens := &identity.TokenService{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL}

	accounts := &acctsvc.Service{DB: db, Identity: provider, Mailer: mailer, Profiles: resolver}
	properties := &propsvc.Service{DB: db, Changes: changes}
	jobs := &jobsvc.Service{DB: db, Changes: changes}
	appointments := &apptsvc.Service{DB: db, Changes: changes}
	employees := &empsvc.Service{DB: db, Rdb: rdb, Profiles: resolver, Changes: changes}
	invitations := &invsvc.Service{
		DB:         db,
		Identity:   provider,
		Mailer:     mailer,
		Tokens:     invsvc.NewTokenSource(cfg.InviteSecureTokens),
		Changes:    changes,
		AppBaseURL: cfg.AppBaseURL,
	}
	uploads := &uploadsvc.Service{
		Client:      &uploadsvc.HTTPClient{BaseURL: cfg.SupabaseURL, SecretKey: cfg.SupabaseSecretKey},
		SupabaseURL: cfg.SupabaseURL,
	}

	authed := []fiber.Handler{
		middleware.BearerAuth(tokens),
		middleware.RequireAuth(),
		middleware.RequireProfile(resolver, rdb, sessionCfg),
	}
	view := func(category string) fiber.Handler {
		return middleware.RequirePermission(category, constants.ActionView)
	}
	edit := func(category string) fiber.Handler {
		return middleware.RequirePermission(category, constants.ActionEdit)
	}

	// Auth
	ah := &authhandler.Handlers{Accounts: accounts, Provider: provider, Profiles: resolver, Tokens: tokens, Rdb: rdb, Config: sessionCfg}
	ag := app.Group("/api/v1/auth")
	ag.Post("/register", ah.Register)
	ag.Post("/login", ah.Login)
	ag.Post("/token", ah.Token)
	ag.Post("/password-reset", ah.PasswordReset)
	ag.Post("/password-reset/confirm", ah.ConfirmPasswordReset)
	ag.Delete("/logout", ah.Logout)
	ag.Get("/me", append(authed, ah.Me)...)

	// Account
	acch := &accounthandler.Handlers{Service: accounts}
	accg := app.Group("/api/v1/account", authed...)
	accg.Get("/", acch.Get)
	accg.Patch("/", acch.Update)

	// Properties
	ph := &prophandler.Handlers{Service: properties, Uploads: uploads}
	pg := app.Group("/api/v1/properties", authed...)
	pg.Get("/", view(constants.CategoryProperties), ph.List)
	pg.Post("/", edit(constants.CategoryProperties), ph.Create)
	pg.Get("/:id", view(constants.CategoryProperties), ph.Get)
	pg.Patch("/:id", edit(constants.CategoryProperties), ph.Update)
	pg.Delete("/:id", edit(constants.CategoryProperties), ph.Delete)
	pg.Post("/:id/image-upload", edit(constants.CategoryProperties), ph.ImageUpload)
	pg.Post("/:id/images", edit(constants.CategoryProperties), ph.AttachImage)

	// Jobs
	jh := &jobhandler.Handlers{Service: jobs}
	jg := app.Group("/api/v1/jobs", authed...)
	jg.Get("/", view(constants.CategoryJobs), jh.List)
	jg.Post("/", edit(constants.CategoryJobs), jh.Create)
	jg.Get("/:id", view(constants.CategoryJobs), jh.Get)
	jg.Patch("/:id", edit(constants.CategoryJobs), jh.Update)
	jg.Delete("/:id", edit(constants.CategoryJobs), jh.Delete)
	jg.Post("/:id/status", edit(constants.CategoryJobs), jh.ChangeStatus)

	// Appointments
	aph := &appthandler.Handlers{Service: appointments}
	apg := app.Group("/api/v1/appointments", authed...)
	apg.Get("/", view(constants.CategoryAppointments), aph.List)
	apg.Post("/", edit(constants.CategoryAppointments), aph.Create)
	apg.Get("/:id", view(constants.CategoryAppointments), aph.Get)
	apg.Patch("/:id", edit(constants.CategoryAppointments), aph.Update)
	apg.Delete("/:id", edit(constants.CategoryAppointments), aph.Delete)

	// Employees: reads are open to the tenant for assignment pickers, writes are company-only.
	eh := &emphandler.Handlers{Service: employees}
	eg := app.Group("/api/v1/employees", authed...)
	eg.Get("/", eh.List)
	eg.Get("/:id", eh.Get)
	eg.Patch("/:id/permissions", middleware.RequireCompany(), eh.UpdatePermissions)
	eg.Patch("/:id/active", middleware.RequireCompany(), eh.SetActive)

	// Invitations
	ih := &invhandler.Handlers{Service: invitations, Rdb: rdb, Config: sessionCfg}
	app.Post("/api/v1/invitations/public/check-token", ih.CheckToken)
	app.Post("/api/v1/invitations/public/accept", ih.Accept)
	ig := app.Group("/api/v1/invitations", append(authed, middleware.RequireCompany())...)
	ig.Get("/", ih.List)
	ig.Post("/", ih.Create)
	ig.Patch("/:id/revoke", ih.Revoke)
	ig.Post("/:id/resend", ih.Resend)

	// Live queries
	lh := &livehandler.Handlers{
		Hub:          hub,
		Profiles:     resolver,
		Properties:   properties,
		Jobs:         jobs,
		Appointments: appointments,
		Employees:    employees,
		Invitations:  invitations,
	}
	app.Get("/api/v1/live/:entity", append(authed, lh.Subscribe)...)

	return app, db, rdb, nil
}
