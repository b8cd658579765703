package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cmskit/oidc-login/pkg/config"
	"github.com/cmskit/oidc-login/pkg/notification"
	"github.com/cmskit/oidc-login/pkg/oidcflow"
	"github.com/cmskit/oidc-login/pkg/oidcstate"
	"github.com/cmskit/oidc-login/pkg/provider"
	"github.com/cmskit/oidc-login/pkg/resolver"
	"github.com/cmskit/oidc-login/pkg/schema"
	"github.com/cmskit/oidc-login/pkg/session"
	"github.com/cmskit/oidc-login/pkg/userstore"
)

// userFields is the default user-collection schema. Hosts with their own
// collections register their fields here.
var userFields = []schema.Field{
	schema.Leaf("name", schema.KindText, false),
	schema.Leaf("roles", schema.KindSelect, true),
	schema.Group("profile",
		schema.Leaf("bio", schema.KindText, true),
	),
}

func main() {
	cfg := config.Config{}
	cleanenv.ReadEnv(&cfg)

	providerConfig := cfg.OIDC.ProviderConfig()
	if err := providerConfig.Validate(); err != nil {
		slog.Error("Invalid provider configuration", "err", err)
		os.Exit(-1)
	}

	callbackPath, err := cfg.OIDC.ResolveCallbackPath()
	if err != nil {
		slog.Error("Failed to resolve callback path", "err", err)
		os.Exit(-1)
	}

	var store userstore.Store
	if cfg.Db.URL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Db.URL)
		if err != nil {
			slog.Error("Failed creating dbpool", "err", err)
			os.Exit(-1)
		}
		defer pool.Close()
		store = userstore.NewPostgresStore(pool)
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory user store")
		store = userstore.NewInMemoryStore()
	}

	resolverService := resolver.NewService(store, cfg.App.UserCollectionSlug)

	tokenClient := provider.NewTokenClient(providerConfig)
	userInfoClient := provider.NewUserInfoClient(providerConfig)

	flowOpts := []oidcflow.ServiceOption{
		oidcflow.WithUserinfoMapper(userInfoClient.Fetch),
		oidcflow.WithFields(userFields),
	}

	if cfg.SMTP.Host != "" {
		notifier, err := notification.NewEmailNotifier(notification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			slog.Error("Failed to create email notifier", "err", err)
			os.Exit(-1)
		}
		flowOpts = append(flowOpts, oidcflow.WithNotifier(notifier))
	}

	flow := oidcflow.NewService(
		providerConfig,
		tokenClient,
		resolverService,
		cfg.App.UserCollectionSlug,
		flowOpts...,
	)

	states := oidcstate.NewIssuer(
		oidcstate.WithTTL(cfg.OIDC.StateTTL()),
		oidcstate.WithSecure(cfg.Session.CookieSecure),
	)

	sessions := session.NewIssuer(
		cfg.Session.Secret,
		cfg.Session.CookiePrefix,
		session.WithTTL(cfg.Session.TokenTTL()),
		session.WithCookiePolicy(cfg.Session.CookiePolicy()),
	)

	handle := oidcflow.NewHandle(flow, states, sessions,
		oidcflow.WithRedirectPathAfterLogin(cfg.App.RedirectPathAfterLogin),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})

	handle.Register(r, cfg.OIDC.InitPath, callbackPath)

	tokenAuth := session.NewAuth(cfg.Session.Secret)
	r.Group(func(r chi.Router) {
		r.Use(session.Verifier(tokenAuth, sessions.CookieName()))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				slog.Error("Failed getting session claims", "err", err)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			render.JSON(w, r, claims)
		})
	})

	slog.Info("Starting server", "addr", cfg.App.Addr, "init_path", cfg.OIDC.InitPath, "callback_path", callbackPath)
	if err := http.ListenAndServe(cfg.App.Addr, r); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(-1)
	}
}
