package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/aidiag/internal/cache"
	"github.com/pavelanni/aidiag/internal/diagnosis"
	"github.com/pavelanni/aidiag/internal/gas"
	"github.com/pavelanni/aidiag/internal/handler"
	"github.com/pavelanni/aidiag/internal/health"
	appI18n "github.com/pavelanni/aidiag/internal/i18n"
	"github.com/pavelanni/aidiag/internal/narrative"
	"github.com/pavelanni/aidiag/internal/narrative/prompts"
	"github.com/pavelanni/aidiag/internal/scoring"
	"github.com/pavelanni/aidiag/internal/store"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP diagnosis server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /diagnosis-api)")
	f.StringP("lang", "l", "ko", "Default report language (ko, en)")
	f.String("scheme", scoring.Weighted.Name, "Scoring scheme (weighted, sectioned)")
	f.String("catalog", "", "Question catalog name or .json path (default: the scheme's catalog)")
	f.String("access-policy", string(diagnosis.IdentifierOnly), "What a reader must present: id or id+email")
	f.String("store", "gas", "System of record (gas, sqlite)")
	f.String("db", "aidiag.db", "SQLite database path (admins, metadata, and diagnoses when --store=sqlite)")
	f.String("gas-url", "", "Apps Script web app URL")
	f.String("gas-token", "", "Shared token sent to the Apps Script web app")
	f.String("result-url", "", "Public result page linked from notification emails")
	f.String("admin-email", "", "Address copied on notification emails")
	f.String("admin-username", "admin", "Username of the seeded admin account")
	f.String("admin-password", "", "Initial admin password (or set AIDIAG_ADMIN_PASSWORD)")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty uses the OpenAI default)")
	f.String("llm-key", "", "API key for the narrative model")
	f.String("llm-model", "", "Narrative model name (empty disables AI reports)")
	f.String("narrative-variant", string(prompts.Standard), "Narrative prompt variant (concise, standard, detailed)")
	f.Duration("store-timeout", 10*time.Second, "Deadline for one data store call")
	f.Duration("notify-timeout", 10*time.Second, "Deadline for sending a notification")
	f.Duration("narrative-timeout", 5*time.Minute, "Deadline for generating one narrative")
	f.Duration("upload-timeout", time.Minute, "Deadline for hosting one report")
	f.Duration("request-timeout", 90*time.Second, "Deadline for one HTTP request")
	f.String("redis-addr", "", "Redis address for the shared cache (empty uses an in-process cache)")
	f.Duration("cache-ttl", cache.DefaultTTL, "How long cached results and narratives live")
	f.Duration("health-interval", time.Minute, "How often collaborators are probed")
	f.Int("memory-limit-mb", 512, "Heap size reported as unhealthy (0 disables the check)")
	addLogFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	scheme, err := scoring.SchemeByName(v.GetString("scheme"))
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(v.GetString("catalog"), scheme)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if catalog.Name() != scheme.CatalogName {
		slog.Warn("catalog was not designed for this scheme", "catalog", catalog.Name(), "scheme", scheme.Name)
	}
	policy, err := diagnosis.ParseAccessPolicy(v.GetString("access-policy"))
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := seedAdmin(ctx, db, v.GetString("admin-username"), v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := checkInstance(ctx, db, scheme, catalog); err != nil {
		return fmt.Errorf("check instance info: %w", err)
	}

	storeKind := strings.ToLower(v.GetString("store"))
	deps := diagnosis.Deps{}
	checks := []health.Check{
		health.MemoryCheck(v.GetInt("memory-limit-mb"), nil),
		health.PingCheck("sqlite", storeKind == "sqlite", db),
	}

	var script *gas.Client
	if url := v.GetString("gas-url"); url != "" {
		script, err = gas.New(gas.Config{
			URL:        url,
			Token:      v.GetString("gas-token"),
			AdminEmail: v.GetString("admin-email"),
			ResultURL:  v.GetString("result-url"),
		})
		if err != nil {
			return fmt.Errorf("create apps script client: %w", err)
		}
		deps.Notifier = script
		deps.Files = script
		checks = append(checks,
			health.ConfiguredCheck("gas-token", true, v.GetString("gas-token") != ""),
			health.PingCheck("apps-script", storeKind == "gas", script),
		)
	}
	checks = append(checks, health.ConfiguredCheck("notification", false, deps.Notifier != nil))

	switch storeKind {
	case "gas":
		if script == nil {
			return errors.New("--store=gas requires --gas-url")
		}
		deps.Store = script
	case "sqlite":
		deps.Store = db
	default:
		return fmt.Errorf("unknown store %q (want gas or sqlite)", storeKind)
	}

	if llmModel := v.GetString("llm-model"); llmModel != "" {
		client, err := narrative.New(narrative.Config{
			BaseURL:  v.GetString("llm-url"),
			APIKey:   v.GetString("llm-key"),
			Model:    llmModel,
			Variant:  strings.ToLower(strings.TrimSpace(v.GetString("narrative-variant"))),
			Language: reportLanguage(lang),
		})
		if err != nil {
			return fmt.Errorf("create narrative client: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := client.Ping(pingCtx); err != nil {
			slog.Warn("narrative endpoint not reachable, AI reports may fail", "url", v.GetString("llm-url"), "error", err)
		} else {
			slog.Info("narrative endpoint OK", "url", v.GetString("llm-url"), "model", llmModel)
		}
		cancel()
		deps.Narrative = client
		checks = append(checks, health.PingCheck("narrative", false, client))
	}

	deps.Cache = openCache(ctx, v.GetString("redis-addr"), v.GetDuration("cache-ttl"), &checks)
	defer deps.Cache.Close()

	svc, err := diagnosis.NewService(diagnosis.Config{
		Catalog:          catalog,
		Scheme:           scheme,
		AccessPolicy:     policy,
		Language:         lang,
		StoreTimeout:     v.GetDuration("store-timeout"),
		NotifyTimeout:    v.GetDuration("notify-timeout"),
		NarrativeTimeout: v.GetDuration("narrative-timeout"),
		UploadTimeout:    v.GetDuration("upload-timeout"),
	}, deps)
	if err != nil {
		return fmt.Errorf("create diagnosis service: %w", err)
	}

	mon := health.New(health.Config{Interval: v.GetDuration("health-interval"), Checks: checks})
	mon.Start(ctx)
	defer mon.Stop()

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	h := handler.New(svc, db, mon, handler.Config{BasePath: basePath, Version: version})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(v.GetDuration("request-timeout")))
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	slog.Info("starting server",
		"addr", addr,
		"version", version,
		"lang", lang,
		"scheme", scheme.Name,
		"catalog", catalog.Name(),
		"store", storeKind,
		"access_policy", policy,
		"narrative", deps.Narrative != nil,
		"notifications", deps.Notifier != nil,
		"base_path", basePath,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	if err := svc.Close(shutdownCtx); err != nil {
		slog.Warn("background report jobs cancelled", "error", err)
	}
	return nil
}

// openCache connects to Redis when addr is set and falls back to an
// in-process cache when it is not reachable.
func openCache(ctx context.Context, addr string, ttl time.Duration, checks *[]health.Check) cache.Cache {
	if addr == "" {
		return cache.NewMemory(ttl, 10000)
	}
	dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rc, err := cache.NewRedis(dialCtx, addr, ttl)
	if err != nil {
		slog.Warn("redis unavailable, using in-process cache", "addr", addr, "error", err)
		return cache.NewMemory(ttl, 10000)
	}
	slog.Info("using redis cache", "addr", addr, "ttl", ttl)
	*checks = append(*checks, health.PingCheck("redis", false, rc))
	return rc
}

func reportLanguage(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "en") {
		return "English"
	}
	return "Korean"
}

func seedAdmin(ctx context.Context, db *store.Store, username, password string) error {
	count, err := db.AdminCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		slog.Warn("no admin account and no admin password set; admin endpoints will reject every request",
			"hint", "set --admin-password or AIDIAG_ADMIN_PASSWORD")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := db.CreateAdmin(ctx, username, string(hash)); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	slog.Info("seeded default admin", "username", username)
	return nil
}
