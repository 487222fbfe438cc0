package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ealmetes/HealthExtent/internal/audit"
	"github.com/ealmetes/HealthExtent/internal/caretransition"
	ctapi "github.com/ealmetes/HealthExtent/internal/caretransition/api"
	ctinfra "github.com/ealmetes/HealthExtent/internal/caretransition/infrastructure"
	"github.com/ealmetes/HealthExtent/internal/dashboard"
	"github.com/ealmetes/HealthExtent/internal/directory"
	"github.com/ealmetes/HealthExtent/internal/encounter"
	"github.com/ealmetes/HealthExtent/internal/hospital"
	"github.com/ealmetes/HealthExtent/internal/patient"
	"github.com/ealmetes/HealthExtent/internal/shared/auth"
	"github.com/ealmetes/HealthExtent/internal/shared/config"
	"github.com/ealmetes/HealthExtent/internal/shared/database"
	"github.com/ealmetes/HealthExtent/internal/shared/events"
	"github.com/ealmetes/HealthExtent/internal/shared/logging"
	"github.com/ealmetes/HealthExtent/internal/shared/metrics"
	secmiddleware "github.com/ealmetes/HealthExtent/internal/shared/middleware"
	"github.com/ealmetes/HealthExtent/internal/shared/sqlserver"
	"github.com/ealmetes/HealthExtent/internal/tcm"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

// App holds all application dependencies
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Clinical  *sqlserver.DB
	Directory *database.DB
	Bus       events.EventBus
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthextent",
		Short: "HealthExtent clinical integration and care transition API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending directory migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log)

			ctx := context.Background()
			db, err := database.New(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			return database.Migrate(ctx, db.Pool, logger)
		},
	}
}

func tokenCmd() *cobra.Command {
	var req auth.TokenRequest

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed development token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("token issuance is disabled in production")
			}

			resp, err := auth.IssueToken(cfg.Auth, req, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Println(resp.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "user id placed in the subject claim")
	cmd.Flags().IntVar(&req.TenantID, "tenant", 0, "tenant key")
	cmd.Flags().StringVar(&req.TenantCode, "tenant-code", "", "tenant code")
	cmd.Flags().StringSliceVar(&req.Roles, "role", nil, "role to grant (repeatable)")
	return cmd
}

func runServer() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg.Log)
	app := &App{Config: cfg, Logger: logger, Bus: events.NopBus{}}

	// Clinical store (optional - clinical routes are skipped without it)
	clinical, err := sqlserver.Open(ctx, cfg.SQLServer)
	if err != nil {
		logger.Warn().Err(err).Msg("SQL Server not available, running without clinical routes")
	} else {
		app.Clinical = clinical
		defer clinical.Close()
	}

	// Directory store (optional - accounts and members are skipped without it)
	dir, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Warn().Err(err).Msg("Directory database not available, running without accounts and members")
	} else {
		app.Directory = dir
		defer dir.Close()

		if err := database.Migrate(ctx, dir.Pool, logger); err != nil {
			logger.Warn().Err(err).Msg("Directory migration failed")
		}
	}

	// Event bus (optional - lifecycle events are dropped without it)
	if cfg.KurrentDB.Enabled {
		bus, err := events.NewEventBus(ctx, cfg.KurrentDB)
		if err != nil {
			logger.Warn().Err(err).Msg("KurrentDB not available, running without event streaming")
		} else {
			app.Bus = bus
			defer bus.Close()
			logger.Info().Str("host", cfg.KurrentDB.Host).Int("port", cfg.KurrentDB.Port).Msg("KurrentDB event bus initialized")
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newRouter(app),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info().Msg("Shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Server shutdown error")
		}
		close(done)
	}()

	logger.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Bool("auth", cfg.Auth.Enabled).
		Bool("clinical", app.Clinical != nil).
		Bool("directory", app.Directory != nil).
		Str("readmission_mode", string(cfg.TCM.ReadmissionMode)).
		Msg("HealthExtent API starting")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info().Msg("Server stopped")
	return nil
}

func newRouter(app *App) http.Handler {
	cfg := app.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(secmiddleware.RequestLogger(app.Logger))
	r.Use(secmiddleware.Recoverer(app.Logger))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.InputSanitizer)
	r.Use(metrics.Middleware)

	corsCfg := secmiddleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORS.AllowedOrigins
	r.Use(secmiddleware.CORS(corsCfg))
	r.Use(secmiddleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst).Middleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)

	if cfg.Auth.DevTokens {
		r.Post("/api/auth/token", auth.TokenHandler(cfg.Auth))
	}

	var names ctapi.NameResolver
	var dirSvc *directory.Service
	if app.Directory != nil {
		dirSvc = directory.NewService(directory.NewPostgresRepository(app.Directory.Pool), app.Bus)
		names = dirSvc
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(auth.Middleware(cfg.Auth))
		}
		guard := func(read, write auth.Permission) func(http.Handler) http.Handler {
			if !cfg.Auth.Enabled {
				return func(next http.Handler) http.Handler { return next }
			}
			return methodPermissions(read, write)
		}

		if app.Clinical != nil {
			encounters := encounter.NewSQLServerRepository(app.Clinical)
			transitions := ctinfra.NewSQLServerRepository(app.Clinical)
			ctService := caretransition.NewService(transitions, app.Bus)
			mode := tcm.ReadmissionMode(cfg.TCM.ReadmissionMode)

			r.With(guard(auth.PermPatientRead, auth.PermPatientWrite)).
				Mount("/patients", patient.NewHandler(patient.NewSQLServerRepository(app.Clinical)).Routes())
			r.With(guard(auth.PermEncounterRead, auth.PermEncounterWrite)).
				Mount("/encounters", encounter.NewHandler(encounters, ctService).Routes())
			r.With(guard(auth.PermAuditRead, auth.PermAuditWrite)).
				Mount("/audit", audit.NewHandler(audit.NewSQLServerRepository(app.Clinical)).Routes())
			r.With(guard(auth.PermPatientRead, auth.PermMemberManage)).
				Mount("/hospitals", hospital.NewHandler(hospital.NewSQLServerRepository(app.Clinical)).Routes())
			r.With(guard(auth.PermCareTransitionRead, auth.PermCareTransitionRead)).
				Mount("/caretransitions", ctapi.NewHandler(ctService, names).Routes())
			r.With(guard(auth.PermDashboardRead, auth.PermDashboardRead)).
				Mount("/dashboard", dashboard.NewHandler(encounters, transitions, names, mode).Routes())
		}

		if dirSvc != nil {
			h := directory.NewHandler(dirSvc)
			r.Mount("/accounts", h.AccountRoutes())
			r.Mount("/members", h.MemberRoutes())
		}
	})

	return r
}

// methodPermissions requires read for safe methods and write for everything else
func methodPermissions(read, write auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		readGate := auth.RequirePermissions(read)(next)
		writeGate := auth.RequirePermissions(write)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				readGate.ServeHTTP(w, r)
			default:
				writeGate.ServeHTTP(w, r)
			}
		})
	}
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "HealthExtent API",
		"version": version,
		"docs":    "/api",
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		check := func(name string, configured bool, health func() error) {
			if !configured {
				checks[name] = "not configured"
				return
			}
			if err := health(); err != nil {
				checks[name] = "not ready: " + err.Error()
				return
			}
			checks[name] = "ready"
		}

		check("sqlserver", app.Clinical != nil, func() error { return app.Clinical.Health(r.Context()) })
		check("directory", app.Directory != nil, func() error { return app.Directory.Health(r.Context()) })
		_, nop := app.Bus.(events.NopBus)
		check("kurrentdb", !nop, app.Bus.Health)

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
