package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/jthornton/deploycart/catalog"
	"github.com/jthornton/deploycart/detection"
	"github.com/jthornton/deploycart/internal/logger"
	"github.com/jthornton/deploycart/migration"
	"github.com/jthornton/deploycart/payload"
	"github.com/jthornton/deploycart/policy"
)

type Server struct {
	db         *sql.DB // nil when running on in-memory stores
	apps       catalog.Store
	policies   *policy.Engine
	hybridizer *migration.Hybridizer
	router     *chi.Mux
}

// NewServer connects to Postgres and wires the Postgres-backed stores.
func NewServer(databaseURL string) (*Server, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := NewServerWithStores(catalog.NewPostgresStore(db), policy.NewPostgresStore(db))
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

// NewServerWithStores wires the server over arbitrary store implementations.
// Tests use this with the in-memory stores.
func NewServerWithStores(apps catalog.Store, policyStore policy.Store) (*Server, error) {
	engine, err := policy.NewEngine(policyStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}

	s := &Server{
		apps:       apps,
		policies:   engine,
		hybridizer: migration.NewHybridizer(engine),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	r.Route("/api/v1/detection", func(r chi.Router) {
		r.Post("/preview", s.handlePreview)
		r.Post("/validate", s.handleValidate)
	})

	r.Route("/api/v1/apps", func(r chi.Router) {
		r.Post("/", s.handlePackageApp)
		r.Get("/", s.handleListApps)

		r.Route("/{appId}", func(r chi.Router) {
			r.Get("/", s.handleGetApp)
			r.Get("/package", s.handleGetPackageDescriptor)
			r.Delete("/", s.handleDeleteApp)
		})
	})

	r.Post("/api/v1/migrate", s.handleMigrate)

	r.Route("/api/v1/policies", func(r chi.Router) {
		r.Post("/", s.handleCreatePolicy)
		r.Get("/", s.handleListPolicies)

		r.Route("/{policyId}", func(r chi.Router) {
			r.Get("/", s.handleGetPolicy)
			r.Put("/", s.handleUpdatePolicy)
			r.Delete("/", s.handleDeletePolicy)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"errors":   logger.TotalErrors.Load(),
		"warnings": logger.TotalWarnings.Load(),
	})
}

// handlePreview synthesizes detection rules and commands without persisting
// anything. Migration previews call this repeatedly; the core is pure, so
// output is stable across re-runs.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.DisplayName == "" {
		respondError(w, http.StatusBadRequest, "displayName is required", nil)
		return
	}

	rules := detection.Synthesize(req.Installer, req.DisplayName, req.Identifier, req.Version)
	platformRules, err := payload.DetectionRules(rules)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to map detection rules", err)
		return
	}

	respondJSON(w, http.StatusOK, PreviewResponse{
		Rules:            rules,
		PlatformRules:    platformRules,
		InstallCommand:   detection.BuildInstallCommand(req.Installer, req.Installer.Scope),
		UninstallCommand: detection.BuildUninstallCommand(req.Installer, req.DisplayName),
		Validation:       detection.Validate(rules),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	respondJSON(w, http.StatusOK, detection.Validate(req.Rules))
}

func (s *Server) handlePackageApp(w http.ResponseWriter, r *http.Request) {
	var req PackageAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.DisplayName == "" {
		respondError(w, http.StatusBadRequest, "displayName is required", nil)
		return
	}

	app := &catalog.App{
		ID:               uuid.NewString(),
		Name:             req.DisplayName,
		Installer:        req.Installer,
		Rules:            detection.Synthesize(req.Installer, req.DisplayName, req.Identifier, req.Version),
		Provenance:       string(migration.ProvenanceEngine),
		InstallCommand:   detection.BuildInstallCommand(req.Installer, req.Installer.Scope),
		UninstallCommand: detection.BuildUninstallCommand(req.Installer, req.DisplayName),
	}

	if err := s.apps.Add(app); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store app", err)
		return
	}

	logger.Info("packaged app", "appId", app.ID, "name", app.Name, "type", app.Installer.Type)
	respondJSON(w, http.StatusCreated, app)
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.apps.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list apps", err)
		return
	}
	if apps == nil {
		apps = []*catalog.App{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"apps": apps})
}

func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	app, err := s.apps.Get(chi.URLParam(r, "appId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "app not found", err)
		return
	}

	respondJSON(w, http.StatusOK, app)
}

// handleGetPackageDescriptor returns the pipeline descriptor for a packaged
// app: platform-schema detection rules plus the opaque command strings.
func (s *Server) handleGetPackageDescriptor(w http.ResponseWriter, r *http.Request) {
	app, err := s.apps.Get(chi.URLParam(r, "appId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "app not found", err)
		return
	}

	desc, err := payload.BuildPackageDescriptor(app.ID, app.Name, app.Installer,
		app.Rules, app.InstallCommand, app.UninstallCommand)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to build package descriptor", err)
		return
	}

	respondJSON(w, http.StatusOK, desc)
}

func (s *Server) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	if err := s.apps.Delete(chi.URLParam(r, "appId")); err != nil {
		respondError(w, http.StatusNotFound, "app not found", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	var req MigrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "at least one item is required", nil)
		return
	}

	items := make([]migration.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, migration.Item{
			AppID:           it.AppID,
			DisplayName:     it.DisplayName,
			Identifier:      it.Identifier,
			Version:         it.Version,
			Installer:       it.Installer,
			ExternalRules:   it.ExternalRules,
			AlreadyMigrated: it.AlreadyMigrated,
		})
	}

	opts := migration.Options{
		PreserveExternal: req.Options.PreserveExternal,
		AllowMixing:      req.Options.AllowMixing,
	}

	results := s.hybridizer.MigrateBatch(r.Context(), items, opts, func(i, n int, res migration.Result) {
		logger.Debug("migrated item", "appId", res.AppID, "index", i, "total", n,
			"blocked", res.Blocked())
	})

	migrated := 0
	blocked := 0
	out := make([]MigrateItemResult, 0, len(results))
	for _, res := range results {
		if res.Blocked() {
			blocked++
		} else {
			migrated++
		}
		out = append(out, MigrateItemResult{
			AppID:            res.AppID,
			DisplayName:      res.DisplayName,
			Rules:            res.Rules,
			Provenance:       string(res.Provenance),
			InstallCommand:   res.InstallCommand,
			UninstallCommand: res.UninstallCommand,
			Warnings:         res.Warnings,
			BlockingReasons:  res.BlockingReasons,
		})
	}

	logger.Info("migration batch complete", "total", len(results), "migrated", migrated, "blocked", blocked)
	respondJSON(w, http.StatusOK, MigrateResponse{
		Results:  out,
		Migrated: migrated,
		Blocked:  blocked,
	})
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" || req.Expression == "" {
		respondError(w, http.StatusBadRequest, "name and expression are required", nil)
		return
	}
	action := policy.Action(req.Action)
	if action != policy.ActionBlock && action != policy.ActionWarn {
		respondError(w, http.StatusBadRequest, `action must be "block" or "warn"`, nil)
		return
	}

	p := &policy.Policy{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Expression: req.Expression,
		Action:     action,
		Active:     req.Active,
	}

	if err := s.policies.Add(p); err != nil {
		respondError(w, http.StatusBadRequest, "failed to add policy", err)
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := s.policies.ListActive()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list policies", err)
		return
	}
	if policies == nil {
		policies = []*policy.Policy{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.policies.Get(chi.URLParam(r, "policyId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "policy not found", err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	action := policy.Action(req.Action)
	if action != policy.ActionBlock && action != policy.ActionWarn {
		respondError(w, http.StatusBadRequest, `action must be "block" or "warn"`, nil)
		return
	}

	p := &policy.Policy{
		ID:         chi.URLParam(r, "policyId"),
		Name:       req.Name,
		Expression: req.Expression,
		Action:     action,
		Active:     req.Active,
	}

	if err := s.policies.Update(p); err != nil {
		respondError(w, http.StatusBadRequest, "failed to update policy", err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	if err := s.policies.Delete(chi.URLParam(r, "policyId")); err != nil {
		respondError(w, http.StatusNotFound, "policy not found", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	logger.CountStatus(status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{"error": message}
	if err != nil {
		response["details"] = err.Error()
	}
	if status >= 500 {
		logger.Error(message, "status", status, "details", response["details"])
	}
	respondJSON(w, status, response)
}

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Error("DATABASE_URL environment variable is required")
		os.Exit(1)
	}

	server, err := NewServer(databaseURL)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	defer server.db.Close()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown error: %v\n", err)
	}

	logger.Info("server stopped")
}
