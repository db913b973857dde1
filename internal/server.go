package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"parc-api/internal/auth"
	"parc-api/internal/config"
	"parc-api/internal/handlers"
	"parc-api/internal/storage"
	"parc-api/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type Server struct {
	DB         *sql.DB
	Pool       *pgxpool.Pool
	Router     *chi.Mux
	Store      *store.Store
	Signatures storage.SignatureStore
	JWTManager *auth.JWTManager
	Metrics    *Metrics
}

func NewServer(dsn string, cfg *config.Config) *Server {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal("Failed to open database connection:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("Database ping failed:", err)
	}

	// Also create a pgxpool for the importer
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal("Failed to create pgxpool:", err)
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		log.Fatal("JWT configuration validation failed:", err)
	}

	metrics := NewMetrics()

	s := &Server{
		DB:         db,
		Pool:       pool,
		Router:     chi.NewRouter(),
		Store:      store.New(db),
		Signatures: storage.NewDirSignatureStore(cfg.SignatureDir),
		JWTManager: jwtManager,
		Metrics:    metrics,
	}

	// chi requires every middleware before the first route
	metricsEnabled := os.Getenv("ENABLE_METRICS") == "true"
	if metricsEnabled {
		s.Router.Use(s.Metrics.Middleware())
	}

	// Public routes (no auth)
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", func(w http.ResponseWriter, r *http.Request) {
		if err := s.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "db: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		if _, err := w.Write([]byte("db: ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	// Public auth routes (no JWT required)
	s.Router.Post("/auth/login", s.loginUser)

	if metricsEnabled {
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	// Protected route group
	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		s.mountProtectedRoutes(r)
	})

	return s
}

// Close properly shuts down the server and cleans up resources
func (s *Server) Close(ctx context.Context) error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// mountProtectedRoutes mounts all protected routes that require authentication
func (s *Server) mountProtectedRoutes(r chi.Router) {
	write := auth.MustRole("ADMIN", "GESTIONNAIRE")
	admin := auth.MustRole("ADMIN")

	// Employees
	r.Get("/employees", s.listEmployees)
	r.Get("/employees/{id}", s.getEmployee)
	r.Post("/employees", write(http.HandlerFunc(s.createEmployee)).(http.HandlerFunc))
	r.Put("/employees/{id}", write(http.HandlerFunc(s.updateEmployee)).(http.HandlerFunc))
	r.Delete("/employees/{id}", admin(http.HandlerFunc(s.deleteEmployee)).(http.HandlerFunc))

	// Asset models
	r.Get("/asset-models", s.listAssetModels)
	r.Get("/asset-models/{id}", s.getAssetModel)
	r.Post("/asset-models", write(http.HandlerFunc(s.createAssetModel)).(http.HandlerFunc))
	r.Put("/asset-models/{id}", write(http.HandlerFunc(s.updateAssetModel)).(http.HandlerFunc))
	r.Delete("/asset-models/{id}", admin(http.HandlerFunc(s.deleteAssetModel)).(http.HandlerFunc))
	r.Post("/asset-models/{id}/items", write(http.HandlerFunc(s.generateAssetItems)).(http.HandlerFunc))

	// Asset items
	r.Get("/asset-items", s.listAssetItems)
	r.Get("/asset-items/{id}", s.getAssetItem)
	r.Post("/asset-items", write(http.HandlerFunc(s.createAssetItem)).(http.HandlerFunc))
	r.Put("/asset-items/{id}", write(http.HandlerFunc(s.updateAssetItem)).(http.HandlerFunc))
	r.Delete("/asset-items/{id}", admin(http.HandlerFunc(s.deleteAssetItem)).(http.HandlerFunc))

	// Stock items
	r.Get("/stock-items", s.listStockItems)
	r.Get("/stock-items/{id}", s.getStockItem)
	r.Post("/stock-items", write(http.HandlerFunc(s.createStockItem)).(http.HandlerFunc))
	r.Put("/stock-items/{id}", write(http.HandlerFunc(s.updateStockItem)).(http.HandlerFunc))
	r.Delete("/stock-items/{id}", admin(http.HandlerFunc(s.deleteStockItem)).(http.HandlerFunc))
	r.Post("/stock-items/{id}/restock", write(http.HandlerFunc(s.restockStockItem)).(http.HandlerFunc))

	// Loans
	r.Get("/loans", s.listLoans)
	r.Get("/loans/{id}", s.getLoan)
	r.Post("/loans", write(http.HandlerFunc(s.createLoan)).(http.HandlerFunc))
	r.Post("/loans/{id}/lines", write(http.HandlerFunc(s.addLoanLine)).(http.HandlerFunc))
	r.Delete("/loans/{id}/lines/{lineId}", write(http.HandlerFunc(s.removeLoanLine)).(http.HandlerFunc))
	r.Patch("/loans/{id}/close", write(http.HandlerFunc(s.closeLoan)).(http.HandlerFunc))
	r.Patch("/loans/{id}/signatures", write(http.HandlerFunc(s.attachLoanSignatures)).(http.HandlerFunc))
	r.Delete("/loans/{id}", write(http.HandlerFunc(s.deleteLoan)).(http.HandlerFunc))

	// Excel import
	importsHandler := handlers.NewImportsHandler(s.Pool)
	r.Post("/imports/excel", write(http.HandlerFunc(importsHandler.UploadExcel)).(http.HandlerFunc))

	// User management - ADMIN only
	r.Post("/users", admin(http.HandlerFunc(s.createUser)).(http.HandlerFunc))
	r.Get("/users", admin(http.HandlerFunc(s.listUsers)).(http.HandlerFunc))
	r.Get("/users/{id}", admin(http.HandlerFunc(s.getUser)).(http.HandlerFunc))
	r.Put("/users/{id}", admin(http.HandlerFunc(s.updateUser)).(http.HandlerFunc))
	r.Delete("/users/{id}", admin(http.HandlerFunc(s.deleteUser)).(http.HandlerFunc))

	// Self-service routes
	r.Get("/auth/profile", s.getUserProfile)
	r.Put("/auth/change-password", s.changePassword)
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeStoreError maps core errors to HTTP: not-found → 404, business-rule
// violations → 409, anything else → 500.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case store.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody(err))
	case store.IsValidation(err):
		writeJSON(w, http.StatusConflict, errorBody(err))
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func errorBody(err error) map[string]any {
	body := map[string]any{"error": err.Error()}
	var se *store.Error
	if errors.As(err, &se) {
		body["code"] = string(se.Kind)
		if len(se.Details) > 0 {
			body["details"] = se.Details
		}
	}
	return body
}

// isUniqueViolation detects unique-constraint errors from the driver
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
