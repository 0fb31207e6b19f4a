package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ysalek1982/skyworth-buddy-sub001/internal/adjudication"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/cache"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/config"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/database"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/events"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/features"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/handler"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/middleware"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/notify"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/registration"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/service"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/storage"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/tracing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)

	// Initialize tracing
	if cfg.Tracing.Enabled {
		if err := tracing.InitTracing(tracing.Config{
			Enabled:     true,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			Environment: cfg.Tracing.Environment,
		}); err != nil {
			log.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx); err != nil {
				logger.Printf("Error shutting down tracer: %v", err)
			}
		}()
	}

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Feature flags
	flags := features.NewManager()
	flags.Register(features.FeatureSignedURLCache, cfg.Storage.CacheEnabled, "Cache signed document URLs until shortly before expiry")
	flags.Register(features.FeatureNotificationFanout, cfg.Notifications.Enabled, "Notify claimants after a decision commits")
	flags.Register(features.FeatureEventHooksEnabled, true, "Run async event hooks for claim lifecycle events")

	// Signed-URL cache
	var urlCache cache.Cache = cache.NopCache{}
	if flags.IsEnabled(features.FeatureSignedURLCache) {
		urlCache, err = cache.New(cfg.Storage.CacheBackend, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		if err != nil {
			log.Fatalf("Failed to initialize signed-URL cache: %v", err)
		}
	}

	// Document resolver
	signer := storage.NewHTTPSigner(cfg.Storage.BaseURL, cfg.Storage.APIKey, 10*time.Second)
	policy := storage.NewBucketPolicy(cfg.Storage.Buckets...)
	resolver := storage.NewResolver(signer, urlCache, policy, logger,
		storage.WithDefaultValidity(time.Duration(cfg.Storage.ValiditySeconds)*time.Second))

	// External registration boundary
	registrar := registration.NewHTTPRegistrar(
		cfg.Registration.Endpoint,
		cfg.Registration.APIKey,
		time.Duration(cfg.Registration.TimeoutSeconds)*time.Second,
	)

	// Notification channels
	var dispatchers []notify.Dispatcher
	channelTimeout := time.Duration(cfg.Notifications.ChannelTimeoutSeconds) * time.Second
	if cfg.Notifications.EmailEndpoint != "" {
		dispatchers = append(dispatchers, notify.NewEmailDispatcher(cfg.Notifications.EmailEndpoint, cfg.Notifications.EmailAPIKey, channelTimeout))
	}
	if cfg.Notifications.WhatsAppEndpoint != "" {
		dispatchers = append(dispatchers, notify.NewWhatsAppDispatcher(cfg.Notifications.WhatsAppEndpoint, cfg.Notifications.WhatsAppAPIKey, channelTimeout))
	}

	adjudicator := adjudication.New(adjudication.Options{
		Store:          db,
		Registrar:      registrar,
		Dispatchers:    dispatchers,
		Features:       flags,
		Logger:         logger,
		ChannelTimeout: channelTimeout,
	})

	// Event hooks
	eventMgr := events.NewManager(flags.IsEnabled(features.FeatureEventHooksEnabled))
	eventMgr.Subscribe(events.EventClaimSubmitted, func(ctx context.Context, e events.Event) error {
		if data, ok := e.Data.(events.ClaimSubmittedData); ok {
			logger.Printf("claim submitted: id=%s serial=%s", data.Claim.ID, data.Claim.SerialNumber)
		}
		return nil
	})
	eventMgr.Subscribe(events.EventClaimAdjudicated, func(ctx context.Context, e events.Event) error {
		if data, ok := e.Data.(events.ClaimAdjudicatedData); ok {
			logger.Printf("claim adjudicated: id=%s status=%s coupons=%d",
				data.Outcome.ClaimID, data.Outcome.Status, data.Outcome.CouponCount)
		}
		return nil
	})
	defer eventMgr.Shutdown()

	// Service and handlers
	svc := service.NewService(db, resolver, adjudicator, eventMgr)
	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	if cfg.Tracing.Enabled {
		r.Use(middleware.TracingMiddleware())
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Routes
	r.Route("/claims", func(r chi.Router) {
		r.Post("/", h.CreateClaim)
		r.Get("/", h.ListClaims)
		r.Get("/{claim_id}", h.GetClaim)
		r.Post("/{claim_id}/adjudicate", h.AdjudicateClaim)
	})

	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.CreateProduct)
		r.Get("/", h.ListProducts)
	})

	r.Get("/documents/resolve", h.ResolveDocument)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)
	log.Printf("Allowed buckets: %s", strings.Join(cfg.Storage.Buckets, ", "))
	if cfg.RateLimit.Enabled {
		log.Printf("Rate limit: %d requests per %d seconds", cfg.RateLimit.Rate, cfg.RateLimit.Window)
	}

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
