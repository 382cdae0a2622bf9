// Package server contains the HTTP and WebSocket handlers of the blog.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	_ "inkwell/docs" // swagger docs
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/events"
	"inkwell/internal/featureflags"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/session"
	"inkwell/internal/storage"
	"inkwell/internal/views"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	loginPath     = "/login"
	homePath      = "/"
	layoutName    = "layout"
	globalRPM     = 300
	authAttempts  = 10
	authWindow    = 5 * time.Minute
	signupAttempt = 5
)

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	views          *views.Engine
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo repository.UserRepository
	postRepo repository.PostRepository
	likeRepo repository.LikeRepository

	store       storage.BlobStore
	flags       *featureflags.Manager
	sessions    *session.Manager
	authService *service.AuthService
	postService *service.PostService
	likeService *service.LikeService

	feedHub   *notifications.FeedHub
	bus       *events.RedisPublisher
	publisher *events.Multi
	kafka     *events.KafkaPublisher
}

// NewServer connects the database, Redis and the blob store, then builds the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := database.ApplySchema(context.Background(), db, cfg); err != nil {
		return nil, fmt.Errorf("schema setup failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	store, err := storage.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("blob store setup failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, cache.GetClient(), store)
}

// NewServerWithDeps creates a Server from already initialised dependencies.
// redisClient may be nil; events then go straight to the local feed hub.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.BlobStore) (*Server, error) {
	engine := views.New()
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		views:          engine,
		promMiddleware: middleware.InitMetrics("inkwell"),
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		likeRepo:       repository.NewLikeRepository(db),
		store:          store,
		flags:          featureflags.NewManager(cfg.FeatureFlags),
		feedHub:        notifications.NewFeedHub(0),
		publisher:      events.NewMulti(),
	}

	if redisClient != nil {
		s.bus = events.NewRedisPublisher(redisClient)
		s.publisher.Add("redis", s.bus)
	} else {
		s.publisher.Add("feed", s.feedHub)
	}
	if cfg.KafkaBrokers != "" {
		s.kafka = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		s.publisher.Add("kafka", s.kafka)
	}

	s.sessions = session.NewManager(cfg.SecretKey, cfg.SessionTTL(), s.userRepo)
	hasher := service.NewPasswordHasher(cfg.PasswordHashScheme, cfg.PBKDF2Iterations)
	uploads := service.NewUploadService(store, cfg.UploadMaxSizeMB)
	uploads.SetThumbnailGate(func(userID uint) bool {
		return s.flags.Enabled(featureflags.Thumbnails, userID)
	})

	s.authService = service.NewAuthService(s.userRepo, hasher, s.sessions)
	s.postService = service.NewPostService(s.postRepo, s.likeRepo, uploads, s.publisher,
		service.WithOwnershipEnforcement(cfg.EnforcePostOwnership))
	s.likeService = service.NewLikeService(s.likeRepo, s.publisher)

	return s, nil
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	maxMB := s.config.UploadMaxSizeMB
	if maxMB <= 0 {
		maxMB = 10
	}
	app := fiber.New(fiber.Config{
		AppName:      "Inkwell",
		Views:        s.views,
		ViewsLayout:  layoutName,
		BodyLimit:    (maxMB + 1) * 1024 * 1024,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.LoadSession(s.config.SessionCookieName, s.sessions))
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:",
	}))
	app.Use(middleware.StructuredLogger())

	if s.config.AllowedOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.AllowedOrigins,
			AllowHeaders:     "Origin, Content-Type, Accept",
			AllowCredentials: true,
			MaxAge:           86400,
		}))
	}

	app.Use(limiter.New(limiter.Config{
		Max:        globalRPM,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).SendString("Too many requests, please try again later.")
		},
	}))
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/static/uploads/*", s.ServeUpload)
	app.Get("/ws/feed", s.FeedUpgrade, s.FeedHandler())

	app.Get("/", s.Index)
	app.Get("/about", s.About)
	app.Get("/post/:id", s.ShowPost)

	loginLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Redis: s.redis, Resource: "login", Limit: authAttempts, Window: authWindow, Env: s.config.Env,
	})
	signupLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Redis: s.redis, Resource: "signin", Limit: signupAttempt, Window: authWindow, Env: s.config.Env,
	})
	app.Get(loginPath, s.LoginForm)
	app.Post(loginPath, loginLimit, s.Login)
	app.Get("/signin", s.SigninForm)
	app.Post("/signin", signupLimit, s.Signin)

	auth := middleware.RequireLogin(loginPath)
	app.Get("/logout", auth, s.Logout)
	app.Get("/addpost", auth, s.AddPostForm)
	app.Post("/addpost", auth, s.AddPost)
	app.Get("/update/:id", auth, s.UpdatePostForm)
	app.Post("/update/:id", auth, s.UpdatePost)
	app.Get("/delete/:id", auth, s.DeletePost)
	app.Post("/delete/:id", auth, s.DeletePost)
	app.Post("/like/:id", auth, s.ToggleLike)

	app.Use(func(c *fiber.Ctx) error {
		return s.fail(c, models.NewNotFoundError("Page", c.Path()))
	})
}

// Route is one registered method and path.
type Route struct {
	Method string
	Path   string
}

// RouteTable lists the application routes in Fiber syntax, sorted by path then method.
// No backing service is contacted; HEAD twins of GET routes and middleware are omitted.
func RouteTable(cfg *config.Config) []Route {
	app := fiber.New()
	(&Server{config: cfg}).SetupRoutes(app)

	var out []Route
	for _, r := range app.GetRoutes(true) {
		if r.Method == fiber.MethodHead {
			continue
		}
		out = append(out, Route{Method: r.Method, Path: r.Path})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Start starts the server.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.bus != nil {
		if err := s.feedHub.StartWiring(s.shutdownCtx, s.bus); err != nil {
			middleware.Logger.Error("failed to start feed wiring", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.feedHub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down feed hub", slog.String("error", err.Error()))
	}

	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			middleware.Logger.Error("error closing kafka writer", slog.String("error", err.Error()))
		}
	}

	if err := s.closeDB(); err != nil {
		middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}

func (s *Server) closeDB() error {
	if s.db == database.DB {
		return database.Close()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
