package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/forum"
	"github.com/emilythestrangee/stackit/backend/internal/handlers"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
)

const version = "1.0.0"

type Server struct {
	cfg     *config.Config
	db      *gorm.DB
	log     *zap.SugaredLogger
	tokens  *auth.TokenIssuer
	limiter gin.HandlerFunc
	handler *handlers.Handler
	closers []io.Closer
}

// New opens the store, runs migrations and wires every component the
// routes need.
func New(cfg *config.Config, log *zap.SugaredLogger) (*Server, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		db:      db,
		log:     log,
		tokens:  auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		limiter: middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window, log),
	}

	views, err := s.viewTracker()
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	dispatcher := notify.NewDispatcher(db, log, s.notificationSinks()...)
	s.closers = append(s.closers, dispatcher)

	s.handler = handlers.NewHandler(handlers.Deps{
		DB:         db,
		Log:        log,
		Tokens:     s.tokens,
		BcryptCost: cfg.Auth.BcryptCost,
		Ledger:     forum.NewLedger(db, log),
		Acceptance: forum.NewAcceptance(db, dispatcher, log),
		Moderator:  forum.NewModerator(db, log),
		Views:      views,
		Notifier:   dispatcher,
	})
	return s, nil
}

func (s *Server) viewTracker() (forum.ViewTracker, error) {
	vc := s.cfg.Views
	if vc.Backend != "redis" {
		return forum.NewMemoryViews(vc.Window, vc.MaxEntries), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     vc.Redis.Address,
		Password: vc.Redis.Password,
		DB:       vc.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("error connecting to redis at %s: %w", vc.Redis.Address, err)
	}

	views := forum.NewRedisViews(rdb, vc.Redis.Prefix, vc.Window)
	s.closers = append(s.closers, views)
	s.log.Infow("view de-duplication on redis", "address", vc.Redis.Address)
	return views, nil
}

func (s *Server) notificationSinks() []notify.Sink {
	nc := s.cfg.Notifications
	var sinks []notify.Sink
	if nc.Kafka.Enabled() {
		sinks = append(sinks, notify.NewKafkaSink(nc.Kafka.Brokers, nc.Kafka.Topic))
		s.log.Infow("notification events on kafka", "brokers", nc.Kafka.Brokers, "topic", nc.Kafka.Topic)
	}
	if nc.Twilio.Enabled() {
		sinks = append(sinks, notify.NewSMSSink(nc.Twilio.AccountSID, nc.Twilio.AuthToken, nc.Twilio.From, nc.LinkBaseURL))
		s.log.Infow("sms notifications enabled", "from", nc.Twilio.From)
	}
	return sinks
}

// HTTPServer wraps the router in an http.Server bound to the configured
// port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", s.cfg.App.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Close releases the store and every optional backend.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := database.Close(s.db); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	if !s.cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(s.log), gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.health)

	h := s.handler
	requireAuth := middleware.RequireAuth(s.tokens)
	optionalAuth := middleware.OptionalAuth(s.tokens)

	api := r.Group("/api")
	api.Use(s.limiter)
	{
		api.GET("", s.info)

		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", h.Auth.Register)
			authRoutes.POST("/login", h.Auth.Login)
			authRoutes.GET("/me", requireAuth, h.Auth.GetMe)
			authRoutes.POST("/refresh", requireAuth, h.Auth.Refresh)
		}

		questions := api.Group("/questions")
		{
			questions.GET("", optionalAuth, h.Question.ListQuestions)
			questions.GET("/:id", optionalAuth, h.Question.GetQuestion)
			questions.POST("", requireAuth, h.Question.CreateQuestion)
			questions.POST("/:id/vote", requireAuth, h.Question.VoteQuestion)
		}

		answers := api.Group("/answers", requireAuth)
		{
			answers.POST("", h.Answer.CreateAnswer)
			answers.POST("/:id/accept", h.Answer.AcceptAnswer)
			answers.POST("/:id/vote", h.Answer.VoteAnswer)
		}

		api.GET("/tags", h.Tag.ListTags)

		users := api.Group("/users")
		{
			users.GET("/:username", h.User.GetUserProfile)
			users.PUT("/profile", requireAuth, h.User.UpdateProfile)
		}

		notifications := api.Group("/notifications", requireAuth)
		{
			notifications.GET("", h.Notification.ListNotifications)
			notifications.GET("/unread-count", h.Notification.UnreadCount)
			notifications.PUT("/read-all", h.Notification.MarkAllRead)
			notifications.PUT("/:id/read", h.Notification.MarkRead)
		}

		admin := api.Group("/admin", requireAuth, middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/stats", h.Admin.Stats)
			admin.GET("/users", h.Admin.ListUsers)
			admin.POST("/users", h.Admin.CreateUser)
			admin.PUT("/users/:id", h.Admin.UpdateUser)
			admin.DELETE("/users/:id", h.Admin.DeleteUser)
			admin.GET("/questions", h.Admin.ListQuestions)
			admin.DELETE("/questions/:id", h.Admin.DeleteQuestion)
			admin.GET("/answers", h.Admin.ListAnswers)
			admin.DELETE("/answers/:id", h.Admin.DeleteAnswer)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": gin.H{"message": "Route not found"}})
	})

	return r
}

func (s *Server) health(c *gin.Context) {
	stats := database.Health(c.Request.Context(), s.db)
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":    stats["status"],
		"timestamp": time.Now().UTC(),
		"database":  stats,
	})
}

func (s *Server) info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"name":    "StackIt API",
			"version": version,
			"endpoints": []string{
				"/api/auth", "/api/questions", "/api/answers", "/api/tags",
				"/api/users", "/api/notifications", "/api/admin",
			},
		},
	})
}
