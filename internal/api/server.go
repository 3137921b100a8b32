package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/chatthread/internal/api/auth"
	"github.com/chatthread/internal/store"
	"github.com/chatthread/pkg/chattree"
)

// ConversationStore is the persistence used by the conversation endpoints.
type ConversationStore interface {
	CreateConversation(ctx context.Context, id, name string, msgs []chattree.Message) (*store.Conversation, error)
	AppendMessages(ctx context.Context, conversationID string, msgs []chattree.Message) (int, error)
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	ListConversations(ctx context.Context, limit, offset int) ([]store.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]chattree.Message, error)
	SetSelectedMessage(ctx context.Context, conversationID, messageID string) error
	DeleteConversation(ctx context.Context, id string) error
	GetSnapshot(ctx context.Context, conversationID string) (*store.Snapshot, error)
}

// SnapshotQueue schedules background snapshot recomputation.
type SnapshotQueue interface {
	EnqueueSnapshot(ctx context.Context, conversationID string) error
}

// Options configures the API server. Store and Queue are optional: without a store
// only the stateless endpoints are served, without a queue snapshots are not
// refreshed.
type Options struct {
	Port        int
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
	JWTSecret   string
	Store       ConversationStore
	Queue       SnapshotQueue
}

// Server represents the API server
type Server struct {
	echo  *echo.Echo
	port  int
	store ConversationStore
	queue SnapshotQueue
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: corsOrigins(opts.CORSOrigins)}))
	if opts.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(opts.RateLimit),
				Burst:     opts.RateBurst,
				ExpiresIn: 3 * time.Minute,
			},
		)))
	}

	server := &Server{
		echo:  e,
		port:  opts.Port,
		store: opts.Store,
		queue: opts.Queue,
	}

	var tokens *auth.TokenService
	if opts.JWTSecret != "" {
		tokens = auth.NewTokenService(opts.JWTSecret)
	}
	server.setupRoutes(tokens)

	return server
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// requestLogger writes one zerolog event per request.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes(tokens *auth.TokenService) {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":        "healthy",
			"persistence":   s.store != nil,
			"snapshot_jobs": s.queue != nil,
		})
	})

	v1 := s.echo.Group("/api/v1")
	if tokens != nil {
		v1.Use(auth.RequireAuth(tokens))
	}

	v1.POST("/tree", s.buildTree)
	v1.POST("/thread", s.extractThread)

	if s.store == nil {
		return
	}

	conv := v1.Group("/conversations")
	conv.GET("", s.listConversations)
	conv.POST("", s.createConversation)
	conv.GET("/:id", s.getConversation)
	conv.DELETE("/:id", s.deleteConversation)
	conv.POST("/:id/messages", s.appendMessages)
	conv.GET("/:id/tree", s.getConversationTree)
	conv.GET("/:id/thread", s.getConversationThread)
	conv.PUT("/:id/selection", s.setSelection)
	conv.GET("/:id/snapshot", s.getSnapshot)
}

// Start begins the API server and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("API server listening")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("Shutting down API server")
	return s.echo.Shutdown(shutdownCtx)
}
