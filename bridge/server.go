// Package bridge exposes the controller to presentation layers over a
// local HTTP and websocket surface. It transports snapshots, commands,
// and notifications; rendering stays entirely on the other side.
package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"council-game-demo/client/game/session"
	"council-game-demo/client/pkg/config"
	"council-game-demo/client/pkg/errors"
	"council-game-demo/client/pkg/logger"
	"council-game-demo/client/pkg/middleware"
)

var startTime = time.Now()

// Server is the local presentation bridge.
type Server struct {
	engine     *gin.Engine
	controller *session.Controller
	hub        *Hub
	cfg        *config.Config
	log        *logger.Logger
	httpServer *http.Server
}

// New builds the bridge server and subscribes its hub to the
// controller's notification bus.
func New(cfg *config.Config, controller *session.Controller, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(logger.Middleware(log))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	limiter := middleware.NewRateLimiter(log, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Bridge.RateLimit),
		Burst:          cfg.Bridge.RateLimitBurst,
		ExpiryDuration: time.Hour,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
	engine.Use(limiter.Middleware())

	hub := NewHub(func() any { return controller.Snapshot() }, log)
	go hub.Run()

	controller.OnNotify(func(n session.Notification) {
		hub.Broadcast("notification", n)
	})

	s := &Server{
		engine:     engine,
		controller: controller,
		hub:        hub,
		cfg:        cfg,
		log:        log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.GET("/ws", ServeWs(s.hub, s.cfg.Bridge.AllowedOrigins))

	api := s.engine.Group("/api")
	{
		api.GET("/state", s.state)
		api.GET("/scenarios", s.scenarios)
		api.GET("/skills", s.skills)

		sess := api.Group("/session")
		{
			sess.POST("/text", s.createFromText)
			sess.POST("/file", s.createFromFile)
			sess.POST("/scenario", s.createFromScenario)
			sess.POST("/recover", s.recoverSession)
		}

		api.POST("/start", s.start)
		api.POST("/intro/complete", s.completeIntro)
		api.POST("/chat", s.chat)
		api.POST("/discussion/end", s.endDiscussion)
		api.POST("/vote", s.vote)
		api.POST("/night", s.night)
		api.POST("/night/action", s.nightAction)
		api.POST("/night/chat", s.nightChat)
		api.POST("/reveal/dismiss", s.dismissReveal)
		api.POST("/investigation/dismiss", s.dismissInvestigation)
		api.POST("/error/dismiss", s.dismissError)
		api.POST("/reset", s.reset)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    ":" + s.cfg.Bridge.Port,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("bridge listening", "port", s.cfg.Bridge.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptime":        time.Since(startTime).String(),
		"stream_active": s.controller.StreamActive(),
	})
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *Server) scenarios(c *gin.Context) {
	scenarios, err := s.controller.Scenarios(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios})
}

func (s *Server) skills(c *gin.Context) {
	skills, err := s.controller.Skills(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"skills": skills})
}

func (s *Server) createFromText(c *gin.Context) {
	var req struct {
		Text          string `json:"text" binding:"required"`
		NumCharacters int    `json:"num_characters"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	if err := s.controller.UploadText(c.Request.Context(), req.Text, req.NumCharacters); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *Server) createFromFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.Error(errors.NewError("INVALID_REQUEST", "missing file"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.Error(errors.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.Error(errors.NewError("INVALID_REQUEST", err.Error()))
		return
	}

	numCharacters := 0
	fmt.Sscanf(c.PostForm("num_characters"), "%d", &numCharacters)

	if err := s.controller.UploadDocument(c.Request.Context(), fileHeader.Filename, data, numCharacters); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *Server) createFromScenario(c *gin.Context) {
	var req struct {
		ScenarioID    string `json:"scenario_id" binding:"required"`
		NumCharacters int    `json:"num_characters"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	if err := s.controller.LoadScenario(c.Request.Context(), req.ScenarioID, req.NumCharacters); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *Server) recoverSession(c *gin.Context) {
	recovered, err := s.controller.RecoverSession(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recovered": recovered})
}

func (s *Server) start(c *gin.Context) {
	s.command(c, func() error { return s.controller.StartGame(c.Request.Context()) })
}

func (s *Server) completeIntro(c *gin.Context) {
	s.command(c, s.controller.CompleteIntro)
}

func (s *Server) chat(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	s.command(c, func() error { return s.controller.SendMessage(req.Message) })
}

func (s *Server) endDiscussion(c *gin.Context) {
	s.command(c, s.controller.EndDiscussion)
}

func (s *Server) vote(c *gin.Context) {
	var req struct {
		TargetID string `json:"target_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	s.command(c, func() error { return s.controller.CastVote(req.TargetID) })
}

func (s *Server) night(c *gin.Context) {
	s.command(c, s.controller.TriggerNight)
}

func (s *Server) nightAction(c *gin.Context) {
	var req struct {
		TargetID string `json:"target_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	s.command(c, func() error { return s.controller.SubmitNightAction(req.TargetID) })
}

func (s *Server) nightChat(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	s.command(c, func() error { return s.controller.SendNightChat(req.Message) })
}

func (s *Server) dismissReveal(c *gin.Context) {
	s.controller.DismissReveal()
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *Server) dismissInvestigation(c *gin.Context) {
	s.controller.DismissInvestigation()
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *Server) dismissError(c *gin.Context) {
	s.controller.DismissError()
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *Server) reset(c *gin.Context) {
	s.controller.ResetGame()
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

// command runs one controller command and answers with the refreshed
// snapshot on success.
func (s *Server) command(c *gin.Context, fn func() error) {
	if err := fn(); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s.controller.Snapshot())
}
