// Package mockserver implements the try-on service HTTP contract for local
// development. It issues real cache keys for preprocessed photos and answers
// submissions with a fixed composed image.
package mockserver

import (
	_ "embed"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
)

//go:embed result.png
var resultImage []byte

type Server struct {
	logger   *slog.Logger
	validate *validator.Validate

	mu        sync.Mutex
	cacheKeys map[string]time.Time
}

func New(logger *slog.Logger) *Server {
	return &Server{
		logger:    logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		cacheKeys: make(map[string]time.Time),
	}
}

func (s *Server) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Post("/preprocess-person", s.handlePreprocess)
	api.Post("/try-on", s.handleTryOn)

	return app
}

func (s *Server) Start(port int) error {
	app := s.App()

	return app.Listen(":" + strconv.Itoa(port))
}

func (s *Server) rememberKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cacheKeys[key] = time.Now()
}

func (s *Server) knowsKey(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.cacheKeys[key]

	return ok
}
