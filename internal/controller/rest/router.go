package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// NewApp собирает fiber-приложение со всеми маршрутами API
func NewApp(sessions *SessionHandler, health *HealthHandler, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "tutor_sessions",
		ErrorHandler: ErrorHandler(logger),
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(RequestLogger(logger))

	app.Get("/health", health.Check)

	api := app.Group("/api/v1", RequireActor())

	s := api.Group("/sessions")
	s.Get("/", sessions.List)
	s.Post("/", sessions.CreateDirect)
	s.Post("/requests", sessions.Request)
	s.Get("/:id", sessions.Get)
	s.Post("/:id/accept", sessions.Accept)
	s.Post("/:id/reject", sessions.Reject)
	s.Post("/:id/cancel", sessions.Cancel)
	s.Post("/:id/reschedule", sessions.Reschedule)
	s.Post("/:id/start", sessions.Start)
	s.Post("/:id/complete", sessions.Complete)

	api.Get("/teachers/:id/slots", sessions.TeacherSlots)
	api.Get("/programs/:id/slots", sessions.ProgramSlots)

	return app
}
