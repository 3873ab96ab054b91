package api

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

type APIServer struct {
	app           *fiber.App
	listenAddress string
}

func NewAPIServer(listenAddress string) *APIServer {
	return &APIServer{
		// Video uploads run to a couple hundred megabytes.
		app: fiber.New(fiber.Config{
			BodyLimit: 200 * 1024 * 1024,
		}),
		listenAddress: listenAddress,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	log.Println("Starting API Server")
	log.Printf("Listening on %s", s.listenAddress)

	return s.app.Listen(s.listenAddress)
}
