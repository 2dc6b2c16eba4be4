package status

import (
	"github.com/bikeraccoon/bikeraccoon/pkg/fleet"
	"github.com/bikeraccoon/bikeraccoon/pkg/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog/log"
)

const Version = "v1.0"

// Server exposes the tracker's fleet state and metrics over HTTP
type Server struct {
	App *fiber.App

	fleets map[string]*fleet.Fleet
	order  []string
}

func NewServer(fleets []*fleet.Fleet, collector *metrics.Collector) *Server {
	s := &Server{
		App:    fiber.New(fiber.Config{DisableStartupMessage: true}),
		fleets: map[string]*fleet.Fleet{},
	}

	for _, f := range fleets {
		s.fleets[f.Name] = f
		s.order = append(s.order, f.Name)
	}

	s.App.Use(NewLogger())

	group := s.App.Group("/status")
	group.Get("version", s.version)
	group.Get("fleets", s.listFleets)
	group.Get("fleets/:name", s.getFleet)

	if collector != nil {
		s.App.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))
	}

	return s
}

func (s *Server) Listen(listen string) error {
	log.Info().Str("listen", listen).Msg("Starting status server")

	return s.App.Listen(listen)
}

func (s *Server) Shutdown() {
	if err := s.App.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Failed to stop status server")
	}
}

func (s *Server) version(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": Version,
	})
}

func (s *Server) listFleets(c *fiber.Ctx) error {
	statuses := make([]fleet.Status, 0, len(s.order))
	for _, name := range s.order {
		statuses = append(statuses, s.fleets[name].Status())
	}

	return c.JSON(statuses)
}

func (s *Server) getFleet(c *fiber.Ctx) error {
	f, ok := s.fleets[c.Params("name")]
	if !ok {
		c.Status(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Could not find fleet matching name",
		})
	}

	return c.JSON(f.Status())
}
