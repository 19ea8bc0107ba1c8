package main

import (
	"bytes"
	"fmt"
	"image/png"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Notification is what an API handler hands to the main loop after it has
// mutated the stores. The loop applies the display side effects; handlers
// never touch the panel.
type Notification int

const (
	NotifyMessage Notification = iota
	NotifyFeed
	NotifyPoke
)

func (n Notification) String() string {
	switch n {
	case NotifyMessage:
		return "message"
	case NotifyFeed:
		return "feed"
	case NotifyPoke:
		return "poke"
	}
	return "unknown"
}

// apiServer exposes the device over HTTP: status and inbox for the peer,
// plus a PNG mirror of the current frame for debugging from a browser.
type apiServer struct {
	cfg         Config
	coordinator *RefreshCoordinator
	pet         *PetState
	messages    *MessageLog
	settings    *Settings
	stats       *Stats

	// notify carries handler events to the main loop. Buffered; a full
	// channel drops the notification rather than blocking a request.
	notify chan Notification
}

func newAPIServer(cfg Config, coordinator *RefreshCoordinator, pet *PetState, messages *MessageLog, settings *Settings, stats *Stats) *apiServer {
	return &apiServer{
		cfg:         cfg,
		coordinator: coordinator,
		pet:         pet,
		messages:    messages,
		settings:    settings,
		stats:       stats,
		notify:      make(chan Notification, 8),
	}
}

func (s *apiServer) push(n Notification) {
	select {
	case s.notify <- n:
	default:
		log.Printf("notification %s dropped: queue full", n)
	}
}

type inboundMessage struct {
	From string `json:"from_device"`
	Text string `json:"message"`
	Type string `json:"type"`
}

func (s *apiServer) handleIndex(c *fiber.Ctx) error {
	return c.SendString(s.cfg.DeviceName + " display API\n")
}

func (s *apiServer) handleStatus(c *fiber.Ctx) error {
	pet := s.pet.Snapshot()
	return c.JSON(fiber.Map{
		"device":        s.cfg.DeviceName,
		"time":          time.Now().UTC().Format(time.RFC3339),
		"pet":           pet,
		"mood":          string(moodFor(pet)),
		"message_count": s.messages.Count(),
		"unread_count":  s.messages.UnreadCount(),
		"stats":         s.stats.Snapshot(),
	})
}

func (s *apiServer) handleMessage(c *fiber.Ctx) error {
	var in inboundMessage
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid JSON")
	}
	if in.Text == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Empty message")
	}
	if in.Type == "" {
		in.Type = "text"
	}

	if err := s.messages.Add(in.From, in.Text, in.Type); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to store message")
	}
	s.pet.MessageReceived()
	s.stats.IncMessagesReceived()
	s.push(NotifyMessage)

	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *apiServer) handleFeed(c *fiber.Ctx) error {
	s.pet.Feed()
	s.push(NotifyFeed)
	return c.JSON(fiber.Map{"status": "ok", "pet": s.pet.Snapshot()})
}

func (s *apiServer) handlePoke(c *fiber.Ctx) error {
	var in inboundMessage
	if err := c.BodyParser(&in); err == nil && in.From != "" {
		s.messages.Add(in.From, fmt.Sprintf("%s poked you!", in.From), "poke")
	}
	s.pet.Interact()
	s.push(NotifyPoke)
	return c.JSON(fiber.Map{"status": "ok", "pet": s.pet.Snapshot()})
}

// handleFrame serves the current canvas as PNG, so the panel content can be
// inspected from a browser without standing next to the device.
func (s *apiServer) handleFrame(c *fiber.Ctx) error {
	frame := s.coordinator.FrameSnapshot()
	if frame == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("No frame available")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to encode image")
	}

	c.Set("Content-Type", "image/png")
	c.Set("Content-Length", strconv.Itoa(buf.Len()))
	return c.Send(buf.Bytes())
}

func (s *apiServer) app() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/", s.handleIndex)
	app.Get("/api/status", s.handleStatus)
	app.Post("/api/message", s.handleMessage)
	app.Post("/api/feed", s.handleFeed)
	app.Post("/api/poke", s.handlePoke)
	app.Get("/frame.png", s.handleFrame)

	return app
}

// run blocks serving HTTP; start it on its own goroutine.
func (s *apiServer) run() {
	addr := fmt.Sprintf(":%d", s.cfg.APIPort)
	log.Println("Starting Fiber server on", addr)
	if err := s.app().Listen(addr); err != nil {
		log.Printf("http server stopped: %v", err)
	}
}
