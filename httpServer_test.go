package main

import (
	"encoding/json"
	"image/png"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestAPI(t *testing.T) *apiServer {
	t.Helper()
	cfg := testConfig(t)

	coordinator := newTestCoordinator(newMockPanel(), 10)
	return newAPIServer(cfg, coordinator,
		newPetState(cfg), newMessageLog(cfg), newSettings(cfg), newStats(cfg))
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestAPI(t)
	app := s.app()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["device"] != "testdev" {
		t.Errorf("device=%v, want testdev", body["device"])
	}
	if _, ok := body["mood"]; !ok {
		t.Error("status body missing mood")
	}
	if _, ok := body["pet"]; !ok {
		t.Error("status body missing pet")
	}
}

func TestMessageEndpoint(t *testing.T) {
	s := newTestAPI(t)
	app := s.app()

	payload := `{"from_device":"peer","message":"hi there","type":"text"}`
	req := httptest.NewRequest("POST", "/api/message", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	if got := s.messages.Count(); got != 1 {
		t.Errorf("message count=%d, want 1", got)
	}
	if got := s.pet.Snapshot().MessagesReceived; got != 1 {
		t.Errorf("pet messages received=%d, want 1", got)
	}

	select {
	case n := <-s.notify:
		if n != NotifyMessage {
			t.Errorf("notification=%s, want message", n)
		}
	default:
		t.Error("message should notify the main loop")
	}
}

func TestMessageEndpointRejectsEmpty(t *testing.T) {
	s := newTestAPI(t)
	app := s.app()

	req := httptest.NewRequest("POST", "/api/message", strings.NewReader(`{"from_device":"peer"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Errorf("status %d for empty message, want 400", resp.StatusCode)
	}
	if got := s.messages.Count(); got != 0 {
		t.Errorf("empty message stored, count=%d", got)
	}
}

func TestFeedEndpoint(t *testing.T) {
	s := newTestAPI(t)
	app := s.app()

	before := s.pet.Snapshot().Hunger
	resp, err := app.Test(httptest.NewRequest("POST", "/api/feed", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	if got := s.pet.Snapshot().Hunger; got >= before {
		t.Errorf("hunger %d -> %d, want a decrease", before, got)
	}

	select {
	case n := <-s.notify:
		if n != NotifyFeed {
			t.Errorf("notification=%s, want feed", n)
		}
	default:
		t.Error("feed should notify the main loop")
	}
}

func TestPokeEndpoint(t *testing.T) {
	s := newTestAPI(t)
	app := s.app()

	before := s.pet.Snapshot()
	req := httptest.NewRequest("POST", "/api/poke", strings.NewReader(`{"from_device":"peer"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	after := s.pet.Snapshot()
	if after.TotalInteractions != before.TotalInteractions+1 {
		t.Error("poke should count as an interaction")
	}
	// A named sender leaves a poke entry in the inbox.
	if got := s.messages.Count(); got != 1 {
		t.Errorf("poke message count=%d, want 1", got)
	}
}

func TestFrameEndpoint(t *testing.T) {
	s := newTestAPI(t)
	app := s.app()

	if _, err := s.coordinator.Commit(false); err != nil {
		t.Fatalf("seeding frame: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/frame.png", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type %q, want image/png", ct)
	}

	decoded, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != EPD_WIDTH || b.Dy() != EPD_HEIGHT {
		t.Errorf("frame is %dx%d, want %dx%d", b.Dx(), b.Dy(), EPD_WIDTH, EPD_HEIGHT)
	}
}

func TestNotificationQueueDoesNotBlock(t *testing.T) {
	s := newTestAPI(t)

	// Fill the buffer past capacity; push must drop, never block.
	for i := 0; i < 20; i++ {
		s.push(NotifyFeed)
	}
	if got := len(s.notify); got != cap(s.notify) {
		t.Errorf("queued %d notifications, want the channel capacity %d", got, cap(s.notify))
	}
}
