package main

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestMenuContext(t *testing.T) (*menuContext, *mockPanel) {
	t.Helper()
	cfg := testConfig(t)

	panel := newMockPanel()
	ctx := &menuContext{
		cfg:         cfg,
		coordinator: newTestCoordinator(panel, 10),
		fonts:       builtinFonts(),
		loc:         time.UTC,
		pet:         newPetState(cfg),
		messages:    newMessageLog(cfg),
		settings:    newSettings(cfg),
		stats:       newStats(cfg),
	}
	return ctx, panel
}

func TestAllMenusRender(t *testing.T) {
	ctx, panel := newTestMenuContext(t)
	ctx.messages.Add("peer", "hola, como estas", "text")

	anim := newAnimationState(ctx.pet.Mood())
	menus := []Menu{
		newHomeMenu(ctx, anim),
		newMessagesMenu(ctx),
		newStatsMenu(ctx),
		newSettingsMenu(ctx),
	}
	for _, m := range menus {
		if err := m.Render(true); err != nil {
			t.Fatalf("%s render: %v", m.Name(), err)
		}
	}

	fulls, partials := panel.counts()
	if fulls != 4 || partials != 0 {
		t.Errorf("panel saw fulls=%d partials=%d, want 4/0", fulls, partials)
	}
}

// Menu drawing and the HTTP frame snapshot share the canvas; both sides go
// through the coordinator lock, so running them concurrently must be safe.
func TestFrameSnapshotDuringRender(t *testing.T) {
	ctx, _ := newTestMenuContext(t)
	home := newHomeMenu(ctx, newAnimationState(MoodNeutral))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if frame := ctx.coordinator.FrameSnapshot(); frame == nil {
				t.Error("snapshot returned nil")
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		if err := home.Render(true); err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
	}
	<-done
}

func TestMessagesAckOnRead(t *testing.T) {
	ctx, _ := newTestMenuContext(t)

	var posts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/message" {
			atomic.AddInt32(&posts, 1)
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	ctx.peer = &PeerClient{
		deviceName: ctx.cfg.DeviceName,
		baseURL:    srv.URL,
		http:       srv.Client(),
	}

	m := newMessagesMenu(ctx)
	ctx.messages.Add("peer", "hello", "text")

	if err := m.OnActivate(); err != nil {
		t.Fatalf("activate with unread: %v", err)
	}
	if got := atomic.LoadInt32(&posts); got != 1 {
		t.Errorf("ack posts=%d, want 1", got)
	}
	if got := ctx.pet.Snapshot().MessagesSent; got != 1 {
		t.Errorf("messages sent=%d, want 1", got)
	}

	// Everything already read: cursor moves but no second ack goes out.
	if err := m.OnActivate(); err != nil {
		t.Fatalf("activate with nothing unread: %v", err)
	}
	if got := atomic.LoadInt32(&posts); got != 1 {
		t.Errorf("ack posts=%d after re-activate, want still 1", got)
	}
}

func TestRefreshModeChangeAppliesCycleLimit(t *testing.T) {
	ctx, _ := newTestMenuContext(t)
	m := newSettingsMenu(ctx)
	m.selected = 2

	// balanced -> slow
	if err := m.OnActivate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if got := ctx.settings.RefreshMode(); got != "slow" {
		t.Fatalf("refresh mode=%q, want slow", got)
	}
	if got := ctx.coordinator.cycleLimit; got != refreshModeCycles["slow"] {
		t.Errorf("coordinator cycle limit=%d, want %d", got, refreshModeCycles["slow"])
	}
}
