package main

import (
	"errors"
	"log"
	"sync"
	"time"
)

// Menu is one screen. Render(full) draws the whole screen into the
// coordinator's canvas and commits it; full forces a full panel refresh.
// OnBack and OnActivate are the two menu-local interaction verbs; the state
// machine handles navigation itself.
type Menu interface {
	Name() string
	Render(full bool) error
	OnBack() error
	OnActivate() error
}

// errTooManyFailures escalates out of the state machine when even the
// recovery render of Home fails. There is deliberately no further retry
// layer below the process supervisor.
var errTooManyFailures = errors.New("menu: render failing repeatedly, recovery render failed")

const renderFailureLimit = 3

// MenuStateMachine owns the active-menu index and serializes every render
// and transition behind one guard. Button-triggered transitions block on
// the guard; periodic pollers use TryExclusive and skip their tick instead
// of stalling the loop. All panel I/O happens while the guard is held, so
// there is no window where the flags read clear mid-write.
type MenuStateMachine struct {
	mu sync.Mutex

	menus       []Menu
	coordinator *RefreshCoordinator
	stats       *Stats

	// guarded by mu
	current      int
	needsRender  bool
	inTransition bool
	rendering    bool
	failures     int
	lastButton   time.Time

	throttle time.Duration
	now      func() time.Time // swapped in tests
}

func newMenuStateMachine(menus []Menu, coordinator *RefreshCoordinator, stats *Stats, throttle time.Duration) *MenuStateMachine {
	return &MenuStateMachine{
		menus:       menus,
		coordinator: coordinator,
		stats:       stats,
		needsRender: true,
		throttle:    throttle,
		now:         time.Now,
	}
}

// CurrentIndex returns the active menu index (0 = Home).
func (m *MenuStateMachine) CurrentIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// RequestRender marks the current menu dirty; the next RenderCurrent tick
// redraws it.
func (m *MenuStateMachine) RequestRender() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.needsRender = true
}

// HandleEvent runs one button-triggered transition. Events arriving inside
// the throttle window, or while a render or transition is already underway,
// are dropped rather than queued. The returned error is nil except for the
// terminal repeated-failure condition, which the caller must treat as fatal.
func (m *MenuStateMachine) HandleEvent(ev ButtonEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rendering || m.inTransition {
		log.Printf("button %s dropped: busy", ev)
		return nil
	}
	// Throttle matches the panel's refresh latency, not just switch bounce.
	if m.now().Sub(m.lastButton) < m.throttle {
		log.Printf("button %s dropped: throttled", ev)
		return nil
	}
	m.lastButton = m.now()

	if m.stats != nil {
		m.stats.IncButtonPresses()
	}

	m.inTransition = true
	defer func() { m.inTransition = false }()

	switch ev {
	case ActionPress: // Next: advance menu, full redraw of the destination
		m.current = (m.current + 1) % len(m.menus)
		m.coordinator.Invalidate()
		return m.renderLocked(true)

	case ReturnPress: // Back: home's primary action, or navigate home
		if m.current == 0 {
			if err := m.menus[0].OnBack(); err != nil {
				log.Printf("home primary action: %v", err)
			}
			return m.renderLocked(false)
		}
		m.current = 0
		m.coordinator.Invalidate()
		return m.renderLocked(true)

	case GoPress: // Activate: delegate to the menu, then its own render
		if err := m.menus[m.current].OnActivate(); err != nil {
			log.Printf("%s activate: %v", m.menus[m.current].Name(), err)
		}
		return m.renderLocked(false)

	case ActionHold: // manual ghost clear: full redraw in place
		m.coordinator.Invalidate()
		return m.renderLocked(true)
	}
	return nil
}

// RenderCurrent is the idempotent periodic tick. It never blocks: if the
// guard is held by a transition or another render it no-ops this tick.
func (m *MenuStateMachine) RenderCurrent() error {
	if !m.mu.TryLock() {
		return nil
	}
	defer m.mu.Unlock()

	if !m.needsRender {
		return nil
	}
	return m.renderLocked(false)
}

// TryExclusive runs fn under the guard without blocking; reports whether it
// ran. fn receives the active menu index. Periodic field updaters (clock,
// sprite) go through here so a tick is skipped, never stalled, while a
// transition holds the guard.
func (m *MenuStateMachine) TryExclusive(fn func(current int)) bool {
	if !m.mu.TryLock() {
		return false
	}
	defer m.mu.Unlock()
	if m.rendering || m.inTransition {
		return false
	}
	fn(m.current)
	return true
}

// renderLocked renders the active menu with failure accounting. Callers
// hold mu. At the failure limit the machine forces Home and tries one
// recovery render; if that fails too the condition escalates.
func (m *MenuStateMachine) renderLocked(full bool) error {
	m.rendering = true
	err := m.menus[m.current].Render(full)
	m.rendering = false

	if err == nil {
		m.failures = 0
		m.needsRender = false
		if m.stats != nil {
			m.stats.IncDisplayUpdates()
		}
		return nil
	}

	m.failures++
	log.Printf("render %s failed (%d/%d): %v",
		m.menus[m.current].Name(), m.failures, renderFailureLimit, err)

	if m.failures < renderFailureLimit {
		m.needsRender = true // retry on a later tick
		return nil
	}

	// Forced recovery: back to Home with a clean slate.
	m.current = 0
	m.failures = 0
	m.coordinator.Invalidate()

	m.rendering = true
	recErr := m.menus[0].Render(true)
	m.rendering = false

	if recErr != nil {
		log.Printf("recovery render failed: %v", recErr)
		return errTooManyFailures
	}
	m.needsRender = false
	return nil
}
