package main

import (
	"image"
	"image/color"
	"image/draw"
	"log"
	"sync"
	"time"
)

// CommitKind reports which refresh the panel actually performed, which may
// be stronger than what the caller asked for.
type CommitKind int

const (
	CommitFull CommitKind = iota
	CommitPartial
)

func (k CommitKind) String() string {
	if k == CommitFull {
		return "full"
	}
	return "partial"
}

// RefreshCoordinator owns the framebuffer and decides full versus partial
// refreshes. Partial updates are cheap but accumulate ghosting, so a full
// refresh is forced once either the cycle or the wall-clock limit since the
// last full is crossed, and whenever no base image is on the glass. All
// drawing happens inside Render/UpdateField closures so the canvas is only
// ever touched under the coordinator lock.
type RefreshCoordinator struct {
	mu    sync.RWMutex
	panel Panel

	canvas *image.RGBA

	baseEstablished bool
	cyclesSinceFull int
	lastFull        time.Time

	cycleLimit int
	timeLimit  time.Duration

	now func() time.Time // swapped in tests
}

func newRefreshCoordinator(panel Panel, cycleLimit int, timeLimit time.Duration) *RefreshCoordinator {
	c := &RefreshCoordinator{
		panel:      panel,
		canvas:     image.NewRGBA(image.Rect(0, 0, EPD_WIDTH, EPD_HEIGHT)),
		cycleLimit: cycleLimit,
		timeLimit:  timeLimit,
		now:        time.Now,
	}
	c.clearCanvasLocked()
	return c
}

// Render clears the canvas, runs drawFn on it and commits the result, all
// under the coordinator lock. Every canvas write goes through here or
// UpdateField so FrameSnapshot never observes a half-drawn frame.
func (c *RefreshCoordinator) Render(requestPartial bool, drawFn func(canvas *image.RGBA)) (CommitKind, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearCanvasLocked()
	drawFn(c.canvas)
	return c.commitLocked(requestPartial, c.canvas.Bounds())
}

func (c *RefreshCoordinator) clearCanvasLocked() {
	draw.Draw(c.canvas, c.canvas.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
}

// BaseEstablished reports whether a partial commit is currently valid.
func (c *RefreshCoordinator) BaseEstablished() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseEstablished
}

// Invalidate drops the base image, forcing the next commit to be full.
// Called on every menu switch: the glass now belongs to a different screen.
func (c *RefreshCoordinator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseEstablished = false
}

// SetCycleLimit adjusts the ghost-suppression cycle budget (the refresh_mode
// setting maps onto this).
func (c *RefreshCoordinator) SetCycleLimit(n int) {
	if n < 1 {
		n = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycleLimit = n
}

// Commit pushes the canvas to the panel. requestPartial is a preference, not
// a command: it is upgraded to full when no base image exists or when a
// ghost-suppression limit has been crossed.
func (c *RefreshCoordinator) Commit(requestPartial bool) (CommitKind, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked(requestPartial, c.canvas.Bounds())
}

// UpdateField clears a fixed rectangle to background, redraws it via drawFn
// and commits just that region. If no base image is established the whole
// screen is pushed full instead, so callers can use this unconditionally.
func (c *RefreshCoordinator) UpdateField(region image.Rectangle, drawFn func(canvas *image.RGBA)) (CommitKind, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	draw.Draw(c.canvas, region, &image.Uniform{color.White}, image.Point{}, draw.Src)
	drawFn(c.canvas)
	return c.commitLocked(true, region)
}

func (c *RefreshCoordinator) commitLocked(requestPartial bool, region image.Rectangle) (CommitKind, error) {
	full := !requestPartial

	if !c.baseEstablished {
		full = true
	} else if c.cyclesSinceFull >= c.cycleLimit {
		full = true
	} else if c.timeLimit > 0 && c.now().Sub(c.lastFull) >= c.timeLimit {
		full = true
	}

	if full {
		if err := c.panel.DrawFull(c.canvas); err != nil {
			// A failed write leaves the glass in an unknown state; drop
			// the base image so the next commit rebuilds it.
			c.baseEstablished = false
			return CommitFull, err
		}
		c.baseEstablished = true
		c.cyclesSinceFull = 0
		c.lastFull = c.now()
		return CommitFull, nil
	}

	if err := c.panel.DrawPartial(c.canvas, region); err != nil {
		c.baseEstablished = false
		return CommitPartial, err
	}
	c.cyclesSinceFull++
	return CommitPartial, nil
}

// FrameSnapshot returns a copy of the current canvas for the HTTP frame
// endpoint, without blocking renders for longer than the copy takes.
func (c *RefreshCoordinator) FrameSnapshot() *image.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneRGBA(c.canvas)
}

// Shutdown draws a goodbye screen and puts the panel to sleep.
func (c *RefreshCoordinator) Shutdown(fonts *fontSet) {
	c.mu.Lock()
	c.clearCanvasLocked()
	if fonts != nil {
		drawTextCentered(c.canvas, "Shutting down...", EPD_HEIGHT/2-8, fonts.medium)
	}
	if _, err := c.commitLocked(false, c.canvas.Bounds()); err != nil {
		log.Printf("shutdown screen: %v", err)
	}
	c.mu.Unlock()

	if err := c.panel.Sleep(); err != nil {
		log.Printf("panel sleep: %v", err)
	}
}
