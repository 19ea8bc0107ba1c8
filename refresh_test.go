package main

import (
	"image"
	"testing"
	"time"
)

func newTestCoordinator(panel Panel, cycleLimit int) *RefreshCoordinator {
	// timeLimit 0 disables the wall-clock trigger so cycle tests are exact
	return newRefreshCoordinator(panel, cycleLimit, 0)
}

func TestFirstCommitIsAlwaysFull(t *testing.T) {
	panel := newMockPanel()
	c := newTestCoordinator(panel, 10)

	if c.BaseEstablished() {
		t.Error("fresh coordinator should have no base image")
	}

	kind, err := c.Commit(true) // partial requested, no base yet
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if kind != CommitFull {
		t.Errorf("first commit should be upgraded to full, got %s", kind)
	}
	if !c.BaseEstablished() {
		t.Error("successful full commit should establish the base image")
	}

	fulls, partials := panel.counts()
	if fulls != 1 || partials != 0 {
		t.Errorf("panel saw fulls=%d partials=%d, want 1/0", fulls, partials)
	}
}

func TestPartialCycleLimitForcesFull(t *testing.T) {
	panel := newMockPanel()
	c := newTestCoordinator(panel, 10)

	if _, err := c.Commit(false); err != nil { // establish base
		t.Fatalf("initial commit: %v", err)
	}

	for i := 0; i < 10; i++ {
		kind, err := c.Commit(true)
		if err != nil {
			t.Fatalf("partial commit %d: %v", i, err)
		}
		if kind != CommitPartial {
			t.Fatalf("commit %d should still be partial, got %s", i, kind)
		}
	}

	// Cycle budget exhausted: next request is upgraded.
	kind, err := c.Commit(true)
	if err != nil {
		t.Fatalf("commit after limit: %v", err)
	}
	if kind != CommitFull {
		t.Errorf("commit past cycle limit should be full, got %s", kind)
	}

	fulls, partials := panel.counts()
	if fulls != 2 || partials != 10 {
		t.Errorf("panel saw fulls=%d partials=%d, want 2/10", fulls, partials)
	}
}

func TestTimeLimitForcesFull(t *testing.T) {
	panel := newMockPanel()
	c := newRefreshCoordinator(panel, 100, 300*time.Second)

	base := time.Now()
	c.now = func() time.Time { return base }

	if _, err := c.Commit(false); err != nil {
		t.Fatalf("initial commit: %v", err)
	}
	if kind, _ := c.Commit(true); kind != CommitPartial {
		t.Fatalf("commit within time limit should be partial, got %s", kind)
	}

	base = base.Add(301 * time.Second)
	kind, err := c.Commit(true)
	if err != nil {
		t.Fatalf("commit after time limit: %v", err)
	}
	if kind != CommitFull {
		t.Errorf("commit past time limit should be full, got %s", kind)
	}
}

func TestFailedCommitDropsBase(t *testing.T) {
	panel := newMockPanel()
	c := newTestCoordinator(panel, 10)

	if _, err := c.Commit(false); err != nil {
		t.Fatalf("initial commit: %v", err)
	}

	panel.failNext = 1
	if _, err := c.Commit(true); err == nil {
		t.Fatal("commit should propagate the panel error")
	}
	if c.BaseEstablished() {
		t.Error("failed commit must drop the base image")
	}

	// Recovery: the next commit rebuilds the screen in full.
	kind, err := c.Commit(true)
	if err != nil {
		t.Fatalf("recovery commit: %v", err)
	}
	if kind != CommitFull {
		t.Errorf("commit after failure should be full, got %s", kind)
	}
	if !c.BaseEstablished() {
		t.Error("recovery commit should re-establish the base")
	}
}

func TestUpdateFieldUpgradesWithoutBase(t *testing.T) {
	panel := newMockPanel()
	c := newTestCoordinator(panel, 10)

	region := image.Rect(10, 25, 175, 89)
	kind, err := c.UpdateField(region, func(canvas *image.RGBA) {})
	if err != nil {
		t.Fatalf("field update: %v", err)
	}
	if kind != CommitFull {
		t.Errorf("field update with no base should push full, got %s", kind)
	}

	kind, err = c.UpdateField(region, func(canvas *image.RGBA) {})
	if err != nil {
		t.Fatalf("second field update: %v", err)
	}
	if kind != CommitPartial {
		t.Errorf("field update with base should be partial, got %s", kind)
	}
	if panel.lastRect != region {
		t.Errorf("partial push used region %v, want %v", panel.lastRect, region)
	}
}

func TestSetCycleLimit(t *testing.T) {
	panel := newMockPanel()
	c := newTestCoordinator(panel, 10)

	if _, err := c.Commit(false); err != nil {
		t.Fatalf("initial commit: %v", err)
	}

	c.SetCycleLimit(2)
	if kind, _ := c.Commit(true); kind != CommitPartial {
		t.Fatal("first partial within new limit")
	}
	if kind, _ := c.Commit(true); kind != CommitPartial {
		t.Fatal("second partial within new limit")
	}
	if kind, _ := c.Commit(true); kind != CommitFull {
		t.Errorf("third commit should hit the reduced limit, got %s", kind)
	}
}
