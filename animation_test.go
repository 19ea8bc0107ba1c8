package main

import (
	"testing"
	"time"
)

func TestMoodChangeResetsFrameIndex(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := newAnimationState(MoodNeutral)

	if len(a.seq) != 8 {
		t.Fatalf("neutral sequence has %d frames, want 8", len(a.seq))
	}

	// Walk partway into the neutral loop.
	for i := 0; i < 6; i++ {
		now = now.Add(time.Second)
		a.Advance(MoodNeutral, now)
	}
	if a.idx != 6 {
		t.Fatalf("after 6 advances idx=%d, want 6", a.idx)
	}

	// Mood flips: the index must restart, never carry into the shorter
	// sequence.
	now = now.Add(time.Second)
	a.Advance(MoodHappy, now)

	mood, frame := a.Current()
	if mood != MoodHappy {
		t.Errorf("mood=%s, want happy", mood)
	}
	if frame != 0 {
		t.Errorf("frame=%d after mood change, want 0", frame)
	}
	if len(a.seq) != 5 {
		t.Errorf("happy sequence has %d frames, want 5", len(a.seq))
	}
}

func TestAnimationWrapsAround(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := newAnimationState(MoodHappy)

	want := []int{1, 2, 3, 4, 0}
	for i, w := range want {
		now = now.Add(time.Second)
		a.Advance(MoodHappy, now)
		if a.idx != w {
			t.Fatalf("advance %d: idx=%d, want %d", i, a.idx, w)
		}
	}
}

func TestSequenceForUnknownMood(t *testing.T) {
	seq := sequenceFor(Mood("confused"))
	if len(seq) != len(moodFrames[MoodNeutral]) {
		t.Error("unknown mood should fall back to the neutral sequence")
	}
}

func newTestScheduler(t *testing.T) (*AnimationScheduler, *AnimationState, *MenuStateMachine, *mockPanel) {
	t.Helper()
	cfg := testConfig(t)

	panel := newMockPanel()
	coordinator := newTestCoordinator(panel, 10)

	pet := newPetState(cfg)
	settings := newSettings(cfg)

	ctx := &menuContext{
		cfg:         cfg,
		coordinator: coordinator,
		fonts:       builtinFonts(),
		loc:         time.UTC,
		pet:         pet,
		messages:    newMessageLog(cfg),
		settings:    settings,
		stats:       newStats(cfg),
	}

	anim := newAnimationState(pet.Mood())
	home := newHomeMenu(ctx, anim)
	sm := newMenuStateMachine([]Menu{home, &fakeMenu{name: "other"}}, coordinator, nil, 300*time.Millisecond)

	sched := newAnimationScheduler(anim, pet, settings, sm, home, 100*time.Millisecond)
	return sched, anim, sm, panel
}

func TestSchedulerAdvancesOnHome(t *testing.T) {
	sched, anim, _, panel := newTestScheduler(t)

	before := anim.idx
	sched.Tick(time.Now())
	if anim.idx == before {
		t.Error("tick on home should advance the animation")
	}

	fulls, partials := panel.counts()
	if fulls+partials != 1 {
		t.Errorf("tick should push one sprite update, panel saw %d/%d", fulls, partials)
	}
}

func TestSchedulerSkipsOffHome(t *testing.T) {
	sched, anim, sm, _ := newTestScheduler(t)
	step := clockAt(sm)

	step(400 * time.Millisecond)
	if err := sm.HandleEvent(ActionPress); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	before := anim.idx
	sched.Tick(time.Now())
	if anim.idx != before {
		t.Error("tick away from home must not advance the animation")
	}
}

func TestSchedulerHonorsInterval(t *testing.T) {
	sched, anim, _, _ := newTestScheduler(t)

	now := time.Now()
	sched.Tick(now)
	first := anim.idx

	// Well inside the cadence: no advance.
	sched.Tick(now.Add(50 * time.Millisecond))
	if anim.idx != first {
		t.Error("tick inside the interval must not advance")
	}

	sched.Tick(now.Add(150 * time.Millisecond))
	if anim.idx == first {
		t.Error("tick past the interval should advance")
	}
}
