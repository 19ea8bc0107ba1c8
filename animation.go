package main

import (
	"time"
)

// moodFrames maps each mood to its sprite-sheet frame sequence. Frame
// numbers index into assets/sprites/<mood>/<n>.png; sequence lengths are
// coordinated with the extracted sheets.
var moodFrames = map[Mood][]int{
	MoodNeutral:  {0, 1, 2, 3, 4, 5, 6, 7},
	MoodHappy:    {0, 1, 2, 3, 4},
	MoodSad:      {0, 1},
	MoodHungry:   {0, 1, 2},
	MoodSick:     {0, 1},
	MoodSleeping: {0, 1},
	MoodDead:     {0},
}

func sequenceFor(mood Mood) []int {
	if seq, ok := moodFrames[mood]; ok {
		return seq
	}
	return moodFrames[MoodNeutral]
}

// AnimationState tracks the sprite animation. It is only ever touched while
// the menu guard is held (scheduler ticks and Home renders both run under
// it), so it carries no lock of its own.
type AnimationState struct {
	mood     Mood
	seq      []int
	idx      int
	lastTick time.Time
}

func newAnimationState(mood Mood) *AnimationState {
	return &AnimationState{
		mood: mood,
		seq:  sequenceFor(mood),
	}
}

// Advance steps the animation one frame. A mood change replaces the
// sequence and resets the index in the same step, so a stale index never
// outlives its sequence.
func (a *AnimationState) Advance(mood Mood, now time.Time) {
	if mood != a.mood {
		a.mood = mood
		a.seq = sequenceFor(mood)
		a.idx = 0
	} else {
		a.idx = (a.idx + 1) % len(a.seq)
	}
	a.lastTick = now
}

// Current returns the mood and frame identifier to draw.
func (a *AnimationState) Current() (Mood, int) {
	return a.mood, a.seq[a.idx]
}

// AnimationScheduler advances the pet sprite on a fixed cadence, but only
// while Home is the active menu and no transition is underway. It never
// forces a full redraw itself; if the base image is missing the field
// updater upgrades to full on its own.
type AnimationScheduler struct {
	state    *AnimationState
	pet      *PetState
	settings *Settings
	sm       *MenuStateMachine
	home     *HomeMenu
	interval time.Duration
}

func newAnimationScheduler(state *AnimationState, pet *PetState, settings *Settings, sm *MenuStateMachine, home *HomeMenu, interval time.Duration) *AnimationScheduler {
	return &AnimationScheduler{
		state:    state,
		pet:      pet,
		settings: settings,
		sm:       sm,
		home:     home,
		interval: interval,
	}
}

// Tick runs one scheduler step. Skipped ticks (guard busy, wrong menu, too
// soon) are normal operation, not errors.
func (s *AnimationScheduler) Tick(now time.Time) {
	s.sm.TryExclusive(func(current int) {
		if current != 0 {
			return
		}
		if now.Sub(s.state.lastTick) < s.interval {
			return
		}

		mood := s.pet.Mood()
		if mood != MoodDead && s.settings.Asleep(now) {
			mood = MoodSleeping
		}

		s.state.Advance(mood, now)
		s.home.UpdateSpriteField()
	})
}
