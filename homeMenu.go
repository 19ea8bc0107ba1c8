package main

import (
	"fmt"
	"image"
	"log"
	"strings"
)

// HomeMenu is the clock/pet screen at index 0. Besides the full render it
// carries the two narrow partial updaters that keep the clock digits and
// the sprite fresh without repainting the whole panel.
type HomeMenu struct {
	ctx  *menuContext
	anim *AnimationState
}

func newHomeMenu(ctx *menuContext, anim *AnimationState) *HomeMenu {
	return &HomeMenu{ctx: ctx, anim: anim}
}

func (m *HomeMenu) Name() string { return "home" }

var moodGlyphs = map[Mood]string{
	MoodHappy:    ":)",
	MoodNeutral:  ":|",
	MoodSad:      ":(",
	MoodHungry:   ":P",
	MoodSick:     ":X",
	MoodSleeping: "zZ",
	MoodDead:     "xx",
}

func (m *HomeMenu) Render(full bool) error {
	c := m.ctx
	pet := c.pet.Snapshot()
	mood := moodFor(pet)

	_, err := c.coordinator.Render(!full, func(canvas *image.RGBA) {
		// Date top-left, giant clock center-left, sprite on the right.
		drawText(canvas, c.dateString(), dateRect.Min.X, dateRect.Min.Y, c.fonts.medium)
		m.drawClock(canvas)
		m.drawSprite(canvas)

		drawHLine(canvas, 0, EPD_WIDTH, separatorY)

		// Condensed stats bar.
		statsY := statsBarRect.Min.Y + 2
		drawHearts(canvas, 5, statsY, minInt(pet.Health/3, 3), 3)

		hungerLevel := minInt(maxInt(pet.Hunger/3, 0), 3)
		if hungerLevel > 0 {
			drawText(canvas, strings.Repeat("*", hungerLevel), 50, statsY, c.fonts.small)
		} else {
			drawText(canvas, "FED", 50, statsY, c.fonts.small)
		}

		glyph, ok := moodGlyphs[mood]
		if !ok {
			glyph = moodGlyphs[MoodNeutral]
		}
		drawText(canvas, glyph, 90, statsY, c.fonts.small)

		if unread := c.messages.UnreadCount(); unread > 0 {
			drawText(canvas, fmt.Sprintf("MSG:%d", unread), 120, statsY, c.fonts.small)
		}

		// Network trouble marker in the top-right corner.
		if c.stats.Snapshot().LastError != nil {
			drawText(canvas, "!", 230, 5, c.fonts.small)
		}

		c.drawHints(canvas, "[Feed]", "[Msg]")
	})
	return err
}

func (m *HomeMenu) drawClock(canvas *image.RGBA) {
	drawText(canvas, m.ctx.timeString(false), clockRect.Min.X, clockRect.Min.Y, m.ctx.fonts.giant)
}

func (m *HomeMenu) drawSprite(canvas *image.RGBA) {
	mood, frame := m.anim.Current()
	sprite, err := loadSprite(spritePath(m.ctx.cfg.spriteDir(), string(mood), frame))
	if err != nil {
		drawASCIIPet(canvas, spriteRect.Min.X, spriteRect.Min.Y+5, m.ctx.fonts.small)
		return
	}
	drawSpriteScaled(canvas, sprite, spriteRect)
}

// UpdateClockField redraws only the time digits and pushes that region.
// Failures are absorbed: the coordinator already dropped the base image, so
// the next render rebuilds the screen in full.
func (m *HomeMenu) UpdateClockField() {
	if kind, err := m.ctx.coordinator.UpdateField(clockRect, m.drawClock); err != nil {
		log.Printf("clock field update (%s): %v", kind, err)
	}
}

// UpdateSpriteField redraws only the sprite region; same failure policy as
// the clock field.
func (m *HomeMenu) UpdateSpriteField() {
	if kind, err := m.ctx.coordinator.UpdateField(spriteRect, m.drawSprite); err != nil {
		log.Printf("sprite field update (%s): %v", kind, err)
	}
}

// OnBack is Home's primary action: feed the pet.
func (m *HomeMenu) OnBack() error {
	m.ctx.pet.Feed()
	return nil
}

// OnActivate sends a poke to the companion device.
func (m *HomeMenu) OnActivate() error {
	if m.ctx.peer == nil {
		return nil
	}
	if err := m.ctx.peer.SendPoke(); err != nil {
		m.ctx.stats.RecordError(err)
		return fmt.Errorf("sending poke: %w", err)
	}
	m.ctx.pet.MessageSent()
	m.ctx.stats.IncMessagesSent()
	return nil
}
