package main

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// menuContext bundles the collaborators the menus draw from. Everything is
// injected from main; menus never reach for globals.
type menuContext struct {
	cfg         Config
	coordinator *RefreshCoordinator
	fonts       *fontSet
	loc         *time.Location

	pet      *PetState
	messages *MessageLog
	settings *Settings
	stats    *Stats
	peer     *PeerClient
}

func (c *menuContext) timeString(withSeconds bool) string {
	now := time.Now().In(c.loc)
	if c.settings.TimeFormat() == 12 {
		if withSeconds {
			return now.Format("03:04:05 PM")
		}
		return now.Format("03:04 PM")
	}
	if withSeconds {
		return now.Format("15:04:05")
	}
	return now.Format("15:04")
}

func (c *menuContext) dateString() string {
	return time.Now().In(c.loc).Format("Mon, Jan 02")
}

func (c *menuContext) peerMood() string {
	if c.peer == nil {
		return ""
	}
	return c.peer.PeerMood()
}

// drawHeader draws the menu title, the small corner clock and the rule
// under them, shared by every non-Home screen.
func (c *menuContext) drawHeader(canvas *image.RGBA, title string) {
	drawText(canvas, title, 5, 5, c.fonts.medium)
	drawText(canvas, c.timeString(false), headerTimeX, 5, c.fonts.small)
	drawHLine(canvas, 5, EPD_WIDTH-5, 22)
}

// drawHints draws the bottom button legend: left=RETURN, mid=GO, right=ACTION.
func (c *menuContext) drawHints(canvas *image.RGBA, left, mid string) {
	drawText(canvas, left, 5, hintsRect.Min.Y, c.fonts.small)
	drawText(canvas, mid, 80, hintsRect.Min.Y, c.fonts.small)
	drawText(canvas, "[>]", 210, hintsRect.Min.Y, c.fonts.small)
}

//---------------- Messages ----------------

// MessagesMenu shows the inbox with a cursor over the visible entries. The
// cursor survives navigating away and back.
type MessagesMenu struct {
	ctx      *menuContext
	selected int
}

func newMessagesMenu(ctx *menuContext) *MessagesMenu {
	return &MessagesMenu{ctx: ctx}
}

func (m *MessagesMenu) Name() string { return "messages" }

const messagesVisible = 3

func (m *MessagesMenu) Render(full bool) error {
	c := m.ctx
	msgs := c.messages.Messages(5)
	unread := c.messages.UnreadCount()

	_, err := c.coordinator.Render(!full, func(canvas *image.RGBA) {
		header := fmt.Sprintf("Messages (%d)", len(msgs))
		if unread > 0 {
			header += fmt.Sprintf(" - %d new", unread)
		}
		c.drawHeader(canvas, header)

		if len(msgs) == 0 {
			drawTextCentered(canvas, "No messages", 50, c.fonts.medium)
		} else {
			y := msgListTopY
			for i, msg := range msgs {
				if i >= messagesVisible {
					break
				}
				prefix := " "
				if i == m.selected {
					prefix = ">"
				}
				from := msg.From
				if from == "" {
					from = "Unknown"
				}
				line := fmt.Sprintf("%s %s -%s", prefix, truncateText(msg.Text, 20), from)
				drawText(canvas, line, 5, y, c.fonts.small)
				y += msgLineHeight
			}
		}

		c.drawHints(canvas, "[Back]", "[Read]")
	})
	return err
}

// OnBack is a no-op: navigation back to Home is the state machine's job.
func (m *MessagesMenu) OnBack() error { return nil }

// OnActivate advances the cursor and marks everything read. When there were
// unread messages, an ack goes back to the sender so the peer sees the note
// landed.
func (m *MessagesMenu) OnActivate() error {
	visible := minInt(m.ctx.messages.Count(), messagesVisible)
	if visible == 0 {
		return nil
	}
	m.selected = (m.selected + 1) % visible

	unread := m.ctx.messages.UnreadCount()
	if err := m.ctx.messages.MarkAllRead(); err != nil {
		return err
	}
	if unread == 0 || m.ctx.peer == nil {
		return nil
	}
	if err := m.ctx.peer.SendMessage("Got your message!", "ack"); err != nil {
		m.ctx.stats.RecordError(err)
		return fmt.Errorf("sending ack: %w", err)
	}
	m.ctx.pet.MessageSent()
	m.ctx.stats.IncMessagesSent()
	return nil
}

//---------------- Stats ----------------

// StatsMenu cycles between a pet page and a device page.
type StatsMenu struct {
	ctx  *menuContext
	page int
}

func newStatsMenu(ctx *menuContext) *StatsMenu {
	return &StatsMenu{ctx: ctx}
}

func (m *StatsMenu) Name() string { return "stats" }

func (m *StatsMenu) Render(full bool) error {
	c := m.ctx
	_, err := c.coordinator.Render(!full, func(canvas *image.RGBA) {
		c.drawHeader(canvas, "Pet Stats")

		y := 30
		const lineHeight = 14

		if m.page == 0 {
			pet := c.pet.Snapshot()

			drawText(canvas, fmt.Sprintf("Age: %dd %dh", pet.AgeHours/24, pet.AgeHours%24), 10, y, c.fonts.small)
			y += lineHeight
			drawText(canvas, fmt.Sprintf("Fed: %d times", pet.TotalFeeds), 10, y, c.fonts.small)
			y += lineHeight
			drawText(canvas, fmt.Sprintf("Msgs: %d sent, %d rcv", pet.MessagesSent, pet.MessagesReceived), 10, y, c.fonts.small)
			y += lineHeight

			stars := pet.Happiness / 2
			drawText(canvas, "Mood: "+strings.Repeat("*", stars)+strings.Repeat(".", 5-stars), 10, y, c.fonts.small)
			y += lineHeight
			drawText(canvas, fmt.Sprintf("H:%d F:%d M:%d", pet.Health, maxHunger-pet.Hunger, pet.Happiness), 10, y, c.fonts.small)
		} else {
			stats := c.stats.Snapshot()

			drawText(canvas, fmt.Sprintf("Up since: %s", stats.FirstBoot.In(c.loc).Format("Jan 02")), 10, y, c.fonts.small)
			y += lineHeight
			drawText(canvas, fmt.Sprintf("Presses: %d", stats.TotalButtonPresses), 10, y, c.fonts.small)
			y += lineHeight
			drawText(canvas, fmt.Sprintf("Updates: %d", stats.TotalDisplayUpdates), 10, y, c.fonts.small)
			y += lineHeight
			drawText(canvas, fmt.Sprintf("Net errors: %d", stats.NetworkErrors), 10, y, c.fonts.small)
			y += lineHeight

			link := "down"
			if c.peer != nil && c.peer.Reachable() {
				link = "up"
			}
			// Last known peer pet mood rides along on the link line.
			if mood := c.peerMood(); mood != "" {
				link += " (" + mood + ")"
			}
			drawText(canvas, "Peer link: "+link, 10, y, c.fonts.small)
		}

		c.drawHints(canvas, "[Back]", "[Next]")
	})
	return err
}

func (m *StatsMenu) OnBack() error { return nil }

// OnActivate flips between the two stat pages.
func (m *StatsMenu) OnActivate() error {
	m.page = (m.page + 1) % 2
	return nil
}

//---------------- Settings ----------------

// SettingsMenu edits the persisted user settings; the cursor advances after
// each change, matching the original's one-button editing flow.
type SettingsMenu struct {
	ctx      *menuContext
	selected int
}

var settingsItems = []string{"time_format", "brightness", "refresh_mode"}

func newSettingsMenu(ctx *menuContext) *SettingsMenu {
	return &SettingsMenu{ctx: ctx}
}

func (m *SettingsMenu) Name() string { return "settings" }

func (m *SettingsMenu) Render(full bool) error {
	c := m.ctx
	_, err := c.coordinator.Render(!full, func(canvas *image.RGBA) {
		c.drawHeader(canvas, "Settings")

		y := 30
		const lineHeight = 16

		cursor := func(i int) string {
			if m.selected == i {
				return ">"
			}
			return " "
		}

		drawText(canvas, fmt.Sprintf("%s Time: %dh", cursor(0), c.settings.TimeFormat()), 10, y, c.fonts.small)
		y += lineHeight

		brightness := c.settings.Brightness()
		drawText(canvas, fmt.Sprintf("%s Bright:", cursor(1)), 10, y, c.fonts.small)
		drawBar(canvas, 80, y+2, 60, 8, brightness, 5)
		y += lineHeight

		drawText(canvas, fmt.Sprintf("%s Refresh: %s", cursor(2), c.settings.RefreshMode()), 10, y, c.fonts.small)
		y += lineHeight + 10

		drawText(canvas, "Device: "+c.cfg.DeviceName, 10, y, c.fonts.small)

		c.drawHints(canvas, "[Back]", "[Chg]")
	})
	return err
}

func (m *SettingsMenu) OnBack() error { return nil }

// OnActivate mutates the selected setting, then moves the cursor on.
func (m *SettingsMenu) OnActivate() error {
	switch m.selected {
	case 0:
		m.ctx.settings.ToggleTimeFormat()
	case 1:
		m.ctx.settings.CycleBrightness()
	case 2:
		m.ctx.settings.CycleRefreshMode()
		m.ctx.coordinator.SetCycleLimit(m.ctx.settings.CycleLimit(m.ctx.cfg.FullRefreshCycles))
	}
	m.selected = (m.selected + 1) % len(settingsItems)
	return nil
}
