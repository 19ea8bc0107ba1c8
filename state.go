package main

import (
	"bufio"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Mood is the pet's derived emotional state; it selects the sprite
// animation sequence.
type Mood string

const (
	MoodHappy    Mood = "happy"
	MoodNeutral  Mood = "neutral"
	MoodSad      Mood = "sad"
	MoodHungry   Mood = "hungry"
	MoodSick     Mood = "sick"
	MoodSleeping Mood = "sleeping"
	MoodDead     Mood = "dead"
)

const (
	maxHunger    = 10
	maxHappiness = 10
	maxHealth    = 10
)

// writeJSONAtomic persists v as indented JSON via temp file + rename, so a
// crash mid-write never corrupts the store.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

//---------------- Pet state ----------------

type petData struct {
	Name              string    `json:"name"`
	Type              string    `json:"type"`
	Hunger            int       `json:"hunger"`
	Happiness         int       `json:"happiness"`
	Health            int       `json:"health"`
	LastFed           time.Time `json:"last_fed"`
	LastInteraction   time.Time `json:"last_interaction"`
	LastUpdate        time.Time `json:"last_update"`
	CreatedAt         time.Time `json:"created_at"`
	AgeHours          int       `json:"age_hours"`
	TotalFeeds        int       `json:"total_feeds"`
	TotalInteractions int       `json:"total_interactions"`
	MessagesSent      int       `json:"messages_sent"`
	MessagesReceived  int       `json:"messages_received"`
}

// PetState holds the pet simulation values, persisted to JSON after every
// mutation. Safe for concurrent use (API handlers and the main loop both
// touch it).
type PetState struct {
	mu   sync.Mutex
	path string

	hungerDecay    float64 // points per hour
	happinessDecay float64

	data petData
}

func newPetState(cfg Config) *PetState {
	p := &PetState{
		path:           filepath.Join(cfg.DataDir, "pet_state.json"),
		hungerDecay:    cfg.HungerDecayRate,
		happinessDecay: cfg.HappinessDecayRate,
	}

	raw, err := os.ReadFile(p.path)
	if err == nil {
		if err := json.Unmarshal(raw, &p.data); err != nil {
			log.Printf("pet state unreadable, starting fresh: %v", err)
			p.data = defaultPet(cfg)
		}
	} else {
		p.data = defaultPet(cfg)
		p.saveLocked()
	}
	return p
}

func defaultPet(cfg Config) petData {
	now := time.Now().UTC()
	return petData{
		Name:            cfg.PetName,
		Type:            cfg.PetType,
		Hunger:          5,
		Happiness:       8,
		Health:          10,
		LastFed:         now,
		LastInteraction: now,
		LastUpdate:      now,
		CreatedAt:       now,
	}
}

func (p *PetState) saveLocked() {
	if err := writeJSONAtomic(p.path, &p.data); err != nil {
		log.Printf("saving pet state: %v", err)
	}
}

// Snapshot returns a copy of the raw pet values.
func (p *PetState) Snapshot() petData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data
}

// Feed lowers hunger and nudges happiness up.
func (p *PetState) Feed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now().UTC()
	p.data.Hunger = maxInt(0, p.data.Hunger-3)
	p.data.Happiness = minInt(maxHappiness, p.data.Happiness+1)
	p.data.LastFed = now
	p.data.LastInteraction = now
	p.data.TotalFeeds++
	p.saveLocked()
}

// Interact records a poke or pet, raising happiness.
func (p *PetState) Interact() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.Happiness = minInt(maxHappiness, p.data.Happiness+2)
	p.data.LastInteraction = time.Now().UTC()
	p.data.TotalInteractions++
	p.saveLocked()
}

func (p *PetState) MessageSent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.MessagesSent++
	p.data.LastInteraction = time.Now().UTC()
	p.saveLocked()
}

func (p *PetState) MessageReceived() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.MessagesReceived++
	p.saveLocked()
}

// Decay applies time-based hunger/happiness decay and the health response.
// Intervals under six minutes are skipped so restarts do not bleed stats.
func (p *PetState) Decay(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hours := now.Sub(p.data.LastUpdate).Hours()
	if hours < 0.1 {
		return
	}

	p.data.Hunger = minInt(maxHunger, p.data.Hunger+int(hours*p.hungerDecay))
	p.data.Happiness = maxInt(0, p.data.Happiness-int(hours*p.happinessDecay))

	switch {
	case p.data.Hunger >= 8:
		p.data.Health = maxInt(0, p.data.Health-1)
	case p.data.Hunger <= 2 && p.data.Happiness >= 7:
		p.data.Health = minInt(maxHealth, p.data.Health+1)
	}

	p.data.AgeHours += int(hours)
	p.data.LastUpdate = now
	p.saveLocked()
}

// Mood derives the pet's emotional state from its stats.
func (p *PetState) Mood() Mood {
	p.mu.Lock()
	defer p.mu.Unlock()
	return moodFor(p.data)
}

func moodFor(d petData) Mood {
	switch {
	case d.Health <= 0:
		return MoodDead
	case d.Health <= 3:
		return MoodSick
	case d.Hunger >= 7:
		return MoodHungry
	case d.Happiness >= 8:
		return MoodHappy
	case d.Happiness <= 3:
		return MoodSad
	default:
		return MoodNeutral
	}
}

//---------------- Message log ----------------

type Message struct {
	ID        int64     `json:"id"`
	From      string    `json:"from"`
	Text      string    `json:"message"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// MessageLog is an append-only JSONL log capped at maxMessages entries.
type MessageLog struct {
	mu          sync.Mutex
	path        string
	maxMessages int
}

func newMessageLog(cfg Config) *MessageLog {
	return &MessageLog{
		path:        filepath.Join(cfg.DataDir, "messages.jsonl"),
		maxMessages: 50,
	}
}

// Add appends a message and trims the log if it grew past the cap.
func (l *MessageLog) Add(from, text, msgType string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Message{
		ID:        time.Now().UTC().UnixMilli(),
		From:      from,
		Text:      text,
		Type:      msgType,
		Timestamp: time.Now().UTC(),
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	line, err := json.Marshal(entry)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return l.trimLocked()
}

func (l *MessageLog) readAllLocked() []Message {
	f, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []Message
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m Message
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			continue // skip torn lines
		}
		out = append(out, m)
	}
	return out
}

func (l *MessageLog) rewriteLocked(msgs []Message) error {
	var buf []byte
	for _, m := range msgs {
		line, err := json.Marshal(m)
		if err != nil {
			return err
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

func (l *MessageLog) trimLocked() error {
	msgs := l.readAllLocked()
	if len(msgs) <= l.maxMessages {
		return nil
	}
	return l.rewriteLocked(msgs[len(msgs)-l.maxMessages:])
}

// Messages returns up to limit entries, most recent first.
func (l *MessageLog) Messages(limit int) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	msgs := l.readAllLocked()
	// reverse to most-recent-first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs
}

// UnreadCount reports how many messages have not been marked read.
func (l *MessageLog) UnreadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, m := range l.readAllLocked() {
		if !m.Read {
			n++
		}
	}
	return n
}

// MarkAllRead flips every entry's read flag.
func (l *MessageLog) MarkAllRead() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	msgs := l.readAllLocked()
	for i := range msgs {
		msgs[i].Read = true
	}
	return l.rewriteLocked(msgs)
}

// Count returns the number of stored messages.
func (l *MessageLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.readAllLocked())
}

//---------------- Settings ----------------

type settingsData struct {
	TimeFormat           int       `json:"time_format"`
	Brightness           int       `json:"brightness"`
	SleepEnabled         bool      `json:"sleep_enabled"`
	SleepTime            string    `json:"sleep_time"`
	WakeTime             string    `json:"wake_time"`
	RefreshMode          string    `json:"refresh_mode"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	LastModified         time.Time `json:"last_modified"`
}

// Settings is the persisted user configuration edited on the settings menu.
type Settings struct {
	mu   sync.Mutex
	path string
	data settingsData
}

// refreshModes are cycled by the settings menu; each maps to a full-refresh
// cycle budget for the coordinator.
var refreshModes = []string{"fast", "balanced", "slow"}

var refreshModeCycles = map[string]int{
	"fast":     16,
	"balanced": 10,
	"slow":     6,
}

func newSettings(cfg Config) *Settings {
	s := &Settings{path: filepath.Join(cfg.DataDir, "settings.json")}

	raw, err := os.ReadFile(s.path)
	if err == nil && json.Unmarshal(raw, &s.data) == nil && s.data.TimeFormat != 0 {
		return s
	}
	s.data = settingsData{
		TimeFormat:           cfg.TimeFormat,
		Brightness:           3,
		SleepTime:            "23:00",
		WakeTime:             "07:00",
		RefreshMode:          "balanced",
		NotificationsEnabled: true,
		LastModified:         time.Now().UTC(),
	}
	s.saveLocked()
	return s
}

func (s *Settings) saveLocked() {
	s.data.LastModified = time.Now().UTC()
	if err := writeJSONAtomic(s.path, &s.data); err != nil {
		log.Printf("saving settings: %v", err)
	}
}

func (s *Settings) TimeFormat() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.TimeFormat
}

// ToggleTimeFormat flips between 12h and 24h and returns the new value.
func (s *Settings) ToggleTimeFormat() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.TimeFormat == 24 {
		s.data.TimeFormat = 12
	} else {
		s.data.TimeFormat = 24
	}
	s.saveLocked()
	return s.data.TimeFormat
}

func (s *Settings) Brightness() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Brightness
}

// CycleBrightness steps brightness through 1..5 and returns the new value.
func (s *Settings) CycleBrightness() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Brightness = s.data.Brightness%5 + 1
	s.saveLocked()
	return s.data.Brightness
}

func (s *Settings) RefreshMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.RefreshMode
}

// CycleLimit maps the refresh mode to its full-refresh cycle budget. An
// unknown stored mode falls back to def (the FULL_REFRESH_CYCLES env knob).
func (s *Settings) CycleLimit(def int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := refreshModeCycles[s.data.RefreshMode]; ok {
		return n
	}
	return def
}

// CycleRefreshMode steps fast -> balanced -> slow and returns the new mode.
func (s *Settings) CycleRefreshMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := 1 // balanced
	for i, m := range refreshModes {
		if m == s.data.RefreshMode {
			idx = i
			break
		}
	}
	s.data.RefreshMode = refreshModes[(idx+1)%len(refreshModes)]
	s.saveLocked()
	return s.data.RefreshMode
}

// Asleep reports whether now falls inside the configured sleep window.
func (s *Settings) Asleep(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.data.SleepEnabled {
		return false
	}
	sleep, err1 := time.Parse("15:04", s.data.SleepTime)
	wake, err2 := time.Parse("15:04", s.data.WakeTime)
	if err1 != nil || err2 != nil {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	sm := sleep.Hour()*60 + sleep.Minute()
	wm := wake.Hour()*60 + wake.Minute()
	if sm <= wm {
		return cur >= sm && cur < wm
	}
	// window wraps midnight
	return cur >= sm || cur < wm
}

//---------------- Stats ----------------

type statsData struct {
	FirstBoot             time.Time  `json:"first_boot"`
	TotalButtonPresses    int        `json:"total_button_presses"`
	TotalDisplayUpdates   int        `json:"total_display_updates"`
	TotalMessagesSent     int        `json:"total_messages_sent"`
	TotalMessagesReceived int        `json:"total_messages_received"`
	NetworkErrors         int        `json:"network_errors"`
	LastError             *lastError `json:"last_error"`
}

type lastError struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats tracks operational counters, persisted like the other stores.
type Stats struct {
	mu   sync.Mutex
	path string
	data statsData
}

func newStats(cfg Config) *Stats {
	s := &Stats{path: filepath.Join(cfg.DataDir, "stats.json")}

	raw, err := os.ReadFile(s.path)
	if err == nil && json.Unmarshal(raw, &s.data) == nil && !s.data.FirstBoot.IsZero() {
		return s
	}
	s.data = statsData{FirstBoot: time.Now().UTC()}
	s.saveLocked()
	return s
}

func (s *Stats) saveLocked() {
	if err := writeJSONAtomic(s.path, &s.data); err != nil {
		log.Printf("saving stats: %v", err)
	}
}

func (s *Stats) IncButtonPresses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.TotalButtonPresses++
	s.saveLocked()
}

func (s *Stats) IncDisplayUpdates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.TotalDisplayUpdates++
	s.saveLocked()
}

func (s *Stats) IncMessagesSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.TotalMessagesSent++
	s.saveLocked()
}

func (s *Stats) IncMessagesReceived() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.TotalMessagesReceived++
	s.saveLocked()
}

// RecordError notes a network failure for the status screen's error marker.
func (s *Stats) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.NetworkErrors++
	s.data.LastError = &lastError{
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
	s.saveLocked()
}

func (s *Stats) Snapshot() statsData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
