package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-ping/ping"
)

// PeerClient talks to the companion device's API. All sends carry a short
// timeout; the panel must never wait long on the network.
type PeerClient struct {
	deviceName string
	baseURL    string
	peerHost   string
	http       *http.Client

	reachable atomic.Bool
	peerMood  atomic.Value // string, last mood seen on the peer
}

func newPeerClient(cfg Config) *PeerClient {
	return &PeerClient{
		deviceName: cfg.DeviceName,
		baseURL:    remoteURL(cfg, ""),
		peerHost:   cfg.RemoteIP,
		http:       &http.Client{Timeout: 5 * time.Second},
	}
}

func (p *PeerClient) postJSON(endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := p.http.Post(p.baseURL+endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer returned %s for %s", resp.Status, endpoint)
	}
	return nil
}

// SendMessage delivers a text message to the peer's inbox.
func (p *PeerClient) SendMessage(text, msgType string) error {
	return p.postJSON("/api/message", map[string]string{
		"from_device": p.deviceName,
		"message":     text,
		"type":        msgType,
	})
}

// SendPoke sends the canned interaction message.
func (p *PeerClient) SendPoke() error {
	return p.postJSON("/api/poke", map[string]string{
		"from_device": p.deviceName,
	})
}

// RemoteStatus fetches the peer's status document.
func (p *PeerClient) RemoteStatus() (map[string]any, error) {
	resp, err := p.http.Get(p.baseURL + "/api/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("peer returned %s", resp.Status)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Probe pings the peer once and caches the result for the stats screen.
// Runs from its own ticker goroutine, never from the render path.
func (p *PeerClient) Probe() {
	pinger, err := ping.NewPinger(p.peerHost)
	if err != nil {
		p.reachable.Store(false)
		return
	}
	pinger.Count = 1
	pinger.Timeout = 2 * time.Second
	pinger.SetPrivileged(true) // raw ICMP, matches embedded deployments

	if err := pinger.Run(); err != nil {
		p.reachable.Store(false)
		return
	}

	up := pinger.Statistics().PacketsRecv > 0
	p.reachable.Store(up)
	if up {
		p.refreshPeerMood()
	}
}

// refreshPeerMood pulls the peer's status and caches its pet mood for the
// stats screen.
func (p *PeerClient) refreshPeerMood() {
	status, err := p.RemoteStatus()
	if err != nil {
		return
	}
	if mood, ok := status["mood"].(string); ok {
		p.peerMood.Store(mood)
	}
}

// Reachable reports the last probe result.
func (p *PeerClient) Reachable() bool {
	return p.reachable.Load()
}

// PeerMood returns the last cached peer pet mood, empty until a probe has
// succeeded.
func (p *PeerClient) PeerMood() string {
	if mood, ok := p.peerMood.Load().(string); ok {
		return mood
	}
	return ""
}
