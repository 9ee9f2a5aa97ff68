/*
Package chat contains the relay core: the connection registry, session handling, the frame
router with its binary upload sub-protocol, broadcast fan-out and the voice signaling relay.

This file defines the Hub, which owns the registry tables (connections, sessions, admins, voice
members) behind one RWMutex and fans events out to connection queues.
*/
package chat

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"relaychat/internal/app/history"
	"relaychat/internal/app/mail"
	"relaychat/internal/app/storage"
	"relaychat/internal/app/user"
	"relaychat/internal/pkg/logx"
)

const (
	// storeTimeout bounds a single store call made on behalf of one frame.
	storeTimeout = 10 * time.Second

	// cleanupTimeout bounds removing a blob whose message could not be saved.
	cleanupTimeout = 5 * time.Second
)

// Options holds the secrets the hub needs.
type Options struct {
	// JWTSecret signs session tokens.
	JWTSecret string

	// AdminPassphrase enables admin_login. Empty disables admin access entirely.
	AdminPassphrase string
}

// Deps are the collaborators the hub calls into.
type Deps struct {
	Users   user.Store
	History *history.Buffer
	Blobs   storage.StorageService
	Mailer  mail.Sender
	Metrics *Metrics
}

// registration is a connection's row in the registry. session is nil until login.
type registration struct {
	seq     uint64
	session *Session
}

// voiceEntry is a connection's row in the voice room.
type voiceEntry struct {
	seq    uint64
	member VoiceMember
}

// Hub coordinates every live connection of the process.
type Hub struct {
	opts    Options
	users   user.Store
	history *history.Buffer
	blobs   storage.StorageService
	mailer  mail.Sender
	metrics *Metrics
	routes  map[MessageType]frameHandler

	// mu protects the registry tables below.
	mu      sync.RWMutex
	seq     uint64
	clients map[*Client]*registration
	admins  map[*Client]struct{}
	voice   map[*Client]voiceEntry
	closing bool

	// fanoutMu serializes the users and voice_users snapshots with their delivery, so the
	// last list a client receives reflects the latest registry state.
	fanoutMu sync.Mutex

	storeTimeout time.Duration

	// background tracks notification jobs so Shutdown can wait for them.
	background sync.WaitGroup
	bgCtx      context.Context
	bgCancel   context.CancelFunc

	logger zerolog.Logger
}

// NewHub creates a hub with empty tables.
func NewHub(opts Options, deps Deps) *Hub {
	bgCtx, bgCancel := context.WithCancel(context.Background())

	h := &Hub{
		opts:         opts,
		users:        deps.Users,
		history:      deps.History,
		blobs:        deps.Blobs,
		mailer:       deps.Mailer,
		metrics:      deps.Metrics,
		clients:      make(map[*Client]*registration),
		admins:       make(map[*Client]struct{}),
		voice:        make(map[*Client]voiceEntry),
		storeTimeout: storeTimeout,
		bgCtx:        bgCtx,
		bgCancel:     bgCancel,
		logger:       logx.Component("hub"),
	}
	h.routes = h.handlers()

	return h
}

// Register adds an unauthenticated connection to the registry.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.seq++
	h.clients[c] = &registration{seq: h.seq}
	total := len(h.clients)
	h.recordGaugesLocked()
	h.mu.Unlock()

	c.logger.Info().Int("total_connections", total).Msg("Client connected.")
}

// Unregister removes c from the registry, the admin set and the voice room, closes its queue,
// and broadcasts presence and voice membership once. Unregistering a connection that is no
// longer registered does nothing.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	reg, ok := h.clients[c]
	if !ok {
		h.mu.Unlock()
		return
	}

	delete(h.clients, c)
	delete(h.admins, c)
	_, wasInVoice := h.voice[c]
	delete(h.voice, c)
	total := len(h.clients)
	h.recordGaugesLocked()
	h.mu.Unlock()

	c.closeSend()

	event := c.logger.Info().Int("total_connections", total).Bool("was_in_voice", wasInVoice)
	if reg.session != nil {
		event = event.Str("username", reg.session.Username)
	}
	event.Msg("Client disconnected.")

	h.broadcastPresence()
	h.broadcastVoiceMembers()
}

// Session returns the session installed on c, or nil when c is not authenticated.
func (h *Hub) Session(c *Client) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if reg, ok := h.clients[c]; ok {
		return reg.session
	}
	return nil
}

// isAdmin reports whether c is in the admin set.
func (h *Hub) isAdmin(c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.admins[c]
	return ok
}

// installSession binds s to c. It reports false when c disconnected in the meantime.
func (h *Hub) installSession(c *Client, s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	reg, ok := h.clients[c]
	if !ok {
		return false
	}
	reg.session = s
	h.recordGaugesLocked()
	return true
}

// replaceAvatar swaps the avatar on every live session of the account with email.
func (h *Hub) replaceAvatar(email, avatar string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	updated := 0
	for _, reg := range h.clients {
		if reg.session != nil && reg.session.Email == email {
			reg.session = reg.session.withAvatar(avatar)
			updated++
		}
	}
	return updated
}

// connectedEmails returns the emails of every authenticated connection.
func (h *Hub) connectedEmails() map[string]struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	emails := make(map[string]struct{}, len(h.clients))
	for _, reg := range h.clients {
		if reg.session != nil {
			emails[reg.session.Email] = struct{}{}
		}
	}
	return emails
}

// recordGaugesLocked must be called with mu held.
func (h *Hub) recordGaugesLocked() {
	authenticated := 0
	for _, reg := range h.clients {
		if reg.session != nil {
			authenticated++
		}
	}
	h.metrics.recordConnections(len(h.clients), authenticated, len(h.voice))
}

// --- Fan-out ---

// recipients snapshots the registry so delivery runs without holding mu.
func (h *Hub) recipients(except *Client) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c != except {
			targets = append(targets, c)
		}
	}
	return targets
}

// Broadcast delivers an event to every registered connection.
func (h *Hub) Broadcast(t MessageType, payload any) {
	h.deliver(t, payload, h.recipients(nil))
}

// BroadcastExcept delivers an event to every registered connection except excluded.
func (h *Hub) BroadcastExcept(t MessageType, payload any, excluded *Client) {
	h.deliver(t, payload, h.recipients(excluded))
}

// deliver marshals once and enqueues to each target. Targets whose queue is full or
// already closed are skipped.
func (h *Hub) deliver(t MessageType, payload any, targets []*Client) {
	started := time.Now()

	frame, err := json.Marshal(Envelope{Type: t, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("msg_type", string(t)).Msg("Error marshaling message for broadcast.")
		return
	}

	delivered := 0
	for _, c := range targets {
		if c.enqueue(frame) {
			delivered++
		} else {
			h.metrics.recordDropped(t)
		}
	}

	h.metrics.recordBroadcast(delivered, started)
}

// presence lists authenticated sessions in connection order.
func (h *Hub) presence() []PresenceEntry {
	h.mu.RLock()
	regs := make([]*registration, 0, len(h.clients))
	for _, reg := range h.clients {
		if reg.session != nil {
			regs = append(regs, reg)
		}
	}
	h.mu.RUnlock()

	sort.Slice(regs, func(i, j int) bool { return regs[i].seq < regs[j].seq })

	entries := make([]PresenceEntry, 0, len(regs))
	for _, reg := range regs {
		entries = append(entries, PresenceEntry{
			Username: reg.session.Username,
			Avatar:   cloneString(reg.session.Avatar),
		})
	}
	return entries
}

func (h *Hub) broadcastPresence() {
	h.fanoutMu.Lock()
	defer h.fanoutMu.Unlock()

	h.Broadcast(TypeUsers, h.presence())
}

// Shutdown closes every connection queue, stops background jobs from starting new work and
// waits for running ones until ctx is done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]*registration)
	h.admins = make(map[*Client]struct{})
	h.voice = make(map[*Client]voiceEntry)
	h.closing = true
	h.recordGaugesLocked()
	h.mu.Unlock()

	for _, c := range clients {
		c.closeSend()
	}
	h.logger.Info().Int("connections", len(clients)).Msg("Hub closed all connections.")

	done := make(chan struct{})
	go func() {
		h.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.bgCancel()
		return nil
	case <-ctx.Done():
		h.bgCancel()
		return ctx.Err()
	}
}

// goBackground runs fn on its own goroutine, tracked for Shutdown.
// Jobs requested after Shutdown started are dropped.
func (h *Hub) goBackground(name string, fn func(ctx context.Context) error) {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		h.logger.Debug().Str("job", name).Msg("Hub is shutting down, background job skipped.")
		return
	}
	h.background.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.background.Done()

		ctx, cancel := context.WithTimeout(h.bgCtx, time.Minute)
		defer cancel()

		if err := fn(ctx); err != nil {
			h.logger.Warn().Err(err).Str("job", name).Msg("Background job failed.")
		}
	}()
}

// storeContext bounds a store call made while handling one frame.
func (h *Hub) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.storeTimeout)
}
