package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/engine"
	"github.com/tcriess/lightspeed-poker/globals"
	"github.com/tcriess/lightspeed-poker/persistence"
	"github.com/tcriess/lightspeed-poker/types"
)

const (
	maxMessageSize    = 4096
	pongWait          = 2 * time.Minute
	pingPeriod        = time.Minute
	writeWait         = 10 * time.Second
	submitChannelSize = 256
)

// A Submission is one inbound event together with the connection that sent
// it, so errors can be directed back to the sender.
type Submission struct {
	Client *Client
	Event  types.Event
}

// Hub is the per-room actor. All state transitions of its room run on the
// single goroutine executing Run, one at a time, in the order they drain from
// the Submit channel. Each connection's read loop submits sequentially, so
// per-connection FIFO ordering holds; across connections the channel order is
// the committed order. The hub owns its Room exclusively: nothing outside the
// Run goroutine mutates it.
type Hub struct {
	// there is one hub per room
	Room *types.Room

	// Registered clients.
	clients map[*Client]struct{}

	// Register a new client to the hub.
	Register chan *Client

	// Unregister a client from the hub.
	Unregister chan *Client

	// Submit delivers decoded events for serialized application.
	Submit chan Submission

	// global configuration
	Cfg *config.Config

	// persistence (may be nil)
	Persister persistence.Persister

	done chan struct{}

	// The time the hub last went empty, zero while clients are connected.
	// Guarded by the mutex together with clients, both are read by the idle
	// sweep from outside the hub goroutine.
	idleSince time.Time

	sync.RWMutex
}

func NewHub(room *types.Room, cfg *config.Config, persister persistence.Persister) *Hub {
	return &Hub{
		Room:       room,
		clients:    make(map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Submit:     make(chan Submission, submitChannelSize),
		Cfg:        cfg,
		Persister:  persister,
		done:       make(chan struct{}),
		idleSince:  time.Now(),
	}
}

// NoClients returns the number of registered connections.
func (h *Hub) NoClients() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.clients)
}

// IdleSince returns when the hub last went empty, or the zero time if
// clients are connected.
func (h *Hub) IdleSince() time.Time {
	h.RLock()
	defer h.RUnlock()
	return h.idleSince
}

// Stop terminates the run loop. Pending submissions are dropped.
func (h *Hub) Stop() {
	close(h.done)
}

// RegisterClient hands a new connection to the run loop. It returns false
// when the hub was stopped before the loop could take the client, so callers
// can look the room up again instead of blocking on a channel nobody reads.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// unregisterClient is the failable counterpart used by the pump loops and the
// broadcast drop path. After Stop the run loop is gone, the unregister is then
// simply dropped.
func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Run is the main hub event loop handling register, unregister and event
// submissions. It is the only goroutine that touches h.Room.
func (h *Hub) Run() {
	globals.AppLogger.Info("starting hub", "room", h.Room.Id)
	for {
		select {
		case client := <-h.Register:
			h.Lock()
			h.clients[client] = struct{}{}
			h.idleSince = time.Time{}
			h.Unlock()
			// the newcomer gets the current state right away, everyone else
			// is unaffected until a transition commits
			if frame := EncodeSnapshot(engine.Snapshot(h.Room)); frame != nil {
				h.send(client, frame)
			}

		case client := <-h.Unregister:
			h.Lock()
			if _, ok := h.clients[client]; !ok {
				h.Unlock()
				continue
			}
			delete(h.clients, client)
			if len(h.clients) == 0 {
				h.idleSince = time.Now()
			}
			h.Unlock()
			if client.participantId != "" {
				pid := client.participantId
				// sever the participant link first, a submission already
				// queued behind this unregister must not mutate the room
				client.participantId = ""
				if err := engine.Disconnect(h.Room, pid); err != nil {
					globals.AppLogger.Error("disconnect transition failed", "room", h.Room.Id, "error", err)
					continue
				}
				h.broadcast()
			}

		case sub := <-h.Submit:
			h.apply(sub)

		case <-h.done:
			globals.AppLogger.Info("stopping hub", "room", h.Room.Id)
			h.persistRoom()
			// close any connection registered in the window between the stop
			// and the loop noticing it, its pumps would otherwise never learn
			// that the room is gone
			h.RLock()
			for client := range h.clients {
				client.detach()
			}
			h.RUnlock()
			return
		}
	}
}

// apply runs one transition against the room. On failure the room is
// untouched and only the submitting connection hears about it.
func (h *Hub) apply(sub Submission) {
	requestId := types.RequestId(sub.Event)
	err := h.applyEvent(sub)
	if err != nil {
		e := engine.AsError(err)
		if e.Code == engine.CodeInternal {
			globals.AppLogger.Error("transition failed", "room", h.Room.Id, "event", sub.Event.EventType(), "error", err)
		}
		if frame := EncodeError(requestId, e); frame != nil {
			h.send(sub.Client, frame)
		}
		return
	}
	h.broadcast()
}

func (h *Hub) applyEvent(sub Submission) error {
	switch ev := sub.Event.(type) {
	case *types.JoinEvent:
		return h.applyJoin(sub.Client, ev)

	case *types.VoteEvent:
		pid, err := h.requireJoined(sub.Client)
		if err != nil {
			return err
		}
		return engine.CastVote(h.Room, pid, ev.Value)

	case *types.RevealEvent:
		pid, err := h.requireJoined(sub.Client)
		if err != nil {
			return err
		}
		justRevealed, err := engine.Reveal(h.Room, pid)
		if err != nil {
			return err
		}
		if justRevealed {
			h.persistVotes()
		}
		return nil

	case *types.ResetEvent:
		pid, err := h.requireJoined(sub.Client)
		if err != nil {
			return err
		}
		if err := engine.Reset(h.Room, pid); err != nil {
			return err
		}
		h.persistRoomAsync()
		return nil

	case *types.ToggleObserverEvent:
		pid, err := h.requireJoined(sub.Client)
		if err != nil {
			return err
		}
		return engine.ToggleObserver(h.Room, pid)

	case *types.KickEvent:
		pid, err := h.requireJoined(sub.Client)
		if err != nil {
			return err
		}
		if err := engine.Kick(h.Room, pid, ev.PlayerId); err != nil {
			return err
		}
		// detach any connection of the kicked participant, its events from
		// here on fail with "join first"
		h.RLock()
		for client := range h.clients {
			if client.participantId == ev.PlayerId {
				client.participantId = ""
			}
		}
		h.RUnlock()
		return nil
	}
	return engine.NewValidationError("unsupported event %s", sub.Event.EventType())
}

func (h *Hub) applyJoin(client *Client, ev *types.JoinEvent) error {
	token := ev.SessionToken
	if token == "" || h.Room.ParticipantByToken(token) == nil {
		token = client.Identity.SessionToken
	}
	nick := ev.Username
	if nick == "" {
		nick = client.Identity.Nick
	}
	// the resolved user id doubles as the participant id, a second
	// connection of the same user under a different session gets a fresh one
	id := client.Identity.UserId
	if id == "" || h.Room.ParticipantById(id) != nil {
		id = uuid.NewString()
	}
	firstJoin := len(h.Room.Participants) == 0
	p, err := engine.Join(h.Room, engine.JoinParams{
		Id:           id,
		Nick:         nick,
		SessionToken: token,
	})
	if err != nil {
		return err
	}
	if firstJoin && ev.Deck != "" {
		deck := deckByName(h.Cfg, ev.Deck)
		h.Room.Deck = deck
		h.Room.DeckName = deck.Name
	}
	client.participantId = p.Id
	if frame := EncodeSession(ev.RequestId, p.Id, p.SessionToken); frame != nil {
		h.send(client, frame)
	}
	h.persistRoomAsync()
	return nil
}

func (h *Hub) requireJoined(client *Client) (string, error) {
	if client.participantId == "" {
		return "", engine.NewStateError("join the room first")
	}
	return client.participantId, nil
}

// broadcast serializes the room once and enqueues the frame on every
// registered connection. The enqueue never blocks: a client whose send buffer
// is full is dropped so one stuck connection cannot stall the room, and a
// failed enqueue never prevents delivery to the remaining clients.
func (h *Hub) broadcast() {
	frame := EncodeSnapshot(engine.Snapshot(h.Room))
	if frame == nil {
		return
	}
	var stuck []*Client
	h.RLock()
	for client := range h.clients {
		select {
		case client.Send <- frame:
		default:
			stuck = append(stuck, client)
		}
	}
	h.RUnlock()
	for _, client := range stuck {
		globals.AppLogger.Warn("send buffer full, dropping client", "room", h.Room.Id)
		client.detach()
		go h.unregisterClient(client)
	}
}

// send enqueues a directed frame on a single connection.
func (h *Hub) send(client *Client, frame []byte) {
	select {
	case client.Send <- frame:
	default:
		globals.AppLogger.Warn("send buffer full, dropping directed frame", "room", h.Room.Id)
	}
}

// persistVotes writes the revealed round's votes as history, off the hub
// goroutine so the next transition is never blocked on storage.
func (h *Hub) persistVotes() {
	if h.Persister == nil {
		return
	}
	records, err := engine.VoteRecords(h.Room)
	if err != nil {
		globals.AppLogger.Error("could not build vote records", "room", h.Room.Id, "error", err)
		return
	}
	if len(records) == 0 {
		return
	}
	go func() {
		if err := h.Persister.StoreVotes(records); err != nil {
			globals.AppLogger.Error("could not persist votes", "room", h.Room.Id, "error", err)
		}
	}()
}

func (h *Hub) persistRoomAsync() {
	if h.Persister == nil {
		return
	}
	room := *h.Room // copy of the persisted columns, taken on the hub goroutine
	go func() {
		if err := h.Persister.StoreRoom(room); err != nil {
			globals.AppLogger.Error("could not persist room", "room", room.Id, "error", err)
		}
	}()
}

func (h *Hub) persistRoom() {
	if h.Persister == nil {
		return
	}
	if err := h.Persister.StoreRoom(*h.Room); err != nil {
		globals.AppLogger.Error("could not persist room", "room", h.Room.Id, "error", err)
	}
}
