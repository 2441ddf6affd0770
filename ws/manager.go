package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/globals"
	"github.com/tcriess/lightspeed-poker/persistence"
	"github.com/tcriess/lightspeed-poker/types"
)

// Manager keeps the live hubs, one per room. It is the only structure shared
// across connections: lookups and creations race freely while each hub's room
// stays confined to its own goroutine. An idle sweep evicts hubs that had no
// connection for longer than the configured expiry.
type Manager struct {
	cfg       *config.Config
	persister persistence.Persister

	hubs map[string]*Hub
	sync.RWMutex

	cronRunner *cron.Cron
}

func NewManager(cfg *config.Config, persister persistence.Persister) *Manager {
	m := &Manager{
		cfg:       cfg,
		persister: persister,
		hubs:      make(map[string]*Hub),
	}
	m.cronRunner = cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := m.cronRunner.AddFunc("@every 5m", m.sweepIdleHubs)
	if err != nil {
		panic(err)
	}
	m.cronRunner.Start()
	return m
}

// GetOrCreateHub returns the live hub for roomId, re-hydrating or creating
// the room as needed. deckName only matters on creation; the configured
// default applies when it is empty or unknown.
func (m *Manager) GetOrCreateHub(roomId, deckName string) *Hub {
	m.RLock()
	if hub, ok := m.hubs[roomId]; ok {
		m.RUnlock()
		return hub
	}
	m.RUnlock()

	m.Lock()
	defer m.Unlock()
	if hub, ok := m.hubs[roomId]; ok { // lost the race
		return hub
	}
	room := m.loadOrCreateRoom(roomId, deckName)
	hub := NewHub(room, m.cfg, m.persister)
	m.hubs[roomId] = hub
	go hub.Run()
	return hub
}

func (m *Manager) loadOrCreateRoom(roomId, deckName string) *types.Room {
	if m.persister != nil {
		room := &types.Room{Id: roomId}
		if err := m.persister.GetRoom(room); err == nil {
			room.Deck = m.DeckByName(room.DeckName)
			room.Participants = make([]*types.Participant, 0)
			room.VotingActive = true
			room.CardsRevealed = false
			if latest, err := m.persister.LatestRound(roomId); err == nil && latest >= room.CurrentRound {
				room.CurrentRound = latest + 1
			}
			if room.CurrentRound < 1 {
				room.CurrentRound = 1
			}
			globals.AppLogger.Info("re-hydrated room", "room", roomId, "round", room.CurrentRound)
			return room
		}
	}
	if deckName == "" {
		deckName = m.cfg.RoomConfig.DefaultDeck
	}
	deck := m.DeckByName(deckName)
	return types.NewRoom(roomId, fmt.Sprintf("Room %s", roomId), deck)
}

// DeckByName resolves a configured deck, falling back to the default deck.
func (m *Manager) DeckByName(name string) types.Deck {
	return deckByName(m.cfg, name)
}

// deckByName is shared with the hub, which resolves the deck named in the
// first joiner's join frame.
func deckByName(cfg *config.Config, name string) types.Deck {
	for _, dc := range cfg.DeckConfigs {
		if dc.Name == name && len(dc.Values) > 0 {
			return types.Deck{Name: dc.Name, Values: dc.Values}
		}
	}
	return types.DefaultDeck
}

// sweepIdleHubs stops and evicts hubs that have been without connections for
// longer than the configured idle expiry.
func (m *Manager) sweepIdleHubs() {
	expiry := time.Duration(m.cfg.RoomConfig.IdleExpiryMinutes) * time.Minute
	if expiry <= 0 {
		return
	}
	cutoff := time.Now().Add(-expiry)
	expired := make([]*Hub, 0)
	m.Lock()
	for id, hub := range m.hubs {
		idle := hub.IdleSince()
		if hub.NoClients() == 0 && !idle.IsZero() && idle.Before(cutoff) {
			delete(m.hubs, id)
			expired = append(expired, hub)
		}
	}
	m.Unlock()
	for _, hub := range expired {
		globals.AppLogger.Info("evicting idle room", "room", hub.Room.Id)
		hub.Stop()
	}
}

// Stop terminates the sweep and every live hub.
func (m *Manager) Stop() {
	m.cronRunner.Stop()
	m.Lock()
	defer m.Unlock()
	for id, hub := range m.hubs {
		delete(m.hubs, id)
		hub.Stop()
	}
}
