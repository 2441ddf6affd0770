package types

import (
	"time"

	"gorm.io/gorm"
)

// Participant is one identity inside a room. Participants survive disconnects:
// Connected is flipped instead of removing the entry, so the roster keeps its
// join order and a rejoin with the same session token reclaims the entry.
type Participant struct {
	Id           string    `json:"id"`
	Nick         string    `json:"username"`
	SessionToken string    `json:"-"` // rejoin secret, never serialized
	IsObserver   bool      `json:"isObserver"`
	IsHost       bool      `json:"isHost"`
	Connected    bool      `json:"connected"`
	CurrentVote  string    `json:"-"` // exposed via the wire layer only after reveal
	JoinedAt     time.Time `json:"-"`
}

// HasVoted reports whether the participant cast a vote in the active round.
func (p *Participant) HasVoted() bool {
	return p.CurrentVote != ""
}

// A Room is one isolated voting session. The in-memory fields (participants,
// deck) are owned exclusively by the room's hub goroutine; the persisted
// columns are what the admin tool and re-hydration work from.
type Room struct {
	Id            string         `json:"id" gorm:"primaryKey"`
	Name          string         `json:"name"`
	DeckName      string         `json:"deck"`
	CurrentRound  int            `json:"currentRound"`
	Tags          JSONStringMap  `json:"tags"`
	CreatedAt     time.Time      `json:"-"`
	UpdatedAt     time.Time      `json:"-"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
	VotingActive  bool           `json:"votingActive" gorm:"-"`
	CardsRevealed bool           `json:"cardsRevealed" gorm:"-"`

	Deck         Deck           `json:"-" gorm:"-"`
	Participants []*Participant `json:"-" gorm:"-"` // join order
}

// NewRoom creates a fresh room with an open first round.
func NewRoom(id, name string, deck Deck) *Room {
	return &Room{
		Id:            id,
		Name:          name,
		DeckName:      deck.Name,
		Deck:          deck,
		CurrentRound:  1,
		VotingActive:  true,
		CardsRevealed: false,
		Tags:          make(JSONStringMap),
		CreatedAt:     time.Now(),
		Participants:  make([]*Participant, 0),
	}
}

// ParticipantById returns the roster entry with the given id, or nil.
func (r *Room) ParticipantById(id string) *Participant {
	for _, p := range r.Participants {
		if p.Id == id {
			return p
		}
	}
	return nil
}

// ParticipantByToken returns the roster entry holding the given session
// token, or nil. Empty tokens never match.
func (r *Room) ParticipantByToken(token string) *Participant {
	if token == "" {
		return nil
	}
	for _, p := range r.Participants {
		if p.SessionToken == token {
			return p
		}
	}
	return nil
}

// Host returns the current host, or nil if no participant holds the role
// (possible when every participant is disconnected).
func (r *Room) Host() *Participant {
	for _, p := range r.Participants {
		if p.IsHost {
			return p
		}
	}
	return nil
}

// ConnectedCount returns the number of currently connected participants.
func (r *Room) ConnectedCount() int {
	n := 0
	for _, p := range r.Participants {
		if p.Connected {
			n++
		}
	}
	return n
}
