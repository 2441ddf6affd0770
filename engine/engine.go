// Package engine implements the room voting state machine. All functions
// mutate the given room in place and are written validate-first: a returned
// error guarantees the room is unchanged. The package performs no I/O and
// takes no logger, the hub owns serialization and side effects.
package engine

import (
	"strings"
	"time"

	"github.com/tcriess/lightspeed-poker/types"
)

const MaxNickLength = 50

// JoinParams carries the identity the transport resolved for a joining
// connection. Id is only used when a new participant is created; a matching
// SessionToken reclaims an existing roster entry instead.
type JoinParams struct {
	Id           string
	Nick         string
	SessionToken string
}

// Join enters a participant into the room, or reactivates a disconnected one
// when the session token matches. The first roster entry becomes host.
func Join(room *types.Room, params JoinParams) (*types.Participant, error) {
	nick := strings.TrimSpace(params.Nick)
	if nick == "" {
		return nil, NewValidationError("username must not be empty")
	}
	if len([]rune(nick)) > MaxNickLength {
		return nil, NewValidationError("username must not exceed %d characters", MaxNickLength)
	}
	if p := room.ParticipantByToken(params.SessionToken); p != nil {
		p.Nick = nick
		p.Connected = true
		ensureHost(room)
		return p, nil
	}
	p := &types.Participant{
		Id:           params.Id,
		Nick:         nick,
		SessionToken: params.SessionToken,
		Connected:    true,
		IsHost:       len(room.Participants) == 0,
		JoinedAt:     time.Now(),
	}
	room.Participants = append(room.Participants, p)
	ensureHost(room)
	return p, nil
}

// CastVote records a vote for the active round, overwriting any earlier vote
// by the same participant. Re-submitting the identical value succeeds.
func CastVote(room *types.Room, participantId, value string) error {
	p := room.ParticipantById(participantId)
	if p == nil {
		return NewNotFoundError("unknown participant %s", participantId)
	}
	if p.IsObserver {
		return NewStateError("observers cannot vote")
	}
	if room.CardsRevealed {
		return NewStateError("cards are already revealed")
	}
	if len([]rune(value)) > types.MaxVoteLength {
		return NewValidationError("vote value too long")
	}
	if !room.Deck.Contains(value) {
		return NewValidationError("value %q is not in deck %s", value, room.Deck.Name)
	}
	p.CurrentVote = value
	return nil
}

// Reveal freezes and exposes the current round. Host only. Revealing an
// already revealed round succeeds without a state change; the returned bool
// tells the caller whether the transition actually happened.
func Reveal(room *types.Room, actorId string) (bool, error) {
	actor := room.ParticipantById(actorId)
	if actor == nil {
		return false, NewNotFoundError("unknown participant %s", actorId)
	}
	if !actor.IsHost {
		return false, NewAuthorizationError("only the host can reveal cards")
	}
	if room.CardsRevealed {
		return false, nil
	}
	room.CardsRevealed = true
	room.VotingActive = false
	return true, nil
}

// Reset clears all votes and opens the next round. Host only. Resetting a
// fresh room is permitted, the round counter still advances.
func Reset(room *types.Room, actorId string) error {
	actor := room.ParticipantById(actorId)
	if actor == nil {
		return NewNotFoundError("unknown participant %s", actorId)
	}
	if !actor.IsHost {
		return NewAuthorizationError("only the host can reset votes")
	}
	for _, p := range room.Participants {
		p.CurrentVote = ""
	}
	room.CurrentRound++
	room.CardsRevealed = false
	room.VotingActive = true
	return nil
}

// ToggleObserver flips a participant between voter and observer. Entering
// observer mode discards any vote cast in the active round.
func ToggleObserver(room *types.Room, participantId string) error {
	p := room.ParticipantById(participantId)
	if p == nil {
		return NewNotFoundError("unknown participant %s", participantId)
	}
	p.IsObserver = !p.IsObserver
	if p.IsObserver {
		p.CurrentVote = ""
	}
	return nil
}

// Kick removes a participant from the roster entirely. Host only.
func Kick(room *types.Room, actorId, targetId string) error {
	actor := room.ParticipantById(actorId)
	if actor == nil {
		return NewNotFoundError("unknown participant %s", actorId)
	}
	if !actor.IsHost {
		return NewAuthorizationError("only the host can remove players")
	}
	target := room.ParticipantById(targetId)
	if target == nil {
		return NewNotFoundError("unknown participant %s", targetId)
	}
	kept := room.Participants[:0]
	for _, p := range room.Participants {
		if p.Id != targetId {
			kept = append(kept, p)
		}
	}
	room.Participants = kept
	if target.IsHost {
		ensureHost(room)
	}
	return nil
}

// Disconnect marks a participant as gone without removing it from the
// roster, so other clients keep seeing the entry (with a disconnected badge)
// and a later rejoin by session token reclaims it. A disconnecting host hands
// the role to the earliest-joined participant still connected.
func Disconnect(room *types.Room, participantId string) error {
	p := room.ParticipantById(participantId)
	if p == nil {
		return NewNotFoundError("unknown participant %s", participantId)
	}
	p.Connected = false
	if p.IsHost {
		p.IsHost = false
		ensureHost(room)
	}
	return nil
}

// ensureHost promotes the earliest-joined connected participant when no one
// holds the host role. Roster order is join order, so this is deterministic.
func ensureHost(room *types.Room) {
	if room.Host() != nil {
		return
	}
	for _, p := range room.Participants {
		if p.Connected {
			p.IsHost = true
			return
		}
	}
}
