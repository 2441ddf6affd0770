package types

import "time"

// The wire format is a flat JSON object per frame, discriminated by "type".

// WirePlayer is the serialized roster entry inside a ROOM_STATE frame. Vote
// carries the actual card value only once the round is revealed; before that
// only HasVoted is populated, for every participant including the voter.
type WirePlayer struct {
	Id         string  `json:"id"`
	Username   string  `json:"username"`
	IsObserver bool    `json:"isObserver"`
	IsHost     bool    `json:"isHost"`
	HasVoted   bool    `json:"hasVoted"`
	Vote       *string `json:"vote"`
	Connected  bool    `json:"connected"`
}

// VoteCount is one entry of the revealed vote distribution.
type VoteCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// VotingStats are the aggregates recomputed on every snapshot. Average,
// Consensus and VoteCounts are only populated once the round is revealed,
// everything else would leak the hidden votes.
type VotingStats struct {
	TotalPlayers int         `json:"totalPlayers"`
	VotedPlayers int         `json:"votedPlayers"`
	Average      *string     `json:"average,omitempty"`
	Consensus    bool        `json:"consensus"`
	VoteCounts   []VoteCount `json:"voteCounts"`
}

// RoomStateMessage is the full snapshot broadcast to every connection of a
// room after each committed transition. There are no delta updates.
type RoomStateMessage struct {
	Type          string       `json:"type"`
	RoomId        string       `json:"roomId"`
	RoomName      string       `json:"roomName"`
	Players       []WirePlayer `json:"players"`
	VotingActive  bool         `json:"votingActive"`
	CardsRevealed bool         `json:"cardsRevealed"`
	CurrentRound  int          `json:"currentRound"`
	Deck          []string     `json:"deck"`
	VotingStats   VotingStats  `json:"votingStats"`
}

// SessionMessage is sent to a single connection after its join was applied.
// It carries the secrets the snapshot deliberately omits: which roster entry
// is "you" and the token that reclaims it after a disconnect.
type SessionMessage struct {
	Type          string `json:"type"`
	RequestId     string `json:"requestId,omitempty"`
	ParticipantId string `json:"participantId"`
	SessionToken  string `json:"sessionToken"`
}

// ErrorMessage is a directed error frame. It is only ever sent to the
// connection whose event failed, never broadcast.
type ErrorMessage struct {
	Type      string    `json:"type"`
	RequestId string    `json:"requestId,omitempty"`
	Code      int       `json:"code"`
	ErrorTag  string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
