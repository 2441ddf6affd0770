package types

// Wire frame type discriminators, inbound and outbound.
const (
	MessageTypeJoinRoom       = "JOIN_ROOM"
	MessageTypeVote           = "VOTE"
	MessageTypeRevealCards    = "REVEAL_CARDS"
	MessageTypeResetVotes     = "RESET_VOTES"
	MessageTypeToggleObserver = "TOGGLE_OBSERVER"
	MessageTypeKickPlayer     = "KICK_PLAYER"

	MessageTypeRoomState = "ROOM_STATE"
	MessageTypeSession   = "SESSION"
	MessageTypeError     = "ERROR"
)

// Event is one decoded inbound action. The set of implementations is closed;
// the codec refuses everything else.
type Event interface {
	EventType() string
}

// JoinEvent enters the sender into the room roster, or reactivates a
// previously known participant when SessionToken matches one. Deck names the
// card deck to use and is only honored for the room's first joiner.
type JoinEvent struct {
	Username     string `json:"username" mapstructure:"username"`
	SessionToken string `json:"sessionToken" mapstructure:"sessionToken"`
	Deck         string `json:"deck" mapstructure:"deck"`
	RequestId    string `json:"requestId" mapstructure:"requestId"`
}

func (e *JoinEvent) EventType() string { return MessageTypeJoinRoom }

// VoteEvent casts or overwrites the sender's vote for the active round.
type VoteEvent struct {
	Value     string `json:"value" mapstructure:"value"`
	RequestId string `json:"requestId" mapstructure:"requestId"`
}

func (e *VoteEvent) EventType() string { return MessageTypeVote }

// RevealEvent freezes and exposes the current round (host only).
type RevealEvent struct {
	RequestId string `json:"requestId" mapstructure:"requestId"`
}

func (e *RevealEvent) EventType() string { return MessageTypeRevealCards }

// ResetEvent clears all votes and opens the next round (host only).
type ResetEvent struct {
	RequestId string `json:"requestId" mapstructure:"requestId"`
}

func (e *ResetEvent) EventType() string { return MessageTypeResetVotes }

// ToggleObserverEvent flips the sender between voter and observer.
type ToggleObserverEvent struct {
	RequestId string `json:"requestId" mapstructure:"requestId"`
}

func (e *ToggleObserverEvent) EventType() string { return MessageTypeToggleObserver }

// KickEvent removes a participant from the roster entirely (host only).
type KickEvent struct {
	PlayerId  string `json:"playerId" mapstructure:"playerId"`
	RequestId string `json:"requestId" mapstructure:"requestId"`
}

func (e *KickEvent) EventType() string { return MessageTypeKickPlayer }

// RequestId extracts the client correlation id of an event, if it carries one.
func RequestId(event Event) string {
	switch e := event.(type) {
	case *JoinEvent:
		return e.RequestId
	case *VoteEvent:
		return e.RequestId
	case *RevealEvent:
		return e.RequestId
	case *ResetEvent:
		return e.RequestId
	case *ToggleObserverEvent:
		return e.RequestId
	case *KickEvent:
		return e.RequestId
	}
	return ""
}
