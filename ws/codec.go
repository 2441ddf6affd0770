package ws

import (
	"encoding/json"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/tcriess/lightspeed-poker/engine"
	"github.com/tcriess/lightspeed-poker/globals"
	"github.com/tcriess/lightspeed-poker/types"
)

// DecodeFrame parses one inbound frame into a typed event. Frames with an
// unknown type discriminator are ignored, not fatal: both return values are
// nil. Malformed frames yield a validation error for the sender only.
func DecodeFrame(raw []byte) (types.Event, error) {
	payload := make(map[string]interface{})
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, engine.NewValidationError("malformed frame: not a JSON object")
	}
	frameType, _ := payload["type"].(string)
	var event types.Event
	switch frameType {
	case types.MessageTypeJoinRoom:
		event = &types.JoinEvent{}
	case types.MessageTypeVote:
		event = &types.VoteEvent{}
	case types.MessageTypeRevealCards:
		event = &types.RevealEvent{}
	case types.MessageTypeResetVotes:
		event = &types.ResetEvent{}
	case types.MessageTypeToggleObserver:
		event = &types.ToggleObserverEvent{}
	case types.MessageTypeKickPlayer:
		event = &types.KickEvent{}
	default:
		globals.AppLogger.Debug("ignoring frame with unknown type", "type", frameType)
		return nil, nil
	}
	delete(payload, "type")
	if err := mapstructure.WeakDecode(payload, event); err != nil {
		return nil, engine.NewValidationError("malformed %s frame: %s", frameType, err)
	}
	return event, nil
}

// EncodeError builds a directed error frame.
func EncodeError(requestId string, e *engine.Error) []byte {
	msg := types.ErrorMessage{
		Type:      types.MessageTypeError,
		RequestId: requestId,
		Code:      e.Code,
		ErrorTag:  e.Tag,
		Message:   e.Message,
		Timestamp: time.Now(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		globals.AppLogger.Error("could not marshal error frame", "error", err)
		return nil
	}
	return raw
}

// EncodeSnapshot serializes a state frame for broadcast.
func EncodeSnapshot(snapshot *types.RoomStateMessage) []byte {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		globals.AppLogger.Error("could not marshal snapshot", "error", err)
		return nil
	}
	return raw
}

// EncodeSession serializes the directed post-join frame.
func EncodeSession(requestId, participantId, sessionToken string) []byte {
	msg := types.SessionMessage{
		Type:          types.MessageTypeSession,
		RequestId:     requestId,
		ParticipantId: participantId,
		SessionToken:  sessionToken,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		globals.AppLogger.Error("could not marshal session frame", "error", err)
		return nil
	}
	return raw
}
