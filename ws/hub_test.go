package ws

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-poker/auth"
	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/engine"
	"github.com/tcriess/lightspeed-poker/types"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	room := types.NewRoom("test-room", "Test Room", types.DefaultDeck)
	hub := NewHub(room, &config.Config{}, nil)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

var clientSeq int

// newTestClient builds a client without a websocket connection. The hub only
// ever touches the Send channel, so the read/write pumps are not needed here.
func newTestClient(hub *Hub) *Client {
	clientSeq++
	return &Client{
		hub:  hub,
		Send: make(chan []byte, 64),
		Identity: &auth.Identity{
			UserId:       fmt.Sprintf("user-%d", clientSeq),
			Nick:         fmt.Sprintf("Guest %d", clientSeq),
			SessionToken: fmt.Sprintf("token-%d", clientSeq),
		},
		doneChan: make(chan struct{}),
	}
}

// nextFrame reads one outbound frame of the client, decoded into a generic map.
func nextFrame(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case raw := <-c.Send:
		frame := make(map[string]interface{})
		require.NoError(t, json.Unmarshal(raw, &frame))
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// nextFrameOfType skips frames until one of the wanted type arrives.
func nextFrameOfType(t *testing.T, c *Client, frameType string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 10; i++ {
		frame := nextFrame(t, c)
		if frame["type"] == frameType {
			return frame
		}
	}
	t.Fatalf("no %s frame received", frameType)
	return nil
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func register(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	require.True(t, hub.RegisterClient(c))
	frame := nextFrame(t, c) // every new connection gets the current state
	assert.Equal(t, types.MessageTypeRoomState, frame["type"])
}

func join(t *testing.T, hub *Hub, c *Client, nick string) {
	t.Helper()
	hub.Submit <- Submission{Client: c, Event: &types.JoinEvent{Username: nick}}
	session := nextFrameOfType(t, c, types.MessageTypeSession)
	require.NotEmpty(t, session["participantId"])
	nextFrameOfType(t, c, types.MessageTypeRoomState)
}

func TestJoinBroadcastsToEveryConnection(t *testing.T) {
	hub := newTestHub(t)
	alice := newTestClient(hub)
	bob := newTestClient(hub)
	register(t, hub, alice)
	register(t, hub, bob)

	join(t, hub, alice, "Alice")
	// bob sees alice's join even though he did not submit anything
	state := nextFrameOfType(t, bob, types.MessageTypeRoomState)
	players := state["players"].([]interface{})
	require.Len(t, players, 1)
	player := players[0].(map[string]interface{})
	assert.Equal(t, "Alice", player["username"])
	assert.Equal(t, true, player["isHost"])
}

func TestDirectedErrorIsNotBroadcast(t *testing.T) {
	hub := newTestHub(t)
	alice := newTestClient(hub)
	bob := newTestClient(hub)
	register(t, hub, alice)
	join(t, hub, alice, "Alice")
	register(t, hub, bob)
	join(t, hub, bob, "Bob")
	nextFrameOfType(t, alice, types.MessageTypeRoomState) // bob's join

	// Bob is not the host, his reveal must fail
	hub.Submit <- Submission{Client: bob, Event: &types.RevealEvent{RequestId: "req-1"}}
	errFrame := nextFrameOfType(t, bob, types.MessageTypeError)
	assert.Equal(t, float64(engine.CodeAuthorization), errFrame["code"])
	assert.Equal(t, engine.TagAuthorization, errFrame["error"])
	assert.Equal(t, "req-1", errFrame["requestId"])
	assert.NotEmpty(t, errFrame["message"])

	// the failed transition produced no broadcast and changed nothing
	assertNoFrame(t, alice)
}

func TestVoteRejectedOutsideDeck(t *testing.T) {
	hub := newTestHub(t)
	alice := newTestClient(hub)
	register(t, hub, alice)
	join(t, hub, alice, "Alice")

	hub.Submit <- Submission{Client: alice, Event: &types.VoteEvent{Value: "99"}}
	errFrame := nextFrameOfType(t, alice, types.MessageTypeError)
	assert.Equal(t, float64(engine.CodeValidation), errFrame["code"])

	// a later valid vote shows the rejected one never counted
	hub.Submit <- Submission{Client: alice, Event: &types.VoteEvent{Value: "5"}}
	state := nextFrameOfType(t, alice, types.MessageTypeRoomState)
	stats := state["votingStats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["votedPlayers"])
}

func TestEventsBeforeJoinAreRejected(t *testing.T) {
	hub := newTestHub(t)
	alice := newTestClient(hub)
	register(t, hub, alice)

	hub.Submit <- Submission{Client: alice, Event: &types.VoteEvent{Value: "5"}}
	errFrame := nextFrameOfType(t, alice, types.MessageTypeError)
	assert.Equal(t, float64(engine.CodeState), errFrame["code"])
}

func TestHostDisconnectPromotesNextJoiner(t *testing.T) {
	hub := newTestHub(t)
	alice := newTestClient(hub)
	bob := newTestClient(hub)
	register(t, hub, alice)
	join(t, hub, alice, "Alice")
	register(t, hub, bob)
	join(t, hub, bob, "Bob")
	nextFrameOfType(t, alice, types.MessageTypeRoomState)

	hub.Unregister <- alice
	state := nextFrameOfType(t, bob, types.MessageTypeRoomState)
	players := state["players"].([]interface{})
	require.Len(t, players, 2)
	for _, p := range players {
		player := p.(map[string]interface{})
		switch player["username"] {
		case "Alice":
			assert.Equal(t, false, player["connected"])
			assert.Equal(t, false, player["isHost"])
		case "Bob":
			assert.Equal(t, true, player["isHost"])
		}
	}

	// Bob now has host authority
	hub.Submit <- Submission{Client: bob, Event: &types.RevealEvent{}}
	state = nextFrameOfType(t, bob, types.MessageTypeRoomState)
	assert.Equal(t, true, state["cardsRevealed"])
}

func TestIdenticalSnapshotSequence(t *testing.T) {
	hub := newTestHub(t)
	alice := newTestClient(hub)
	bob := newTestClient(hub)
	register(t, hub, alice)
	join(t, hub, alice, "Alice")
	register(t, hub, bob)
	join(t, hub, bob, "Bob")
	nextFrameOfType(t, alice, types.MessageTypeRoomState) // bob's join

	hub.Submit <- Submission{Client: alice, Event: &types.VoteEvent{Value: "5"}}
	hub.Submit <- Submission{Client: bob, Event: &types.VoteEvent{Value: "8"}}
	hub.Submit <- Submission{Client: alice, Event: &types.RevealEvent{}}
	hub.Submit <- Submission{Client: alice, Event: &types.ResetEvent{}}

	lastRound := 0.0
	for i := 0; i < 4; i++ {
		fromAlice := nextFrameOfType(t, alice, types.MessageTypeRoomState)
		fromBob := nextFrameOfType(t, bob, types.MessageTypeRoomState)
		assert.Equal(t, fromAlice, fromBob, "all clients observe the same snapshot sequence")
		round := fromAlice["currentRound"].(float64)
		assert.GreaterOrEqual(t, round, lastRound)
		lastRound = round
	}
	assert.Equal(t, 2.0, lastRound, "reset advanced the round")
}

func TestRevealedSnapshotCarriesVotesAndStats(t *testing.T) {
	hub := newTestHub(t)
	alice := newTestClient(hub)
	bob := newTestClient(hub)
	register(t, hub, alice)
	join(t, hub, alice, "Alice")
	register(t, hub, bob)
	join(t, hub, bob, "Bob")
	nextFrameOfType(t, alice, types.MessageTypeRoomState)

	hub.Submit <- Submission{Client: alice, Event: &types.VoteEvent{Value: "5"}}
	hub.Submit <- Submission{Client: bob, Event: &types.VoteEvent{Value: "8"}}

	// before the reveal no frame contains a vote value
	for i := 0; i < 2; i++ {
		state := nextFrameOfType(t, bob, types.MessageTypeRoomState)
		for _, p := range state["players"].([]interface{}) {
			assert.Nil(t, p.(map[string]interface{})["vote"])
		}
	}

	hub.Submit <- Submission{Client: alice, Event: &types.RevealEvent{}}
	state := nextFrameOfType(t, bob, types.MessageTypeRoomState)
	assert.Equal(t, true, state["cardsRevealed"])
	votes := make(map[string]interface{})
	for _, p := range state["players"].([]interface{}) {
		player := p.(map[string]interface{})
		votes[player["username"].(string)] = player["vote"]
	}
	assert.Equal(t, "5", votes["Alice"])
	assert.Equal(t, "8", votes["Bob"])
	stats := state["votingStats"].(map[string]interface{})
	assert.Equal(t, "6.5", stats["average"])
	assert.Equal(t, false, stats["consensus"])
	assert.Equal(t, float64(2), stats["votedPlayers"])
	assert.Equal(t, float64(2), stats["totalPlayers"])
}

func TestKickDetachesConnection(t *testing.T) {
	hub := newTestHub(t)
	alice := newTestClient(hub)
	bob := newTestClient(hub)
	register(t, hub, alice)
	join(t, hub, alice, "Alice")
	register(t, hub, bob)
	join(t, hub, bob, "Bob")
	nextFrameOfType(t, alice, types.MessageTypeRoomState)

	state := nextState(t, hub, alice)
	bobId := ""
	for _, p := range state["players"].([]interface{}) {
		player := p.(map[string]interface{})
		if player["username"] == "Bob" {
			bobId = player["id"].(string)
		}
	}
	require.NotEmpty(t, bobId)

	hub.Submit <- Submission{Client: alice, Event: &types.KickEvent{PlayerId: bobId}}
	state = nextFrameOfType(t, alice, types.MessageTypeRoomState)
	assert.Len(t, state["players"].([]interface{}), 1)

	// the kicked connection is detached from its participant
	hub.Submit <- Submission{Client: bob, Event: &types.VoteEvent{Value: "5"}}
	errFrame := nextFrameOfType(t, bob, types.MessageTypeError)
	assert.Equal(t, float64(engine.CodeState), errFrame["code"])
}

// nextState forces a fresh snapshot by bouncing a throwaway connection off
// the hub.
func nextState(t *testing.T, hub *Hub, c *Client) map[string]interface{} {
	t.Helper()
	peek := newTestClient(hub)
	require.True(t, hub.RegisterClient(peek))
	state := nextFrame(t, peek)
	require.Equal(t, types.MessageTypeRoomState, state["type"])
	hub.Unregister <- peek
	return state
}

func TestDroppedConnectionCannotKeepVoting(t *testing.T) {
	hub := newTestHub(t)
	alice := newTestClient(hub)
	bob := newTestClient(hub)
	register(t, hub, alice)
	join(t, hub, alice, "Alice")
	register(t, hub, bob)
	join(t, hub, bob, "Bob")
	nextFrameOfType(t, alice, types.MessageTypeRoomState)

	// wedge bob's outbound buffer so the next broadcast cannot reach him
	for i := 0; i < cap(bob.Send); i++ {
		bob.Send <- []byte("{}")
	}
	hub.Submit <- Submission{Client: alice, Event: &types.VoteEvent{Value: "5"}}
	nextFrameOfType(t, alice, types.MessageTypeRoomState)
	require.Eventually(t, func() bool { return hub.NoClients() == 1 },
		time.Second, 10*time.Millisecond, "stuck client was not dropped")

	// bob is gone from the hub's point of view, his connection must no
	// longer reach the room even though his participant stays on the roster
	hub.Submit <- Submission{Client: bob, Event: &types.VoteEvent{Value: "13"}}
	state := nextState(t, hub, alice)
	for _, p := range state["players"].([]interface{}) {
		player := p.(map[string]interface{})
		if player["username"] == "Bob" {
			assert.Equal(t, false, player["connected"])
			assert.Equal(t, false, player["hasVoted"])
		}
	}
	stats := state["votingStats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["votedPlayers"])
}

func TestRegisterAfterStopFails(t *testing.T) {
	room := types.NewRoom("stopped-room", "Stopped Room", types.DefaultDeck)
	hub := NewHub(room, &config.Config{}, nil)
	hub.Stop()

	// the run loop was never entered, registration must still not block
	client := newTestClient(hub)
	assert.False(t, hub.RegisterClient(client))
	hub.unregisterClient(client) // must not block either
}

func TestFirstJoinerPicksDeck(t *testing.T) {
	room := types.NewRoom("deck-room", "Deck Room", types.DefaultDeck)
	cfg := &config.Config{DeckConfigs: []config.DeckConfig{
		{Name: "tshirt", Values: []string{"S", "M", "L", "XL"}},
	}}
	hub := NewHub(room, cfg, nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	alice := newTestClient(hub)
	register(t, hub, alice)
	hub.Submit <- Submission{Client: alice, Event: &types.JoinEvent{Username: "Alice", Deck: "tshirt"}}
	nextFrameOfType(t, alice, types.MessageTypeSession)
	state := nextFrameOfType(t, alice, types.MessageTypeRoomState)
	assert.Equal(t, []interface{}{"S", "M", "L", "XL"}, state["deck"])

	// later joiners cannot change the deck
	bob := newTestClient(hub)
	register(t, hub, bob)
	hub.Submit <- Submission{Client: bob, Event: &types.JoinEvent{Username: "Bob", Deck: "fibonacci"}}
	nextFrameOfType(t, bob, types.MessageTypeSession)
	state = nextFrameOfType(t, bob, types.MessageTypeRoomState)
	assert.Equal(t, []interface{}{"S", "M", "L", "XL"}, state["deck"])

	// votes are validated against the chosen deck
	hub.Submit <- Submission{Client: alice, Event: &types.VoteEvent{Value: "M"}}
	state = nextFrameOfType(t, bob, types.MessageTypeRoomState)
	stats := state["votingStats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["votedPlayers"])
}

func TestJoinUsesResolvedUserId(t *testing.T) {
	hub := newTestHub(t)
	alice := newTestClient(hub)
	register(t, hub, alice)
	join(t, hub, alice, "Alice")

	state := nextState(t, hub, alice)
	players := state["players"].([]interface{})
	require.Len(t, players, 1)
	assert.Equal(t, alice.Identity.UserId, players[0].(map[string]interface{})["id"])

	// the same user on a second session still gets a distinct participant
	bob := newTestClient(hub)
	bob.Identity.UserId = alice.Identity.UserId
	register(t, hub, bob)
	join(t, hub, bob, "Alice Again")
	state = nextState(t, hub, bob)
	ids := make(map[string]struct{})
	for _, p := range state["players"].([]interface{}) {
		ids[p.(map[string]interface{})["id"].(string)] = struct{}{}
	}
	assert.Len(t, ids, 2)
}
