package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/tcriess/lightspeed-poker/types"
)

// ComputeStats derives the aggregate numbers for a snapshot. The counters are
// always present; average, consensus and the vote distribution are only
// computed once the round is revealed, anything earlier would leak the hidden
// votes.
func ComputeStats(room *types.Room) types.VotingStats {
	stats := types.VotingStats{
		VoteCounts: make([]types.VoteCount, 0),
	}
	values := make([]string, 0, len(room.Participants))
	for _, p := range room.Participants {
		if p.IsObserver {
			continue
		}
		stats.TotalPlayers++
		if p.HasVoted() {
			stats.VotedPlayers++
			values = append(values, p.CurrentVote)
		}
	}
	if !room.CardsRevealed {
		return stats
	}

	var sum float64
	var numeric int
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
		if f, ok := types.NumericValue(v); ok {
			sum += f
			numeric++
		}
	}
	if numeric > 0 {
		avg := fmt.Sprintf("%.1f", sum/float64(numeric))
		stats.Average = &avg
	}
	stats.Consensus = len(counts) == 1
	for value, count := range counts {
		stats.VoteCounts = append(stats.VoteCounts, types.VoteCount{Value: value, Count: count})
	}
	sort.Slice(stats.VoteCounts, func(i, j int) bool {
		a, b := stats.VoteCounts[i], stats.VoteCounts[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return room.Deck.Rank(a.Value) < room.Deck.Rank(b.Value)
	})
	return stats
}

// Snapshot builds the full outbound state frame for a room. Individual vote
// values are withheld from every player entry until the round is revealed;
// before that only the hasVoted flag is exposed. The same frame goes to all
// connections, so no client ever holds information another one lacks.
func Snapshot(room *types.Room) *types.RoomStateMessage {
	players := make([]types.WirePlayer, 0, len(room.Participants))
	for _, p := range room.Participants {
		wp := types.WirePlayer{
			Id:         p.Id,
			Username:   p.Nick,
			IsObserver: p.IsObserver,
			IsHost:     p.IsHost,
			HasVoted:   p.HasVoted(),
			Connected:  p.Connected,
		}
		if room.CardsRevealed && p.HasVoted() {
			vote := p.CurrentVote
			wp.Vote = &vote
		}
		players = append(players, wp)
	}
	return &types.RoomStateMessage{
		Type:          types.MessageTypeRoomState,
		RoomId:        room.Id,
		RoomName:      room.Name,
		Players:       players,
		VotingActive:  room.VotingActive,
		CardsRevealed: room.CardsRevealed,
		CurrentRound:  room.CurrentRound,
		Deck:          room.Deck.Values,
		VotingStats:   ComputeStats(room),
	}
}

// VoteRecords materializes the revealed round as immutable history rows.
// Callers invoke this right after a successful reveal, before any reset can
// clear the votes.
func VoteRecords(room *types.Room) ([]*types.VoteRecord, error) {
	records := make([]*types.VoteRecord, 0)
	for _, p := range room.Participants {
		if p.IsObserver || !p.HasVoted() {
			continue
		}
		rec := &types.VoteRecord{
			RoomId:        room.Id,
			ParticipantId: p.Id,
			Nick:          p.Nick,
			Value:         p.CurrentVote,
			Round:         room.CurrentRound,
			CreatedAt:     time.Now(),
		}
		if err := rec.CreateId(); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
