// Package filter evaluates expr expressions against persisted vote history,
// used by the admin tool to narrow down rounds and values.
package filter

import (
	"strconv"
	"time"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/tcriess/lightspeed-poker/types"
)

type Room struct {
	Id           string
	Name         string
	Deck         string
	CurrentRound int
}

type Vote struct {
	Id            string
	RoomId        string
	ParticipantId string
	Nick          string
	Value         string
	Round         int
	CreatedAt     time.Time
}

// Env is the expression environment. Fields are addressed directly in
// expressions, f.e. `Vote.Round > 3 && AsFloat(Vote.Value) >= 8`.
type Env struct {
	Room Room
	Vote Vote
}

// AsInt parses a card value as an int, 0 on error
func (Env) AsInt(v string) int64 {
	val, _ := strconv.ParseInt(v, 0, 64)
	return val
}

// AsFloat parses a card value as a float64, 0.0 on error
func (Env) AsFloat(v string) float64 {
	val, _ := strconv.ParseFloat(v, 64)
	return val
}

// NewEnv builds the environment for one vote record.
func NewEnv(room *types.Room, rec *types.VoteRecord) Env {
	env := Env{}
	if room != nil {
		env.Room = Room{
			Id:           room.Id,
			Name:         room.Name,
			Deck:         room.DeckName,
			CurrentRound: room.CurrentRound,
		}
	}
	if rec != nil {
		env.Vote = Vote{
			Id:            rec.Id,
			RoomId:        rec.RoomId,
			ParticipantId: rec.ParticipantId,
			Nick:          rec.Nick,
			Value:         rec.Value,
			Round:         rec.Round,
			CreatedAt:     rec.CreatedAt,
		}
	}
	return env
}

// Compile prepares a filter expression for repeated evaluation.
func Compile(expression string) (*vm.Program, error) {
	return expr.Compile(expression, expr.Env(Env{}))
}

// Run evaluates a compiled filter; anything but a clean `true` filters the
// record out.
func Run(prog *vm.Program, env Env) bool {
	if prog == nil {
		return true
	}
	res, err := expr.Run(prog, env)
	if err != nil {
		return false
	}
	b, ok := res.(bool)
	return ok && b
}
