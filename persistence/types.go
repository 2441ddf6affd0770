package persistence

import (
	"fmt"

	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/types"
)

// Persister is the durable-storage port of the engine. All calls happen off
// the hub goroutines; implementations must be safe for concurrent use.
type Persister interface {
	StoreRoom(types.Room) error
	GetRoom(*types.Room) error
	GetRooms() ([]*types.Room, error)
	DeleteRoom(*types.Room) error
	StoreVotes([]*types.VoteRecord) error
	GetVoteHistory(roomId string, limit int) ([]*types.VoteRecord, error)
	LatestRound(roomId string) (int, error)
	Close() error
}

// NewPersister builds the configured persistence backend. A nil Persister
// (no error) means persistence is disabled.
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "":
		return nil, nil
	case "buntdb":
		return NewBuntPersister(cfg)
	case "sqlite", "postgres":
		return NewGormPersister(cfg)
	}
	return nil, fmt.Errorf("unknown persistence type %q", cfg.PersistenceConfig.Type)
}
