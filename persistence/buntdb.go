package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/types"
	"github.com/tidwall/buntdb"
)

type BuntDBPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("votesround", "vote:*", buntdb.IndexJSON("round"))
	if err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, err
	}
	return &BuntDBPersist{db}, nil
}

func roomKey(id string) string {
	return "room:" + id
}

func voteKey(rec *types.VoteRecord) string {
	return fmt.Sprintf("vote:%s:%s", rec.RoomId, rec.Id)
}

func (p *BuntDBPersist) StoreRoom(room types.Room) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(roomKey(room.Id), string(raw), nil)
		return err
	})
}

func (p *BuntDBPersist) GetRoom(room *types.Room) error {
	if room.Id == "" {
		return fmt.Errorf("no room id")
	}
	return p.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(roomKey(room.Id))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), room)
	})
}

func (p *BuntDBPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("room:*", func(key, value string) bool {
			room := types.Room{}
			if err := json.Unmarshal([]byte(value), &room); err == nil {
				rooms = append(rooms, &room)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (p *BuntDBPersist) DeleteRoom(room *types.Room) error {
	if room.Id == "" {
		return fmt.Errorf("no room id")
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		keys := make([]string, 0)
		err := tx.AscendKeys("vote:"+room.Id+":*", func(key, value string) bool {
			keys = append(keys, key)
			return true
		})
		if err != nil {
			return err
		}
		keys = append(keys, roomKey(room.Id))
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
}

func (p *BuntDBPersist) StoreVotes(records []*types.VoteRecord) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		for _, rec := range records {
			raw, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if _, _, err := tx.Set(voteKey(rec), string(raw), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *BuntDBPersist) GetVoteHistory(roomId string, limit int) ([]*types.VoteRecord, error) {
	records := make([]*types.VoteRecord, 0)
	prefix := "vote:" + roomId + ":"
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.Descend("votesround", func(key, value string) bool {
			if !strings.HasPrefix(key, prefix) {
				return true
			}
			rec := types.VoteRecord{}
			if err := json.Unmarshal([]byte(value), &rec); err == nil {
				records = append(records, &rec)
			}
			return limit <= 0 || len(records) < limit
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Round != records[j].Round {
			return records[i].Round > records[j].Round
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (p *BuntDBPersist) LatestRound(roomId string) (int, error) {
	latest := 0
	prefix := "vote:" + roomId + ":"
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(key, value string) bool {
			rec := types.VoteRecord{}
			if err := json.Unmarshal([]byte(value), &rec); err == nil && rec.Round > latest {
				latest = rec.Round
			}
			return true
		})
	})
	return latest, err
}

func (p *BuntDBPersist) Close() error {
	return p.db.Close()
}
