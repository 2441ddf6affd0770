package types

import (
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

// A VoteRecord is the immutable persisted form of one participant's vote in
// one round. Records are written when a round is revealed; a re-vote before
// reveal overwrites the in-memory vote and therefore never produces a second
// record for the same (room, participant, round).
type VoteRecord struct {
	Id            string    `json:"id" gorm:"primaryKey"`
	RoomId        string    `json:"room_id" gorm:"index"`
	ParticipantId string    `json:"participant_id"`
	Nick          string    `json:"nick"`
	Value         string    `json:"value"`
	Round         int       `json:"round"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateId sets the record id to a hash over its identifying fields, so a
// duplicate write of the same round's vote collapses onto the same row.
func (v *VoteRecord) CreateId() error {
	hashId := struct {
		RoomId        string
		ParticipantId string
		Round         int
	}{
		RoomId:        v.RoomId,
		ParticipantId: v.ParticipantId,
		Round:         v.Round,
	}
	hash, err := hashstructure.Hash(hashId, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	v.Id = fmt.Sprintf("%016x", hash)
	return nil
}
