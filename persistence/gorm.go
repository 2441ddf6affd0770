package persistence

import (
	"fmt"

	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	p := GormPersist{db: db}
	return &p, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	db.Migrator().AutoMigrate(&types.Room{}, &types.VoteRecord{})
	return db, nil
}

func (p *GormPersist) StoreRoom(room types.Room) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&room).Error
}

func (p *GormPersist) GetRoom(room *types.Room) error {
	return p.db.First(room).Error
}

func (p *GormPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.Find(&rooms).Error
	return rooms, err
}

func (p *GormPersist) DeleteRoom(room *types.Room) error {
	err := p.db.Where("room_id = ?", room.Id).Delete(&types.VoteRecord{}).Error
	if err != nil {
		return err
	}
	return p.db.Delete(room).Error
}

func (p *GormPersist) StoreVotes(records []*types.VoteRecord) error {
	if len(records) == 0 {
		return nil
	}
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&records).Error
}

func (p *GormPersist) GetVoteHistory(roomId string, limit int) ([]*types.VoteRecord, error) {
	records := make([]*types.VoteRecord, 0)
	tx := p.db.Where("room_id = ?", roomId).Order("round desc, created_at desc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	err := tx.Find(&records).Error
	return records, err
}

func (p *GormPersist) LatestRound(roomId string) (int, error) {
	var latest int
	err := p.db.Model(&types.VoteRecord{}).
		Where("room_id = ?", roomId).
		Select("COALESCE(MAX(round), 0)").
		Scan(&latest).Error
	return latest, err
}

func (p *GormPersist) Close() error {
	db, err := p.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
