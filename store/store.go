package store

import (
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Store implements every core storage interface on top of gorm. One Store
// instance is safe for concurrent use; gorm serializes access to the
// underlying sqlite handle.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&VaultRow{},
		&PositionRow{},
		&AccountRow{},
		&AssetRow{},
		&PriceRow{},
		&FeeStatsRow{},
		&StakingPoolRow{},
		&StakePositionRow{},
		&OperateRow{},
		&LiquidateResultRow{},
	); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}
	return &Store{db: db}, nil
}

// Open creates a sqlite-backed store. Use "file::memory:?cache=shared" for
// an in-memory database.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	return New(db)
}
