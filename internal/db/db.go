package db

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smsdesk-org/smsdesk/internal/model"
)

const revCounterID = 1

// Profile is the persistent local storage of one browser-like profile.
type Profile struct {
	db *gorm.DB
}

func Open(d *gorm.DB) (*Profile, error) {
	err := d.AutoMigrate(new(model.ProfileItem), new(model.ProfileEvent), new(model.ProfileRev))
	if err != nil {
		return nil, errors.Wrap(err, "failed migrate profile database")
	}
	err = d.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.ProfileRev{ID: revCounterID}).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed init profile revision")
	}
	return &Profile{db: d}, nil
}

func (p *Profile) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(sqlDB.Close())
}
