package db

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smsdesk-org/smsdesk/internal/model"
)

func (p *Profile) GetItem(key string) (*model.ProfileItem, error) {
	it := model.ProfileItem{Key: key}
	if err := p.db.Where("name = ?", key).First(&it).Error; err != nil {
		return nil, errors.Wrap(err, "failed find profile item")
	}
	return &it, nil
}

// nextRev bumps the counter row. The update holds the row lock until the
// transaction ends, so writers commit in revision order on every driver.
// Writes take it before touching items.
func nextRev(tx *gorm.DB) (int64, error) {
	res := tx.Model(&model.ProfileRev{}).Where("id = ?", revCounterID).
		Update("rev", gorm.Expr("rev + ?", 1))
	if res.Error != nil {
		return 0, errors.WithStack(res.Error)
	}
	if res.RowsAffected != 1 {
		return 0, errors.New("profile revision counter missing")
	}
	var rev int64
	err := tx.Model(&model.ProfileRev{}).Where("id = ?", revCounterID).Select("rev").Scan(&rev).Error
	return rev, errors.WithStack(err)
}

func appendEvent(tx *gorm.DB, ev *model.ProfileEvent) error {
	rev, err := nextRev(tx)
	if err != nil {
		return err
	}
	ev.Rev = rev
	return errors.WithStack(tx.Create(ev).Error)
}

func (p *Profile) PutItem(key, value, origin string) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		ev := &model.ProfileEvent{Key: key, Value: value, Origin: origin}
		if err := appendEvent(tx, ev); err != nil {
			return err
		}
		it := &model.ProfileItem{Key: key, Value: value, Rev: ev.Rev}
		return errors.WithStack(tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(it).Error)
	})
}

var errNoItem = errors.New("profile item not found")

// DeleteItem records a tombstone event. Deleting a missing key is a no-op.
func (p *Profile) DeleteItem(key, origin string) error {
	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := appendEvent(tx, &model.ProfileEvent{Key: key, Origin: origin, Deleted: true}); err != nil {
			return err
		}
		res := tx.Where("name = ?", key).Delete(&model.ProfileItem{})
		if res.Error != nil {
			return errors.WithStack(res.Error)
		}
		if res.RowsAffected == 0 {
			return errNoItem
		}
		return nil
	})
	if errors.Is(err, errNoItem) {
		return nil
	}
	return err
}

func (p *Profile) ClearItems(origin string) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		var items []model.ProfileItem
		if err := tx.Order("name").Find(&items).Error; err != nil {
			return errors.WithStack(err)
		}
		for i := range items {
			ev := &model.ProfileEvent{Key: items[i].Key, Origin: origin, Deleted: true}
			if err := appendEvent(tx, ev); err != nil {
				return err
			}
			if err := tx.Where("name = ?", items[i].Key).Delete(&model.ProfileItem{}).Error; err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	})
}

func (p *Profile) ListItems() ([]model.ProfileItem, error) {
	var items []model.ProfileItem
	err := p.db.Order("name").Find(&items).Error
	return items, errors.WithStack(err)
}

// EventsAfter returns every write and tombstone recorded after rev, oldest
// first.
func (p *Profile) EventsAfter(rev int64) ([]model.ProfileEvent, error) {
	var events []model.ProfileEvent
	err := p.db.Where("rev > ?", rev).Order("rev ASC").Find(&events).Error
	return events, errors.WithStack(err)
}

// PruneEvents drops events recorded before the cutoff. A watcher that has
// not polled since then misses them.
func (p *Profile) PruneEvents(before time.Time) (int64, error) {
	res := p.db.Where("created < ?", before.UnixMilli()).Delete(&model.ProfileEvent{})
	return res.RowsAffected, errors.WithStack(res.Error)
}

func (p *Profile) MaxRev() (int64, error) {
	var rev int64
	err := p.db.Model(&model.ProfileRev{}).Where("id = ?", revCounterID).Select("rev").Scan(&rev).Error
	return rev, errors.WithStack(err)
}
