package bootstrap

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/smsdesk-org/smsdesk/cmd/flags"
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/internal/db"
	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/internal/op"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

// OpenStore connects the configured store driver.
func OpenStore(ctx context.Context) (driver.Driver, error) {
	s := conf.Conf.Store
	d, err := op.NewStore(ctx, s.Driver, s.Addition)
	if errors.Is(err, errs.DriverNotFound) {
		return nil, errors.WithMessagef(err, "available drivers: %v", op.GetDriverNames())
	}
	if err != nil {
		return nil, err
	}
	if d.Config().LocalOnly {
		utils.Log.Warnf("store driver %s is local to this process, other consoles will not see it", s.Driver)
	}
	return d, nil
}

// OpenProfile opens the database holding the profile's local storage.
// Consoles sharing it behave like tabs of one browser profile.
func OpenProfile(driverName, dsn string) (*db.Profile, error) {
	level := logger.Silent
	if flags.Debug || flags.Dev {
		level = logger.Info
	}
	var dialector gorm.Dialector
	switch driverName {
	case "sqlite3":
		dialector = sqlite.Open(dsn + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.Errorf("unknown profile driver %s", driverName)
	}
	d, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed open %s profile", driverName)
	}
	return db.Open(d)
}
