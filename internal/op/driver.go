package op

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smsdesk-org/smsdesk/internal/driver"
	"github.com/smsdesk-org/smsdesk/internal/errs"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

type DriverConstructor func() driver.Driver

var driverMap = map[string]DriverConstructor{}

func RegisterDriver(driver DriverConstructor) {
	tempDriver := driver()
	tempConfig := tempDriver.Config()
	log.Debugf("register store driver: [%s]", tempConfig.Name)
	driverMap[tempConfig.Name] = driver
}

func GetDriver(name string) (DriverConstructor, error) {
	n, ok := driverMap[name]
	if !ok {
		return nil, errors.WithMessagef(errs.DriverNotFound, "no driver named: %s", name)
	}
	return n, nil
}

func GetDriverNames() []string {
	var names []string
	for k := range driverMap {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// NewStore creates the named driver, fills its addition from JSON and connects it.
func NewStore(ctx context.Context, name, addition string) (driver.Driver, error) {
	c, err := GetDriver(name)
	if err != nil {
		return nil, err
	}
	d := c()
	if strings.TrimSpace(addition) != "" {
		if err := utils.Json.UnmarshalFromString(addition, d.GetAddition()); err != nil {
			return nil, errors.Wrapf(err, "failed unmarshal addition of %s", name)
		}
	}
	if err := d.Init(ctx); err != nil {
		return nil, errors.WithMessagef(err, "failed init store driver %s", name)
	}
	return d, nil
}
