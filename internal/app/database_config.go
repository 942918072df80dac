package app

import (
	"strings"

	"github.com/charlesng35/inkpost/internal/database"
)

// ConnectionConfig converts DatabaseConfig into database.Config, normalising the driver name.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	switch driver {
	case "":
		driver = "sqlite"
	case "postgresql":
		driver = "postgres"
	}

	return database.Config{
		Driver:          driver,
		Path:            strings.TrimSpace(c.Path),
		DSN:             strings.TrimSpace(c.DSN),
		Host:            strings.TrimSpace(c.Host),
		Port:            c.Port,
		Name:            strings.TrimSpace(c.Name),
		User:            strings.TrimSpace(c.Username),
		Password:        c.Password,
		Options:         c.Options,
		MaxOpenConns:    c.MaxOpenConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}
