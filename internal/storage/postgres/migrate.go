package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Direction selects which way Migrate moves the schema.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// NewMigrator returns a migrator over the embedded Migrations for dsn.
//
// Postcondition: the caller must Close the returned migrator.
func NewMigrator(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(Migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// MigrationResult reports the schema state after Migrate.
type MigrationResult struct {
	Version uint
	Dirty   bool
	Changed bool
}

// Migrate moves the schema at dsn in dir. steps == 0 applies every
// migration in that direction.
//
// Postcondition: an already current schema is not an error; Changed is false.
func Migrate(dsn string, dir Direction, steps int) (MigrationResult, error) {
	if steps < 0 {
		return MigrationResult{}, fmt.Errorf("invalid steps %d: must be >= 0", steps)
	}
	m, err := NewMigrator(dsn)
	if err != nil {
		return MigrationResult{}, err
	}
	defer m.Close()

	switch dir {
	case Up:
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case Down:
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return MigrationResult{}, fmt.Errorf("invalid direction %q: must be 'up' or 'down'", dir)
	}

	res := MigrationResult{Changed: true}
	if errors.Is(err, migrate.ErrNoChange) {
		res.Changed = false
	} else if err != nil {
		return MigrationResult{}, fmt.Errorf("migrating %s: %w", dir, err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return MigrationResult{}, fmt.Errorf("reading schema version: %w", verr)
	}
	res.Version, res.Dirty = version, dirty
	return res, nil
}
