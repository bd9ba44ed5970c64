package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for profile persistence.
type Repository interface {
	CreateProfile(ctx context.Context, p *Profile) error
	GetProfile(ctx context.Context, name string) (*Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	UpdateProfile(ctx context.Context, p *Profile) error
	DeleteProfile(ctx context.Context, name string) error

	// SetProfileDrivers replaces the profile's driver label list and
	// remote endpoint specs wholesale.
	SetProfileDrivers(ctx context.Context, name string, labels, remote []string) error
	GetProfileDriverLabels(ctx context.Context, name string) ([]string, error)
	GetProfileRemoteDrivers(ctx context.Context, name string) ([]string, error)

	SaveCustomDriver(ctx context.Context, d *CustomDriver) error
	ListCustomDrivers(ctx context.Context) ([]CustomDriver, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed profile repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateProfile inserts a new profile. A zero port defaults to 7624.
// Returns ErrAlreadyExists if the name is taken.
func (r *SQLiteRepository) CreateProfile(ctx context.Context, p *Profile) error {
	if p.Port == 0 {
		p.Port = 7624
	}

	const query = `INSERT INTO profiles (name, port, autostart, autoconnect)
		VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, p.Name, p.Port, p.AutoStart, p.AutoConnect)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, p.Name)
		}
		return fmt.Errorf("inserting profile %s: %w", p.Name, err)
	}

	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading profile id: %w", err)
	}
	return nil
}

// GetProfile returns the profile with the given name.
// Returns ErrNotFound if absent.
func (r *SQLiteRepository) GetProfile(ctx context.Context, name string) (*Profile, error) {
	const query = `SELECT id, name, port, autostart, autoconnect
		FROM profiles WHERE name = ?`

	var p Profile
	err := r.db.QueryRowContext(ctx, query, name).
		Scan(&p.ID, &p.Name, &p.Port, &p.AutoStart, &p.AutoConnect)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("querying profile %s: %w", name, err)
	}
	return &p, nil
}

// ListProfiles returns all profiles ordered by id.
func (r *SQLiteRepository) ListProfiles(ctx context.Context) ([]Profile, error) {
	const query = `SELECT id, name, port, autostart, autoconnect
		FROM profiles ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Port, &p.AutoStart, &p.AutoConnect); err != nil {
			return nil, fmt.Errorf("scanning profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating profiles: %w", err)
	}
	return profiles, nil
}

// UpdateProfile updates port and flags for the named profile.
// Returns ErrNotFound if absent.
func (r *SQLiteRepository) UpdateProfile(ctx context.Context, p *Profile) error {
	const query = `UPDATE profiles SET port = ?, autostart = ?, autoconnect = ?
		WHERE name = ?`

	res, err := r.db.ExecContext(ctx, query, p.Port, p.AutoStart, p.AutoConnect, p.Name)
	if err != nil {
		return fmt.Errorf("updating profile %s: %w", p.Name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, p.Name)
	}
	return nil
}

// DeleteProfile removes the named profile. Driver lists cascade.
// Deleting an absent profile is not an error.
func (r *SQLiteRepository) DeleteProfile(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting profile %s: %w", name, err)
	}
	return nil
}

// SetProfileDrivers replaces the driver label list and remote
// endpoint specs for the named profile in one transaction.
// Returns ErrNotFound if the profile does not exist.
func (r *SQLiteRepository) SetProfileDrivers(ctx context.Context, name string, labels, remote []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var profileID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM profiles WHERE name = ?`, name).Scan(&profileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("querying profile %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM profile_drivers WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("clearing profile drivers: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM profile_remote_drivers WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("clearing remote drivers: %w", err)
	}

	for _, label := range labels {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profile_drivers (profile_id, label) VALUES (?, ?)`,
			profileID, label); err != nil {
			return fmt.Errorf("inserting driver label %q: %w", label, err)
		}
	}
	for _, spec := range remote {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profile_remote_drivers (profile_id, spec) VALUES (?, ?)`,
			profileID, spec); err != nil {
			return fmt.Errorf("inserting remote spec %q: %w", spec, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing driver list: %w", err)
	}
	return nil
}

// GetProfileDriverLabels returns the driver labels of the named
// profile, in insertion order.
func (r *SQLiteRepository) GetProfileDriverLabels(ctx context.Context, name string) ([]string, error) {
	const query = `SELECT pd.label FROM profile_drivers pd
		JOIN profiles p ON p.id = pd.profile_id
		WHERE p.name = ? ORDER BY pd.id`
	return r.queryStrings(ctx, query, name)
}

// GetProfileRemoteDrivers returns the remote endpoint specs of the
// named profile. An empty slice means the profile has none.
func (r *SQLiteRepository) GetProfileRemoteDrivers(ctx context.Context, name string) ([]string, error) {
	const query = `SELECT prd.spec FROM profile_remote_drivers prd
		JOIN profiles p ON p.id = prd.profile_id
		WHERE p.name = ? ORDER BY prd.id`
	return r.queryStrings(ctx, query, name)
}

func (r *SQLiteRepository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// SaveCustomDriver inserts or replaces a custom driver definition,
// keyed by label.
func (r *SQLiteRepository) SaveCustomDriver(ctx context.Context, d *CustomDriver) error {
	if d.Version == "" {
		d.Version = "1.0"
	}

	const query = `INSERT INTO custom_drivers (label, name, family, binary, version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			name = excluded.name,
			family = excluded.family,
			binary = excluded.binary,
			version = excluded.version`
	if _, err := r.db.ExecContext(ctx, query,
		d.Label, d.Name, d.Family, d.Binary, d.Version); err != nil {
		return fmt.Errorf("saving custom driver %s: %w", d.Label, err)
	}
	return nil
}

// ListCustomDrivers returns all custom driver definitions.
func (r *SQLiteRepository) ListCustomDrivers(ctx context.Context) ([]CustomDriver, error) {
	const query = `SELECT id, label, name, family, binary, version
		FROM custom_drivers ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying custom drivers: %w", err)
	}
	defer rows.Close()

	var drivers []CustomDriver
	for rows.Next() {
		var d CustomDriver
		if err := rows.Scan(&d.ID, &d.Label, &d.Name, &d.Family, &d.Binary, &d.Version); err != nil {
			return nil, fmt.Errorf("scanning custom driver row: %w", err)
		}
		drivers = append(drivers, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating custom drivers: %w", err)
	}
	return drivers, nil
}

// isUniqueViolation reports whether the error is a SQLite UNIQUE
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
