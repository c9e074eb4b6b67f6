// Package sqlite provides a SQLite-backed port inventory that satisfies
// core.PortResolver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/signalsfoundry/ce-endpoints/kb"
	"github.com/signalsfoundry/ce-endpoints/model"

	_ "modernc.org/sqlite"
)

// Store implements a persistent device/port inventory using SQLite
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// ":memory:" gives a private in-memory inventory.
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases consistent and matches
	// SQLite's single-writer model.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		manufacturer TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ports (
		device_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		speed_bps REAL NOT NULL DEFAULT 0,
		enabled INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (device_id, number),
		FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_ports_device ON ports(device_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertDevice inserts or updates a device
func (s *Store) UpsertDevice(ctx context.Context, d model.Device) error {
	if d.ID == "" {
		return fmt.Errorf("empty device ID")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (id, name, manufacturer, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			manufacturer = excluded.manufacturer,
			updated_at = CURRENT_TIMESTAMP
	`, string(d.ID), d.Name, d.Manufacturer)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

// GetDevice retrieves a device by ID
func (s *Store) GetDevice(ctx context.Context, id model.DeviceID) (model.Device, error) {
	d := model.Device{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT name, manufacturer FROM devices WHERE id = ?
	`, string(id)).Scan(&d.Name, &d.Manufacturer)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Device{}, fmt.Errorf("%w: %q", kb.ErrDeviceNotFound, id)
	}
	if err != nil {
		return model.Device{}, fmt.Errorf("failed to query device: %w", err)
	}
	return d, nil
}

// UpsertPort inserts or updates a port. The device must already exist.
func (s *Store) UpsertPort(ctx context.Context, p model.Port) error {
	if p.Speed < 0 {
		return fmt.Errorf("%w: negative speed on %s", kb.ErrPortBadInput, p.ConnectPoint())
	}
	if _, err := s.GetDevice(ctx, p.Device); err != nil {
		return err
	}
	return upsertPort(ctx, s.db, p)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertPort(ctx context.Context, db execer, p model.Port) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ports (device_id, number, name, speed_bps, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(device_id, number) DO UPDATE SET
			name = excluded.name,
			speed_bps = excluded.speed_bps,
			enabled = excluded.enabled,
			updated_at = CURRENT_TIMESTAMP
	`, string(p.Device), int64(p.Number), p.Name, p.Speed.Bps(), p.Enabled)
	if err != nil {
		return fmt.Errorf("failed to upsert port: %w", err)
	}
	return nil
}

// GetPort retrieves the port on cp
func (s *Store) GetPort(ctx context.Context, cp model.ConnectPoint) (model.Port, error) {
	var (
		name    string
		speed   float64
		enabled bool
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, speed_bps, enabled FROM ports WHERE device_id = ? AND number = ?
	`, string(cp.Device), int64(cp.Port)).Scan(&name, &speed, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish an unknown device from an unknown port.
		if _, derr := s.GetDevice(ctx, cp.Device); derr != nil {
			return model.Port{}, derr
		}
		return model.Port{}, fmt.Errorf("%w: %s", kb.ErrPortNotFound, cp)
	}
	if err != nil {
		return model.Port{}, fmt.Errorf("failed to query port: %w", err)
	}
	return model.Port{
		Device:  cp.Device,
		Number:  cp.Port,
		Name:    name,
		Speed:   model.Bps(speed),
		Enabled: enabled,
	}, nil
}

// ListPorts returns the ports of one device ordered by number
func (s *Store) ListPorts(ctx context.Context, device model.DeviceID) ([]model.Port, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT number, name, speed_bps, enabled FROM ports
		WHERE device_id = ? ORDER BY number
	`, string(device))
	if err != nil {
		return nil, fmt.Errorf("failed to query ports: %w", err)
	}
	defer rows.Close()

	var out []model.Port
	for rows.Next() {
		var (
			number  int64
			name    string
			speed   float64
			enabled bool
		)
		if err := rows.Scan(&number, &name, &speed, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan port: %w", err)
		}
		out = append(out, model.Port{
			Device:  device,
			Number:  model.PortNumber(number),
			Name:    name,
			Speed:   model.Bps(speed),
			Enabled: enabled,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ports: %w", err)
	}
	return out, nil
}

// DeletePort removes the port on cp
func (s *Store) DeletePort(ctx context.Context, cp model.ConnectPoint) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM ports WHERE device_id = ? AND number = ?
	`, string(cp.Device), int64(cp.Port))
	if err != nil {
		return fmt.Errorf("failed to delete port: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete port: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", kb.ErrPortNotFound, cp)
	}
	return nil
}

// PortSpeed implements core.PortResolver.
func (s *Store) PortSpeed(ctx context.Context, device model.DeviceID, port model.PortNumber) (model.Bandwidth, error) {
	p, err := s.GetPort(ctx, model.NewConnectPoint(device, port))
	if err != nil {
		return 0, err
	}
	return p.Speed, nil
}

// Import copies every device and port of src into the store in one
// transaction.
func (s *Store) Import(ctx context.Context, src *kb.KnowledgeBase) error {
	if src == nil {
		return fmt.Errorf("nil knowledge base")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range src.ListDevices() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO devices (id, name, manufacturer, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				manufacturer = excluded.manufacturer,
				updated_at = CURRENT_TIMESTAMP
		`, string(d.ID), d.Name, d.Manufacturer); err != nil {
			return fmt.Errorf("failed to import device %q: %w", d.ID, err)
		}
		for _, p := range src.ListPorts(d.ID) {
			if err := upsertPort(ctx, tx, p); err != nil {
				return fmt.Errorf("failed to import port %s: %w", p.ConnectPoint(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
