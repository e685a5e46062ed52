package database

import (
	"context"
	"time"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
)

func (db *Database) Write(ctx context.Context, identifier string, readings []model.SensorReading) error {
	tx, err := db.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	for _, r := range readings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO Reading (time_stamp, unit_of_measurement, value, identifier, slug)
			VALUES ($1, $2, $3, $4, $5)
		`, now, r.Unit, r.Value, identifier, r.Slug); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (db *Database) RegisterDevice(device *model.Device) error {
	_, err := db.conn.Exec(context.Background(), `
		INSERT INTO Device (id, model, mac, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name;`,
		device.ID, device.Model, device.Mac, device.Name)
	if err != nil {
		return err
	}

	return nil
}

// ArchiveLogs persists device log lines. The device keeps only a small ring
// buffer, so the same lines come back on every fetch; the unique index makes
// re-archiving them a no-op.
func (db *Database) ArchiveLogs(ctx context.Context, identifier string, entries []model.LogEntry) error {
	tx, err := db.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO DeviceLog (identifier, level, message, uptime_ms, epoch, archived_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (identifier, uptime_ms, message) DO NOTHING
		`, identifier, e.Level.String(), e.Message, e.UptimeMs, e.Epoch, time.Now()); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
