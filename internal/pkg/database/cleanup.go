package database

import (
	"context"
	"time"
)

// Cleanup removes sensor samples older than a week and archived device logs
// older than a month.
func (db *Database) Cleanup(ctx context.Context) error {
	if _, err := db.conn.Exec(ctx, "DELETE FROM Reading WHERE time_stamp < $1", time.Now().AddDate(0, 0, -8)); err != nil {
		return err
	}
	if _, err := db.conn.Exec(ctx, "DELETE FROM DeviceLog WHERE archived_at < $1", time.Now().AddDate(0, -1, 0)); err != nil {
		return err
	}
	return nil
}
