package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

func (db *Database) GetReadings(ctx context.Context, identifier, slug string, from, to *time.Time) (Readings, error) {
	if from == nil || to == nil {
		f := time.Now().AddDate(0, 0, -2)
		t := time.Now()
		from, to = &f, &t
	}
	const query = `
	SELECT id, time_stamp, unit_of_measurement, value, identifier, slug
	FROM Reading
	WHERE identifier = $1 AND slug = $2 AND time_stamp BETWEEN $3 AND $4
	ORDER BY time_stamp DESC;
	`

	rows, err := db.conn.Query(ctx, query, identifier, slug, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReadings(rows)
}

// GetLatestReadings returns the most recent sample per sensor, the shape the
// panel needs to render a dashboard without replaying history.
func (db *Database) GetLatestReadings(ctx context.Context, identifier string) (Readings, error) {
	const query = `
	SELECT DISTINCT ON (slug) id, time_stamp, unit_of_measurement, value, identifier, slug
	FROM Reading
	WHERE identifier = $1
	ORDER BY slug, time_stamp DESC;
	`

	rows, err := db.conn.Query(ctx, query, identifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReadings(rows)
}

func (db *Database) GetArchivedLogs(ctx context.Context, identifier string, limit int) (ArchivedLogs, error) {
	const query = `
	SELECT id, identifier, level, message, uptime_ms, epoch, archived_at
	FROM DeviceLog
	WHERE identifier = $1
	ORDER BY archived_at DESC, uptime_ms DESC
	LIMIT $2;
	`

	rows, err := db.conn.Query(ctx, query, identifier, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs ArchivedLogs
	for rows.Next() {
		var l ArchivedLog
		if err := rows.Scan(&l.Id, &l.Identifier, &l.Level, &l.Message, &l.UptimeMs, &l.Epoch, &l.ArchivedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		if err == pgx.ErrNoRows {
			return logs, nil
		}
		return nil, err
	}

	return logs, nil
}
