package database

import (
	"context"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
)

type Database struct {
	conn *pgx.Conn
	io.Closer
}

func NewDatabase(conn *pgx.Conn) *Database {
	return &Database{
		conn: conn,
	}
}

func (db *Database) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close(context.Background())
}

// Reading is one stored sensor sample.
type Reading struct {
	Id         int64     `json:"id"`
	TimeStamp  time.Time `json:"timestamp"`
	Unit       string    `json:"unit_of_measurement"`
	Value      string    `json:"value"`
	Identifier string    `json:"identifier"`
	Slug       string    `json:"slug"`
}

type Readings []Reading

// ArchivedLog is one device log line persisted past the device's ring buffer.
type ArchivedLog struct {
	Id         int64     `json:"id"`
	Identifier string    `json:"identifier"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	UptimeMs   int64     `json:"uptime_ms"`
	Epoch      int64     `json:"epoch"`
	ArchivedAt time.Time `json:"archived_at"`
}

type ArchivedLogs []ArchivedLog

func scanReadings(rows pgx.Rows) (Readings, error) {
	var readings Readings
	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.Id, &r.TimeStamp, &r.Unit, &r.Value, &r.Identifier, &r.Slug); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		if err == pgx.ErrNoRows {
			return readings, nil
		}
		return nil, err
	}

	return readings, nil
}
