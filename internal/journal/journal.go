package journal

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/actuator"
	"github.com/nerrad567/gray-logic-node/internal/telemetry"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500

	// timestampLayout is fixed-width so stored values sort as text.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// ReadingEntry is a stored sensor reading.
// Temperature and Humidity are NaN where the sensor read failed.
type ReadingEntry struct {
	ID int64
	telemetry.Reading
}

// ActuatorEvent is a stored actuator write.
type ActuatorEvent struct {
	ID        int64
	Command   actuator.Command
	AppliedAt time.Time
}

// Store records readings and actuator changes in SQLite.
//
// It satisfies telemetry.Recorder and actuator.ChangeRecorder, so it is
// attached to the publisher and reconciler rather than called directly.
type Store struct {
	db     *sql.DB
	device string
	now    func() time.Time
}

// NewStore creates a journal for device on an open, migrated database.
func NewStore(db *sql.DB, device string) *Store {
	return &Store{db: db, device: device, now: time.Now}
}

// RecordReading inserts one reading. A zero SampledAt is stamped with the
// current time. NaN values are stored as NULL.
func (s *Store) RecordReading(ctx context.Context, r telemetry.Reading) error {
	at := r.SampledAt
	if at.IsZero() {
		at = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO readings (device, temperature, humidity, sampled_at) VALUES (?, ?, ?, ?)",
		s.device,
		nullableFloat(r.Temperature),
		nullableFloat(r.Humidity),
		formatTimestamp(at),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}
	return nil
}

// RecordActuatorChange inserts one applied command.
func (s *Store) RecordActuatorChange(ctx context.Context, cmd actuator.Command, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO actuator_events (device, level, source, applied_at) VALUES (?, ?, ?, ?)",
		s.device,
		cmd.Level.String(),
		cmd.Source.String(),
		formatTimestamp(at),
	)
	if err != nil {
		return fmt.Errorf("inserting actuator event: %w", err)
	}
	return nil
}

// RecentReadings returns this device's readings, newest first.
// limit defaults to 50 and is capped at 500.
func (s *Store) RecentReadings(ctx context.Context, limit int) ([]ReadingEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, temperature, humidity, sampled_at
		 FROM readings
		 WHERE device = ?
		 ORDER BY sampled_at DESC, id DESC
		 LIMIT ?`,
		s.device, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var entries []ReadingEntry
	for rows.Next() {
		var (
			entry       ReadingEntry
			temperature sql.NullFloat64
			humidity    sql.NullFloat64
			sampledAt   string
		)
		if err := rows.Scan(&entry.ID, &temperature, &humidity, &sampledAt); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}

		entry.Temperature = floatOrNaN(temperature)
		entry.Humidity = floatOrNaN(humidity)
		if entry.SampledAt, err = parseTimestamp(sampledAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return entries, nil
}

// RecentActuatorEvents returns this device's actuator writes, newest first.
func (s *Store) RecentActuatorEvents(ctx context.Context, limit int) ([]ActuatorEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, level, source, applied_at
		 FROM actuator_events
		 WHERE device = ?
		 ORDER BY applied_at DESC, id DESC
		 LIMIT ?`,
		s.device, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying actuator events: %w", err)
	}
	defer rows.Close()

	var events []ActuatorEvent
	for rows.Next() {
		var (
			event                    ActuatorEvent
			level, source, appliedAt string
		)
		if err := rows.Scan(&event.ID, &level, &source, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning actuator event: %w", err)
		}

		if level == actuator.On.String() {
			event.Command.Level = actuator.On
		}
		if source == actuator.SourceRemote.String() {
			event.Command.Source = actuator.SourceRemote
		}
		if event.AppliedAt, err = parseTimestamp(appliedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actuator events: %w", err)
	}
	return events, nil
}

// Prune deletes readings and actuator events older than olderThan, across
// both tables in one transaction.
//
// Returns the total number of rows deleted.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := formatTimestamp(s.now().Add(-olderThan))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting prune: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	var total int64
	for _, stmt := range []string{
		"DELETE FROM readings WHERE sampled_at < ?",
		"DELETE FROM actuator_events WHERE applied_at < ?",
	} {
		result, err := tx.ExecContext(ctx, stmt, cutoff)
		if err != nil {
			return 0, fmt.Errorf("pruning journal: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("checking rows affected: %w", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}
	return total, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	return min(limit, maxHistoryLimit)
}

func nullableFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}
