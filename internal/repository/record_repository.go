package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/BDisp/app-application-logger/internal/models"
	"github.com/BDisp/app-application-logger/internal/record"
)

// RecordRepository stores the browsable history of activity records
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Insert stores one event of the given run
func (r *RecordRepository) Insert(e models.Event, runID, logFile string) error {
	query := `
		INSERT INTO activity_records (timestamp, unix_ms, kind, machine, title, location, subject, command_line, run_id, log_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(
		query,
		e.Timestamp.Format(record.TimeLayout),
		e.Timestamp.UnixMilli(),
		string(e.Kind),
		e.Machine,
		e.Title,
		e.Location,
		e.Subject,
		e.CommandLine,
		runID,
		logFile,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. An empty kind returns
// records of every kind.
func (r *RecordRepository) Recent(limit int, kind models.Kind) ([]*models.ActivityRecord, error) {
	query := `
		SELECT id, timestamp, kind, machine, title, location, subject, command_line, run_id, log_file
		FROM activity_records
		WHERE (? = '' OR kind = ?)
		ORDER BY unix_ms DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, string(kind), string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity records: %w", err)
	}
	defer rows.Close()

	var records []*models.ActivityRecord
	for rows.Next() {
		var (
			rec models.ActivityRecord
			ts  string
			k   string
		)
		err := rows.Scan(
			&rec.ID,
			&ts,
			&k,
			&rec.Machine,
			&rec.Title,
			&rec.Location,
			&rec.Subject,
			&rec.CommandLine,
			&rec.RunID,
			&rec.LogFile,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity record: %w", err)
		}

		rec.Timestamp, err = time.Parse(record.TimeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp of record %d: %w", rec.ID, err)
		}
		rec.Kind = models.Kind(k)
		records = append(records, &rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// CountByKind counts the records logged at or after since, per kind
func (r *RecordRepository) CountByKind(since time.Time) (map[models.Kind]int, error) {
	query := `
		SELECT kind, COUNT(*)
		FROM activity_records
		WHERE unix_ms >= ?
		GROUP BY kind
	`

	rows, err := r.db.Query(query, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to count activity records: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Kind]int)
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan activity count: %w", err)
		}
		counts[models.Kind(kind)] = count
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return counts, nil
}
