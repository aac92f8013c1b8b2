package history

import (
	"database/sql"
	"fmt"
	"time"
)

// MovementResult is one movement line within a completed workout.
type MovementResult struct {
	Name          string
	RepsCompleted int
	TimePerRep    float64 // seconds; zero means not measured
}

// CompletedWorkout is the record of one finished workout.
type CompletedWorkout struct {
	ID              int64
	WorkoutName     string
	CompletedAt     time.Time
	DurationSeconds int
	TotalReps       int
	Movements       []MovementResult
}

// RecordType classifies a personal record.
type RecordType string

const (
	RecordTime   RecordType = "time"
	RecordReps   RecordType = "reps"
	RecordWeight RecordType = "weight"
)

// PersonalRecord is one best-ever result for a named workout.
type PersonalRecord struct {
	ID          int64
	WorkoutName string
	RecordType  RecordType
	Value       float64
	AchievedAt  time.Time
}

// Store persists workout results and personal records.
type Store struct {
	db *DB
}

// NewStore creates a store using the given database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// LogWorkout records a completed workout and its movement lines in one
// transaction. Either everything lands or nothing does.
func (s *Store) LogWorkout(w CompletedWorkout) (int64, error) {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin workout log: %w", err)
	}

	res, err := tx.Exec(
		`INSERT INTO workouts (workout_name, duration_seconds, total_reps)
		 VALUES (?, ?, ?)`,
		w.WorkoutName, w.DurationSeconds, w.TotalReps,
	)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("inserting workout: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("workout id: %w", err)
	}

	for _, m := range w.Movements {
		var perRep sql.NullFloat64
		if m.TimePerRep > 0 {
			perRep = sql.NullFloat64{Float64: m.TimePerRep, Valid: true}
		}
		if _, err := tx.Exec(
			`INSERT INTO movement_logs (workout_id, movement_name, reps_completed, time_per_rep)
			 VALUES (?, ?, ?, ?)`,
			id, m.Name, m.RepsCompleted, perRep,
		); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting movement %q: %w", m.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit workout log: %w", err)
	}

	s.db.log.Info().Int64("workoutId", id).Str("workout", w.WorkoutName).Msg("workout logged")
	return id, nil
}

// History returns the most recent completed workouts, newest first, with
// their movement lines attached.
func (s *Store) History(limit int) ([]CompletedWorkout, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.sql.Query(
		`SELECT id, workout_name, completed_at, duration_seconds, total_reps
		 FROM workouts ORDER BY completed_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var out []CompletedWorkout
	for rows.Next() {
		var w CompletedWorkout
		var completedAt string
		if err := rows.Scan(&w.ID, &w.WorkoutName, &completedAt, &w.DurationSeconds, &w.TotalReps); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		w.CompletedAt, _ = time.Parse(time.DateTime, completedAt)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		movements, err := s.loadMovements(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Movements = movements
	}
	return out, nil
}

// PersonalRecords returns records newest first. An empty workoutName
// returns records across all workouts.
func (s *Store) PersonalRecords(workoutName string) ([]PersonalRecord, error) {
	query := `SELECT id, workout_name, record_type, value, achieved_at
	          FROM personal_records ORDER BY achieved_at DESC, id DESC`
	args := []any{}
	if workoutName != "" {
		query = `SELECT id, workout_name, record_type, value, achieved_at
		         FROM personal_records WHERE workout_name = ? ORDER BY achieved_at DESC, id DESC`
		args = append(args, workoutName)
	}

	rows, err := s.db.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []PersonalRecord
	for rows.Next() {
		var r PersonalRecord
		var achievedAt string
		if err := rows.Scan(&r.ID, &r.WorkoutName, &r.RecordType, &r.Value, &achievedAt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.AchievedAt, _ = time.Parse(time.DateTime, achievedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetPersonalRecord stores a new record entry.
func (s *Store) SetPersonalRecord(workoutName string, rt RecordType, value float64) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO personal_records (workout_name, record_type, value)
		 VALUES (?, ?, ?)`,
		workoutName, rt, value,
	)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

func (s *Store) loadMovements(workoutID int64) ([]MovementResult, error) {
	rows, err := s.db.sql.Query(
		`SELECT movement_name, reps_completed, time_per_rep
		 FROM movement_logs WHERE workout_id = ? ORDER BY id`, workoutID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying movements: %w", err)
	}
	defer rows.Close()

	var out []MovementResult
	for rows.Next() {
		var m MovementResult
		var perRep sql.NullFloat64
		if err := rows.Scan(&m.Name, &m.RepsCompleted, &perRep); err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		if perRep.Valid {
			m.TimePerRep = perRep.Float64
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
