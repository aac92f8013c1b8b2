package history

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create workouts, movement logs, and personal records",
		SQL: `
			CREATE TABLE workouts (
				id                INTEGER PRIMARY KEY AUTOINCREMENT,
				workout_name      TEXT NOT NULL,
				completed_at      TEXT NOT NULL DEFAULT (datetime('now')),
				duration_seconds  INTEGER NOT NULL,
				total_reps        INTEGER NOT NULL
			);

			CREATE INDEX idx_workouts_completed ON workouts (completed_at);

			CREATE TABLE movement_logs (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				workout_id      INTEGER NOT NULL REFERENCES workouts(id) ON DELETE CASCADE,
				movement_name   TEXT NOT NULL,
				reps_completed  INTEGER NOT NULL,
				time_per_rep    REAL
			);

			CREATE INDEX idx_movement_logs_workout ON movement_logs (workout_id, id);

			CREATE TABLE personal_records (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				workout_name TEXT NOT NULL,
				record_type  TEXT NOT NULL,
				value        REAL NOT NULL,
				achieved_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_records_workout ON personal_records (workout_name, achieved_at);
		`,
	},
}
