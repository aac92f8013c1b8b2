package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/soyeahso/repcoach/internal/history"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent workout history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := filepath.Join(paths.Data, "repcoach.db")
			db, err := history.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening history database: %w", err)
			}
			defer db.Close()

			store := history.NewStore(db)
			workouts, err := store.History(limit)
			if err != nil {
				return err
			}

			if len(workouts) == 0 {
				fmt.Println("No workouts logged yet.")
				return nil
			}
			printHistory(workouts)
			return nil
		},
	}

	cmd.AddCommand(newHistoryRecordsCmd())
	cmd.Flags().IntVar(&limit, "limit", 10, "number of workouts to show")

	return cmd
}

func newHistoryRecordsCmd() *cobra.Command {
	var workoutName string

	cmd := &cobra.Command{
		Use:   "records",
		Short: "Show personal records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := filepath.Join(paths.Data, "repcoach.db")
			db, err := history.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening history database: %w", err)
			}
			defer db.Close()

			store := history.NewStore(db)
			records, err := store.PersonalRecords(workoutName)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Println("No personal records yet.")
				return nil
			}
			for _, r := range records {
				fmt.Printf("%-12s %-8s %8.1f   %s\n",
					r.WorkoutName, r.RecordType, r.Value, r.AchievedAt.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workoutName, "workout", "", "filter by workout name")

	return cmd
}

// printHistory renders completed workouts one per line with a movement
// summary, newest first.
func printHistory(workouts []history.CompletedWorkout) {
	for _, w := range workouts {
		var parts []string
		for _, m := range w.Movements {
			parts = append(parts, fmt.Sprintf("%s:%d", m.Name, m.RepsCompleted))
		}
		fmt.Printf("%s  %-8s %s  %d reps  %s\n",
			w.CompletedAt.Format("2006-01-02"),
			w.WorkoutName,
			formatDuration(w.DurationSeconds),
			w.TotalReps,
			strings.Join(parts, ", "))
	}
}
