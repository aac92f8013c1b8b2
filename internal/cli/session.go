package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/soyeahso/repcoach/internal/audio"
	"github.com/soyeahso/repcoach/internal/config"
	"github.com/soyeahso/repcoach/internal/conversation"
	"github.com/soyeahso/repcoach/internal/dispatch"
	"github.com/soyeahso/repcoach/internal/history"
	"github.com/soyeahso/repcoach/internal/music"
	"github.com/soyeahso/repcoach/internal/session"
	"github.com/soyeahso/repcoach/internal/transcribe"
	"github.com/soyeahso/repcoach/internal/workout"
	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage voice coaching sessions",
	}

	cmd.AddCommand(newSessionRunCmd())
	return cmd
}

func newSessionRunCmd() *cobra.Command {
	var workoutName string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a voice coaching session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			app, err := newSessionApp(cfg)
			if err != nil {
				return err
			}
			defer app.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.client.Start(ctx); err != nil {
				return err
			}

			if workoutName != "" {
				app.handleStartWorkout(workoutName)
			}

			<-ctx.Done()
			app.client.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&workoutName, "workout", "", "start this catalog workout immediately (Murph, Fran, Grace)")

	return cmd
}

// sessionApp owns one coaching session end to end: the voice client, the
// workout tracker, and the optional music and history integrations.
type sessionApp struct {
	client  *session.Client
	tracker *workout.Tracker
	player  *music.Client
	db      *history.DB
	store   *history.Store
}

func newSessionApp(cfg config.Config) (*sessionApp, error) {
	app := &sessionApp{tracker: workout.NewTracker()}

	src := audio.NewMicSource(cfg.Audio.SampleRate, cfg.Audio.Channels)
	pipeline := audio.NewPipeline(src, audio.Config{
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       cfg.Audio.Channels,
		ChunkInterval:  time.Duration(cfg.Audio.ChunkMs) * time.Millisecond,
		DetectInterval: time.Duration(cfg.Audio.DetectMs) * time.Millisecond,
		Hang:           time.Duration(cfg.Audio.HangMs) * time.Millisecond,
		Threshold:      cfg.Audio.Threshold,
	}, log)

	transcriptionKey := cfg.Transcription.APIKey
	if transcriptionKey == "" {
		transcriptionKey = cfg.Realtime.APIKey
	}
	transcriber := transcribe.NewWhisper(transcribe.WhisperConfig{
		URL:        cfg.Transcription.URL,
		APIKey:     transcriptionKey,
		Model:      cfg.Transcription.Model,
		Language:   cfg.Transcription.Language,
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		Timeout:    time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second,
	}, log)

	app.client = session.New(session.Config{
		URL:           realtimeURL(cfg.Realtime),
		Credential:    cfg.Realtime.APIKey,
		Voice:         cfg.Realtime.Voice,
		TurnDetection: cfg.Realtime.TurnDetection,
		Instructions:  cfg.Realtime.Instructions,
	}, pipeline, transcriber, log)

	if cfg.History.Store == "sqlite" {
		dbPath := filepath.Join(paths.Data, "repcoach.db")
		db, err := history.Open(dbPath, log)
		if err != nil {
			return nil, fmt.Errorf("opening history database: %w", err)
		}
		app.db = db
		app.store = history.NewStore(db)
	}

	player, err := music.NewClient(cfg.Music, log)
	if err == nil {
		app.player = player
	} else if err != music.ErrNotConfigured {
		return nil, err
	}

	app.client.SetActionHandler(app.handleAction)
	app.client.SetConversationObserver(printConversation)
	app.client.SetVoiceActivityObserver(func(active bool) {
		if active {
			fmt.Println("  [listening...]")
		}
	})

	return app, nil
}

func (a *sessionApp) close() {
	if a.db != nil {
		a.db.Close()
	}
}

// handleAction is the dispatcher target. Any one action failing is logged
// and absorbed; the session keeps running.
func (a *sessionApp) handleAction(action dispatch.Action) {
	switch action {
	case dispatch.ActionStartWorkout:
		a.handleStartWorkout("Murph")
	case dispatch.ActionNextMovement:
		a.handleNextMovement()
	case dispatch.ActionShowStats:
		a.handleShowStats()
	case dispatch.ActionEndWorkout:
		a.handleEndWorkout()
	case dispatch.ActionMusicPlay, dispatch.ActionMusicPause, dispatch.ActionMusicNext,
		dispatch.ActionMusicVolumeUp, dispatch.ActionMusicVolumeDown:
		if a.player == nil {
			log.Debug().Str("action", string(action)).Msg("music not configured")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.player.HandleAction(ctx, action); err != nil {
			log.Warn().Err(err).Str("action", string(action)).Msg("music action failed")
		}
	}
}

func (a *sessionApp) handleStartWorkout(name string) {
	w, err := a.tracker.Start(name)
	if err != nil {
		log.Warn().Err(err).Msg("could not start workout")
		return
	}
	fmt.Printf("\n=== %s (%s) ===\n%s\n\n", w.Name, w.Type, w.Description)
	a.pushWorkoutState()
}

func (a *sessionApp) handleNextMovement() {
	next, more, err := a.tracker.Advance()
	if err != nil {
		log.Warn().Err(err).Msg("could not advance workout")
		return
	}
	if !more {
		fmt.Println("\nAll movements complete. Say \"end workout\" to log it.")
		return
	}
	fmt.Printf("\nNext up: %s x%d\n", next.Name, next.Reps)
	a.pushWorkoutState()
}

func (a *sessionApp) handleShowStats() {
	if a.store == nil {
		fmt.Println("\n(no workout history store configured)")
		return
	}
	workouts, err := a.store.History(5)
	if err != nil {
		log.Warn().Err(err).Msg("could not load history")
		return
	}
	fmt.Println()
	printHistory(workouts)
}

func (a *sessionApp) handleEndWorkout() {
	summary, err := a.tracker.Finish()
	if err != nil {
		log.Warn().Err(err).Msg("could not end workout")
		return
	}
	fmt.Printf("\n%s done in %s, %d total reps\n",
		summary.Name, formatDuration(summary.DurationSeconds), summary.TotalReps)

	if a.store == nil {
		return
	}
	record := history.CompletedWorkout{
		WorkoutName:     summary.Name,
		DurationSeconds: summary.DurationSeconds,
		TotalReps:       summary.TotalReps,
	}
	for _, m := range summary.Movements {
		record.Movements = append(record.Movements, history.MovementResult{
			Name:          m.Name,
			RepsCompleted: m.RepsCompleted,
			TimePerRep:    m.TimePerRep,
		})
	}
	if _, err := a.store.LogWorkout(record); err != nil {
		log.Warn().Err(err).Msg("could not log workout")
	}
}

// pushWorkoutState feeds the current movement into the session so the
// coach commentary reflects live pace.
func (a *sessionApp) pushWorkoutState() {
	m, err := a.tracker.Current()
	if err != nil {
		return
	}
	a.client.UpdateWorkoutState(workout.State{
		Name:          m.Name,
		RepsCompleted: 0,
		TimePerRep:    0,
	})
}

// realtimeURL appends the model selector to the backend endpoint.
func realtimeURL(cfg config.RealtimeConfig) string {
	if cfg.Model == "" || strings.Contains(cfg.URL, "model=") {
		return cfg.URL
	}
	sep := "?"
	if strings.Contains(cfg.URL, "?") {
		sep = "&"
	}
	return cfg.URL + sep + "model=" + cfg.Model
}

// printConversation renders the latest entry of a conversation snapshot.
func printConversation(entries []conversation.Entry) {
	if len(entries) == 0 {
		return
	}
	e := entries[len(entries)-1]
	who := "You"
	if e.Speaker == conversation.SpeakerCoach {
		who = "Coach"
	}
	fmt.Printf("[%s] %s: %s\n", e.Timestamp.Format("15:04:05"), who, e.Message)
}

func formatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
