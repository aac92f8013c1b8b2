package workout

// MovementType distinguishes rep-counted movements from distance work.
type MovementType string

const (
	MovementDistance MovementType = "distance"
	MovementReps     MovementType = "reps"
)

// Movement is one exercise within a workout.
type Movement struct {
	Name string       `json:"name"`
	Reps int          `json:"reps"`
	Type MovementType `json:"type"`
}

// Workout is a named benchmark workout.
type Workout struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Movements   []Movement `json:"movements"`
}

// Catalog is the built-in benchmark workout list.
var Catalog = map[string]Workout{
	"Murph": {
		Name:        "Murph",
		Description: "1 mile Run, 100 Pull-ups, 200 Push-ups, 300 Squats, 1 mile Run",
		Type:        "For Time",
		Movements: []Movement{
			{Name: "1 Mile Run", Reps: 1, Type: MovementDistance},
			{Name: "Pull-ups", Reps: 100, Type: MovementReps},
			{Name: "Push-ups", Reps: 200, Type: MovementReps},
			{Name: "Squats", Reps: 300, Type: MovementReps},
			{Name: "1 Mile Run", Reps: 1, Type: MovementDistance},
		},
	},
	"Fran": {
		Name:        "Fran",
		Description: "21-15-9 Thrusters (95/65 lb) & Pull-ups",
		Type:        "For Time",
		Movements: []Movement{
			{Name: "Thrusters", Reps: 21, Type: MovementReps},
			{Name: "Pull-ups", Reps: 21, Type: MovementReps},
			{Name: "Thrusters", Reps: 15, Type: MovementReps},
			{Name: "Pull-ups", Reps: 15, Type: MovementReps},
			{Name: "Thrusters", Reps: 9, Type: MovementReps},
			{Name: "Pull-ups", Reps: 9, Type: MovementReps},
		},
	},
	"Grace": {
		Name:        "Grace",
		Description: "30 Clean & Jerks (135/95 lb)",
		Type:        "For Time",
		Movements: []Movement{
			{Name: "Clean & Jerks", Reps: 30, Type: MovementReps},
		},
	},
}
