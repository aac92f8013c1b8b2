package protocol

// ToolDescriptor declares one invokable action to the backend.
// The set is fixed for the process lifetime and sent once at session setup.
type ToolDescriptor struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  ToolSchema `json:"parameters"`
}

// ToolSchema is the JSON Schema for a tool's arguments.
type ToolSchema struct {
	Type       string                  `json:"type"`
	Properties map[string]ToolProperty `json:"properties"`
	Required   []string                `json:"required,omitempty"`
}

// ToolProperty describes a single argument.
type ToolProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Tools returns the fixed tool set the coach exposes to the backend.
func Tools() []ToolDescriptor {
	return []ToolDescriptor{
		{
			Name:        "start_workout",
			Description: "Start a new workout session",
			Parameters: ToolSchema{
				Type: "object",
				Properties: map[string]ToolProperty{
					"workout": {
						Type:        "string",
						Description: "Name of the workout to start (optional)",
					},
				},
			},
		},
		{
			Name:        "next_movement",
			Description: "Move to the next exercise in the workout",
			Parameters:  ToolSchema{Type: "object", Properties: map[string]ToolProperty{}},
		},
		{
			Name:        "show_stats",
			Description: "Display current workout statistics",
			Parameters:  ToolSchema{Type: "object", Properties: map[string]ToolProperty{}},
		},
		{
			Name:        "end_workout",
			Description: "End the current workout session",
			Parameters:  ToolSchema{Type: "object", Properties: map[string]ToolProperty{}},
		},
		{
			Name:        "music_control",
			Description: "Control music playback",
			Parameters: ToolSchema{
				Type: "object",
				Properties: map[string]ToolProperty{
					"action": {
						Type:        "string",
						Enum:        []string{"play", "pause", "next", "volume_up", "volume_down"},
						Description: "The music control action to perform",
					},
				},
				Required: []string{"action"},
			},
		},
	}
}
