package event

// CommandStartedData is the data for command.started events.
type CommandStartedData struct {
	CallID  string `json:"callID"`
	Command string `json:"command"`
}

// CommandFinishedData is the data for command.finished events.
type CommandFinishedData struct {
	CallID     string `json:"callID"`
	Command    string `json:"command"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// FileEditedData is the data for file.edited events.
type FileEditedData struct {
	File      string `json:"file"`
	Operation string `json:"operation"`
}

// VcsBranchUpdatedData is the data for vcs.branch.updated events.
type VcsBranchUpdatedData struct {
	Branch string `json:"branch,omitempty"`
}

// AgentShutdownData is the data for agent.shutdown events.
type AgentShutdownData struct {
	Reason string `json:"reason"`
}
