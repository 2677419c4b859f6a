package registry

import "time"

// State is the last recorded lifecycle position of a job.
type State string

const (
	StatePending      State = "pending"
	StateExtracting   State = "extracting"
	StateDraining     State = "draining"
	StateAssembling   State = "assembling"
	StateAudioPending State = "audio_pending"
	StateDone         State = "done"
	StateInterrupted  State = "interrupted"
	StateFailed       State = "failed"
)

var allStates = []State{
	StatePending,
	StateExtracting,
	StateDraining,
	StateAssembling,
	StateAudioPending,
	StateDone,
	StateInterrupted,
	StateFailed,
}

// AllStates returns every known state in lifecycle order.
func AllStates() []State {
	return append([]State(nil), allStates...)
}

// ParseState validates a state string.
func ParseState(value string) (State, bool) {
	for _, state := range allStates {
		if string(state) == value {
			return state, true
		}
	}
	return "", false
}

// Terminal reports whether the state needs no further run.
func (s State) Terminal() bool {
	return s == StateDone
}

// Job is a registry row for one (subject, target) pair.
type Job struct {
	Key          string
	SubjectPath  string
	TargetPath   string
	OutputPath   string
	WorkDir      string
	State        State
	FramesTotal  int
	FramesDone   int
	LastRunID    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Run records one invocation of the pipeline against a job.
type Run struct {
	ID           string
	JobKey       string
	Decision     string
	Workers      int
	Processed    int
	FailedChunks int
	Outcome      State
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}
