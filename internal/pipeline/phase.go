package pipeline

import (
	"fmt"

	"reframe/internal/registry"
)

// Phase is a position in the run state machine.
type Phase int

const (
	PhaseFresh Phase = iota
	PhaseResumable
	PhaseDraining
	PhaseAssembling
	PhaseAudioPending
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseFresh:
		return "fresh"
	case PhaseResumable:
		return "resumable"
	case PhaseDraining:
		return "draining"
	case PhaseAssembling:
		return "assembling"
	case PhaseAudioPending:
		return "audio_pending"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// registryState is the state persisted while p is active.
func (p Phase) registryState() registry.State {
	switch p {
	case PhaseFresh:
		return registry.StateExtracting
	case PhaseDraining:
		return registry.StateDraining
	case PhaseAssembling:
		return registry.StateAssembling
	case PhaseAudioPending:
		return registry.StateAudioPending
	case PhaseDone:
		return registry.StateDone
	default:
		return registry.StatePending
	}
}
