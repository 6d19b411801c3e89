package voiceassistant

import (
	"testing"
)

func TestStateMachine_ValidTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
	}{
		{
			name: "full turn",
			path: []State{StateListening, StateProcessing, StateSpeaking, StateIdle},
		},
		{
			name: "barge-in during playback",
			path: []State{StateListening, StateProcessing, StateSpeaking, StateInterrupted, StateListening},
		},
		{
			name: "abandoned utterance",
			path: []State{StateListening, StateIdle},
		},
		{
			name: "error and recovery",
			path: []State{StateListening, StateError, StateIdle},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			for _, next := range tt.path {
				if !sm.Transition(next) {
					t.Fatalf("transition %v -> %v rejected", sm.Current(), next)
				}
			}
			if sm.Current() != tt.path[len(tt.path)-1] {
				t.Errorf("final state = %v, want %v", sm.Current(), tt.path[len(tt.path)-1])
			}
		})
	}
}

func TestStateMachine_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{"idle to speaking", StateIdle, StateSpeaking},
		{"idle to processing", StateIdle, StateProcessing},
		{"listening to speaking", StateListening, StateSpeaking},
		{"error to listening", StateError, StateListening},
		{"idle to interrupted", StateIdle, StateInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if isValidStateTransition(tt.from, tt.to) {
				t.Errorf("transition %v -> %v should be invalid", tt.from, tt.to)
			}
		})
	}
}

func TestStateMachine_RejectedTransitionKeepsState(t *testing.T) {
	sm := NewStateMachine()

	if sm.Transition(StateSpeaking) {
		t.Fatal("idle -> speaking should be rejected")
	}
	if sm.Current() != StateIdle {
		t.Errorf("state = %v after rejected transition, want idle", sm.Current())
	}
}

func TestStateMachine_Listeners(t *testing.T) {
	sm := NewStateMachine()

	var got []State
	sm.AddListener(func(oldState, newState State) {
		got = append(got, newState)
	})

	sm.Transition(StateListening)
	sm.Transition(StateProcessing)

	if len(got) != 2 || got[0] != StateListening || got[1] != StateProcessing {
		t.Errorf("listener received %v", got)
	}
}

func TestStateMachine_Reset(t *testing.T) {
	sm := NewStateMachine()
	sm.Transition(StateListening)
	sm.Transition(StateError)

	sm.Reset()

	if sm.Current() != StateIdle {
		t.Errorf("state after Reset = %v, want idle", sm.Current())
	}
	if sm.Previous() != StateError {
		t.Errorf("previous after Reset = %v, want error", sm.Previous())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateListening, "listening"},
		{StateProcessing, "processing"},
		{StateSpeaking, "speaking"},
		{StateInterrupted, "interrupted"},
		{StateError, "error"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
