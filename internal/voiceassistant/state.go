// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     voiceassistant
// Description: Voice assistant state machine
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package voiceassistant

import (
	"sync"
	"time"
)

// State represents the current state of the voice assistant
type State int

const (
	// StateIdle - Connected, not capturing an utterance
	StateIdle State = iota

	// StateListening - Speech detected, streaming audio to the gateway
	StateListening

	// StateProcessing - Utterance committed, waiting for the response
	StateProcessing

	// StateSpeaking - Playing back synthesized audio
	StateSpeaking

	// StateInterrupted - Playback aborted by barge-in
	StateInterrupted

	// StateError - Unrecoverable error, requires reconnect
	StateError
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateInterrupted:
		return "interrupted"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// StateChangeListener is called when state changes
type StateChangeListener func(oldState, newState State)

// StateMachine manages state transitions
type StateMachine struct {
	mu            sync.RWMutex
	currentState  State
	previousState State
	stateTime     time.Time
	listeners     []StateChangeListener
}

// NewStateMachine creates a new state machine starting in idle
func NewStateMachine() *StateMachine {
	return &StateMachine{
		currentState: StateIdle,
		stateTime:    time.Now(),
	}
}

// Current returns the current state
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// Previous returns the previous state
func (sm *StateMachine) Previous() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.previousState
}

// StateDuration returns how long we've been in the current state
func (sm *StateMachine) StateDuration() time.Duration {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return time.Since(sm.stateTime)
}

// Transition changes to a new state. Invalid transitions are rejected
// and leave the current state untouched.
func (sm *StateMachine) Transition(newState State) bool {
	sm.mu.Lock()
	oldState := sm.currentState

	if !isValidStateTransition(oldState, newState) {
		sm.mu.Unlock()
		return false
	}

	sm.previousState = oldState
	sm.currentState = newState
	sm.stateTime = time.Now()
	listeners := sm.listeners
	sm.mu.Unlock()

	for _, listener := range listeners {
		listener(oldState, newState)
	}

	return true
}

// AddListener adds a state change listener
func (sm *StateMachine) AddListener(listener StateChangeListener) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, listener)
}

// isValidStateTransition checks if a state transition is valid
func isValidStateTransition(from, to State) bool {
	validTransitions := map[State][]State{
		StateIdle:        {StateListening, StateError},
		StateListening:   {StateProcessing, StateIdle, StateError},
		StateProcessing:  {StateSpeaking, StateListening, StateIdle, StateError},
		StateSpeaking:    {StateInterrupted, StateIdle, StateListening, StateError},
		StateInterrupted: {StateListening, StateIdle, StateError},
		StateError:       {StateIdle},
	}

	validTargets, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, valid := range validTargets {
		if valid == to {
			return true
		}
	}

	return false
}

// Reset forces the state machine back to idle
func (sm *StateMachine) Reset() {
	sm.mu.Lock()
	oldState := sm.currentState
	sm.previousState = oldState
	sm.currentState = StateIdle
	sm.stateTime = time.Now()
	listeners := sm.listeners
	sm.mu.Unlock()

	for _, listener := range listeners {
		listener(oldState, StateIdle)
	}
}

// IsActive returns true if the assistant is in the middle of a turn
func (sm *StateMachine) IsActive() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState != StateIdle && sm.currentState != StateError
}
