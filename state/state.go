package state

import (
	"errors"
	"sync"
	"time"
)

// AnyState matches every state id in AddTransition.
const AnyState = "*"

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from, to string, condition func() bool) error
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	OnUpdate(elapsed time.Duration)
	GetID() string
	HandleMessage(msg Message) error
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// 基础状态机实现
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	current := sm.currentState
	if !sm.allowed(current.GetID(), newState.GetID()) {
		sm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}
	sm.currentState = newState
	sm.mutex.Unlock()

	// hooks run unlocked so a phase may look up the machine while entering
	current.OnExit()
	newState.OnEnter()
	return nil
}

// allowed checks the exact, from-wildcard and to-wildcard conditions.
func (sm *BaseStateMachine) allowed(from, to string) bool {
	for _, key := range [][2]string{{from, to}, {from, AnyState}, {AnyState, to}} {
		conditions, exists := sm.transitions[key[0]]
		if !exists {
			continue
		}
		if condition, exists := conditions[key[1]]; exists && condition != nil && !condition() {
			return false
		}
	}
	return true
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from, to string, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[string]func() bool)
	}

	sm.transitions[from][to] = condition
	return nil
}

// 阶段基础结构
type PhaseBase struct {
	ID   string
	Game GameContext
}

func (s *PhaseBase) GetID() string {
	return s.ID
}

func (s *PhaseBase) OnEnter() {}

func (s *PhaseBase) OnExit() {}

func (s *PhaseBase) OnUpdate(elapsed time.Duration) {}

func (s *PhaseBase) HandleMessage(msg Message) error {
	return nil
}
