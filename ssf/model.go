package ssf

import (
	"fmt"
)

// StateComponent is an initialization paired with matching dynamics. It is
// the unit produced by structural builders and stacked by composition.
type StateComponent struct {
	Initialization Initialization
	Dynamics       Dynamics
}

// NewStateComponent checks that init and dyn describe the same state.
func NewStateComponent(init Initialization, dyn Dynamics) (*StateComponent, error) {
	const op = "ssf.NewStateComponent"
	if err := checkState(op, init, dyn); err != nil {
		return nil, err
	}
	return &StateComponent{Initialization: init, Dynamics: dyn}, nil
}

func (c *StateComponent) StateDim() int { return c.Dynamics.StateDim() }

// Model is a univariate linear Gaussian state-space model.
type Model struct {
	Initialization Initialization
	Dynamics       Dynamics
	Measurement    Measurement
}

// NewModel assembles a univariate model.
func NewModel(init Initialization, dyn Dynamics, m Measurement) (*Model, error) {
	const op = "ssf.NewModel"
	if err := checkState(op, init, dyn); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, Reject(op, fmt.Errorf("nil measurement: %w", ErrInvalidArgument))
	}
	return &Model{Initialization: init, Dynamics: dyn, Measurement: m}, nil
}

// Of turns a state component into a model observed through m.
func Of(c *StateComponent, m Measurement) (*Model, error) {
	return NewModel(c.Initialization, c.Dynamics, m)
}

func (m *Model) StateDim() int { return m.Dynamics.StateDim() }

// IsTimeInvariant reports whether both the dynamics and the measurement are
// time invariant.
func (m *Model) IsTimeInvariant() bool {
	return m.Dynamics.IsTimeInvariant() && m.Measurement.IsTimeInvariant()
}

// Component returns the state part of m.
func (m *Model) Component() *StateComponent {
	return &StateComponent{Initialization: m.Initialization, Dynamics: m.Dynamics}
}

// MultivariateModel observes several variables of one state.
type MultivariateModel struct {
	Initialization Initialization
	Dynamics       Dynamics
	Measurements   Measurements
}

// NewMultivariateModel assembles a multivariate model.
func NewMultivariateModel(init Initialization, dyn Dynamics, ms Measurements) (*MultivariateModel, error) {
	const op = "ssf.NewMultivariateModel"
	if err := checkState(op, init, dyn); err != nil {
		return nil, err
	}
	if ms == nil || ms.MaxCount() == 0 {
		return nil, Reject(op, fmt.Errorf("no measurements: %w", ErrInvalidArgument))
	}
	return &MultivariateModel{Initialization: init, Dynamics: dyn, Measurements: ms}, nil
}

func (m *MultivariateModel) StateDim() int { return m.Dynamics.StateDim() }

func (m *MultivariateModel) IsTimeInvariant() bool {
	return m.Dynamics.IsTimeInvariant() && m.Measurements.IsTimeInvariant()
}

// Multivariate presents a univariate model as a one-variable multivariate
// model.
func (m *Model) Multivariate() *MultivariateModel {
	return &MultivariateModel{
		Initialization: m.Initialization,
		Dynamics:       m.Dynamics,
		Measurements:   Proxy(m.Measurement),
	}
}

func checkState(op string, init Initialization, dyn Dynamics) error {
	if init == nil || dyn == nil {
		return Reject(op, fmt.Errorf("nil initialization or dynamics: %w", ErrInvalidArgument))
	}
	if ni, nd := init.StateDim(), dyn.StateDim(); ni != nd {
		return Reject(op, fmt.Errorf("initialization has dimension %d, dynamics %d: %w", ni, nd, ErrDimensionMismatch))
	}
	return nil
}
