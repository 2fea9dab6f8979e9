// Package optim provides first-order update rules for the gradient descent
// playground. Rules are pure: any running averages live in a Memory value
// that the caller stores alongside its parameters.
package optim

import (
	"fmt"
	"math"
	"sort"
)

// Memory carries an optimizer's running statistics between steps.
type Memory struct {
	Velocity []float64
	M        []float64
	V        []float64
	T        int
}

func (m Memory) Clone() Memory {
	return Memory{
		Velocity: cloneVec(m.Velocity),
		M:        cloneVec(m.M),
		V:        cloneVec(m.V),
		T:        m.T,
	}
}

type Optimizer interface {
	Name() string
	Update(params, grad []float64, lr float64, mem Memory) ([]float64, Memory)
}

type SGD struct{}

func NewSGD() *SGD { return &SGD{} }

func (SGD) Name() string { return "sgd" }

func (SGD) Update(params, grad []float64, lr float64, mem Memory) ([]float64, Memory) {
	out := make([]float64, len(params))
	for i := range params {
		out[i] = params[i] - lr*grad[i]
	}
	mem.T++
	return out, mem
}

// Momentum is heavy-ball momentum: v = beta*v + g; p -= lr*v.
type Momentum struct{ Beta float64 }

func NewMomentum(beta float64) *Momentum { return &Momentum{Beta: beta} }

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) Update(params, grad []float64, lr float64, mem Memory) ([]float64, Memory) {
	mem = mem.Clone()
	mem.Velocity = ensure(mem.Velocity, len(params))
	out := make([]float64, len(params))
	for i := range params {
		mem.Velocity[i] = m.Beta*mem.Velocity[i] + grad[i]
		out[i] = params[i] - lr*mem.Velocity[i]
	}
	mem.T++
	return out, mem
}

type RMSProp struct {
	Decay   float64
	Epsilon float64
}

func NewRMSProp() *RMSProp { return &RMSProp{Decay: 0.9, Epsilon: 1e-8} }

func (r *RMSProp) Name() string { return "rmsprop" }

func (r *RMSProp) Update(params, grad []float64, lr float64, mem Memory) ([]float64, Memory) {
	mem = mem.Clone()
	mem.V = ensure(mem.V, len(params))
	out := make([]float64, len(params))
	for i := range params {
		mem.V[i] = r.Decay*mem.V[i] + (1-r.Decay)*grad[i]*grad[i]
		out[i] = params[i] - lr*grad[i]/(math.Sqrt(mem.V[i])+r.Epsilon)
	}
	mem.T++
	return out, mem
}

type Adam struct {
	Beta1   float64
	Beta2   float64
	Epsilon float64
}

func NewAdam() *Adam { return &Adam{Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8} }

func (a *Adam) Name() string { return "adam" }

func (a *Adam) Update(params, grad []float64, lr float64, mem Memory) ([]float64, Memory) {
	mem = mem.Clone()
	mem.M = ensure(mem.M, len(params))
	mem.V = ensure(mem.V, len(params))
	mem.T++
	c1 := 1 - math.Pow(a.Beta1, float64(mem.T))
	c2 := 1 - math.Pow(a.Beta2, float64(mem.T))

	out := make([]float64, len(params))
	for i := range params {
		mem.M[i] = a.Beta1*mem.M[i] + (1-a.Beta1)*grad[i]
		mem.V[i] = a.Beta2*mem.V[i] + (1-a.Beta2)*grad[i]*grad[i]
		mHat, vHat := mem.M[i]/c1, mem.V[i]/c2
		out[i] = params[i] - lr*mHat/(math.Sqrt(vHat)+a.Epsilon)
	}
	return out, mem
}

var registry = map[string]func() Optimizer{
	"sgd":      func() Optimizer { return NewSGD() },
	"momentum": func() Optimizer { return NewMomentum(0.9) },
	"rmsprop":  func() Optimizer { return NewRMSProp() },
	"adam":     func() Optimizer { return NewAdam() },
}

func New(name string) (Optimizer, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown optimizer: %s", name)
	}
	return fn(), nil
}

// Names lists the registered optimizers alphabetically.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ensure(v []float64, n int) []float64 {
	if len(v) == n {
		return v
	}
	return make([]float64, n)
}

func cloneVec(v []float64) []float64 {
	if v == nil {
		return nil
	}
	c := make([]float64, len(v))
	copy(c, v)
	return c
}
