package optim

import (
	"math"
	"testing"
)

// bowl is f(x) = sum(x_i^2), grad = 2x.
func bowlGrad(x []float64) []float64 {
	g := make([]float64, len(x))
	for i := range x {
		g[i] = 2 * x[i]
	}
	return g
}

func TestSGDStep(t *testing.T) {
	p, mem := NewSGD().Update([]float64{3, 3}, bowlGrad([]float64{3, 3}), 0.1, Memory{})
	if math.Abs(p[0]-2.4) > 1e-12 || math.Abs(p[1]-2.4) > 1e-12 {
		t.Errorf("expected (2.4, 2.4), got %v", p)
	}
	if mem.T != 1 {
		t.Errorf("expected step count 1, got %d", mem.T)
	}
}

func TestOptimizersConverge(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			opt, err := New(name)
			if err != nil {
				t.Fatal(err)
			}
			p := []float64{3, -2}
			mem := Memory{}
			for i := 0; i < 2000; i++ {
				p, mem = opt.Update(p, bowlGrad(p), 0.01, mem)
			}
			if n := math.Hypot(p[0], p[1]); n > 0.1 {
				t.Errorf("%s did not converge: |p| = %f", name, n)
			}
		})
	}
}

func TestUpdateDoesNotMutateInputs(t *testing.T) {
	params := []float64{1, 1}
	mem := Memory{Velocity: []float64{0.5, 0.5}}
	_, next := NewMomentum(0.9).Update(params, []float64{1, 1}, 0.1, mem)
	if params[0] != 1 || mem.Velocity[0] != 0.5 {
		t.Error("update mutated its inputs")
	}
	if next.Velocity[0] == 0.5 {
		t.Error("expected velocity to change")
	}
}

func TestUnknownOptimizer(t *testing.T) {
	if _, err := New("lbfgs"); err == nil {
		t.Error("expected error for unknown optimizer")
	}
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	want := []string{"adam", "momentum", "rmsprop", "sgd"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func BenchmarkAdam(b *testing.B) {
	opt := NewAdam()
	p := []float64{1, 1}
	mem := Memory{}
	for i := 0; i < b.N; i++ {
		p, mem = opt.Update(p, bowlGrad(p), 0.01, mem)
	}
}
