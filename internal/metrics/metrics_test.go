package metrics

import (
	"testing"

	"github.com/san-kum/mlplay/internal/playground"
)

func records(key string, vals ...float64) []playground.Record {
	out := make([]playground.Record, len(vals))
	for i, v := range vals {
		out[i] = playground.Record{Tick: i + 1, Values: map[string]float64{key: v}}
	}
	return out
}

func TestFinalAndBest(t *testing.T) {
	rs := records("loss", 5, 2, 3, 1, 4)

	got := Summarize(rs, NewFinal("loss"), NewMin("loss"), NewMax("loss"))
	want := map[string]float64{"final_loss": 4, "min_loss": 1, "max_loss": 5}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: expected %v, got %v", k, v, got[k])
		}
	}
}

func TestConvergedAt(t *testing.T) {
	m := NewConvergedAt("grad_norm", 0.5)
	for _, r := range records("grad_norm", 3, 1, 0.4, 0.1) {
		m.Observe(r)
	}
	if m.Value() != 3 {
		t.Errorf("expected convergence at tick 3, got %v", m.Value())
	}

	m.Reset()
	for _, r := range records("grad_norm", 3, 2) {
		m.Observe(r)
	}
	if m.Value() != -1 {
		t.Errorf("expected -1 when never converged, got %v", m.Value())
	}
}

func TestStability(t *testing.T) {
	s := NewStability()
	if s.Value() != 1.0 {
		t.Errorf("expected 1.0 with no samples, got %f", s.Value())
	}
	s.Observe(playground.Record{Tick: 1})
	s.Observe(playground.Record{Tick: 2, Degenerate: true, Reason: "cluster 0 is empty"})
	if s.Value() != 0.5 {
		t.Errorf("expected 0.5, got %f", s.Value())
	}
	s.Reset()
	if s.Value() != 1.0 {
		t.Error("expected reset to clear samples")
	}
}

func TestDefaultsPickDirection(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"loss", "min_loss"},
		{"accuracy", "max_accuracy"},
		{"ensemble_accuracy", "max_ensemble_accuracy"},
	}
	for _, tt := range tests {
		ms := Defaults(tt.key)
		if ms[1].Name() != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.key, tt.want, ms[1].Name())
		}
	}
}
