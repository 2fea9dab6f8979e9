// Package metrics summarizes a run's trajectory into single numbers.
package metrics

import (
	"math"

	"github.com/san-kum/mlplay/internal/playground"
)

// Metric folds trajectory records into one value.
type Metric interface {
	Name() string
	Observe(r playground.Record)
	Value() float64
	Reset()
}

// Final keeps the last observed value of one key.
type Final struct {
	key   string
	value float64
}

func NewFinal(key string) *Final { return &Final{key: key} }

func (f *Final) Name() string { return "final_" + f.key }

func (f *Final) Observe(r playground.Record) {
	if v, ok := r.Values[f.key]; ok {
		f.value = v
	}
}

func (f *Final) Value() float64 { return f.value }

func (f *Final) Reset() { f.value = 0 }

// Best tracks the minimum, or maximum when higher is better.
type Best struct {
	key    string
	higher bool
	value  float64
	seen   bool
}

func NewMin(key string) *Best { return &Best{key: key} }

func NewMax(key string) *Best { return &Best{key: key, higher: true} }

func (b *Best) Name() string {
	if b.higher {
		return "max_" + b.key
	}
	return "min_" + b.key
}

func (b *Best) Observe(r playground.Record) {
	v, ok := r.Values[b.key]
	if !ok {
		return
	}
	if !b.seen || (b.higher && v > b.value) || (!b.higher && v < b.value) {
		b.value, b.seen = v, true
	}
}

func (b *Best) Value() float64 { return b.value }

func (b *Best) Reset() { b.value, b.seen = 0, false }

// ConvergedAt records the first tick where key dropped below threshold,
// or -1 if it never did.
type ConvergedAt struct {
	key       string
	threshold float64
	tick      int
}

func NewConvergedAt(key string, threshold float64) *ConvergedAt {
	return &ConvergedAt{key: key, threshold: threshold, tick: -1}
}

func (c *ConvergedAt) Name() string { return "converged_at" }

func (c *ConvergedAt) Observe(r playground.Record) {
	if c.tick >= 0 {
		return
	}
	if v, ok := r.Values[c.key]; ok && math.Abs(v) < c.threshold {
		c.tick = r.Tick
	}
}

func (c *ConvergedAt) Value() float64 { return float64(c.tick) }

func (c *ConvergedAt) Reset() { c.tick = -1 }

// Defaults returns the summary metrics for a simulator whose headline value
// is key. Lower is better unless the key is an accuracy.
func Defaults(key string) []Metric {
	best := Metric(NewMin(key))
	if isScore(key) {
		best = NewMax(key)
	}
	return []Metric{NewFinal(key), best, NewStability()}
}

func isScore(key string) bool {
	switch key {
	case "accuracy", "ensemble_accuracy", "stump_accuracy":
		return true
	}
	return false
}

// Summarize runs metrics over records and returns name -> value.
func Summarize(records []playground.Record, ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for _, r := range records {
			m.Observe(r)
		}
		out[m.Name()] = m.Value()
	}
	return out
}
