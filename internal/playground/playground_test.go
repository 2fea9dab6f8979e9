package playground

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/render"
)

func fastConfig(maxTicks int, seed int64) engine.Config {
	return engine.Config{Interval: time.Millisecond, MaxTicks: maxTicks, Seed: seed}
}

func mustBind[S engine.State[S]](t *testing.T, sim Simulator[S], cfg engine.Config) Session {
	t.Helper()
	s, err := Bind[S](sim, cfg)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	return s
}

func allOverlays(info Info) render.Options {
	opts := render.DefaultOptions()
	for _, o := range info.Overlays {
		opts.Overlays[o] = true
	}
	return opts
}

func TestGradientDescentFirstStep(t *testing.T) {
	gd, err := NewGradientDescent(nil)
	if err != nil {
		t.Fatal(err)
	}
	s := gd.Defaults()
	if s.X != 3 || s.Y != 3 {
		t.Fatalf("expected start (3,3), got (%v,%v)", s.X, s.Y)
	}

	out := gd.Step(s, nil)
	if out.Degenerate {
		t.Fatalf("unexpected degenerate step: %s", out.Reason)
	}
	if math.Abs(out.State.X-2.4) > 1e-9 || math.Abs(out.State.Y-2.4) > 1e-9 {
		t.Errorf("expected (2.4, 2.4), got (%v, %v)", out.State.X, out.State.Y)
	}
	if s.X != 3 {
		t.Error("step mutated its input state")
	}
}

func TestGradientDescentStopsAtBudget(t *testing.T) {
	gd, _ := NewGradientDescent(nil)
	sess := mustBind[GradientState](t, gd, gd.Info().Config)
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sess.Ticks() != 50 {
		t.Errorf("expected 50 ticks, got %d", sess.Ticks())
	}
	if sess.Status() != engine.Idle {
		t.Errorf("expected idle after budget, got %v", sess.Status())
	}
	if loss := sess.Values()["loss"]; loss > 1e-3 {
		t.Errorf("expected loss near zero, got %v", loss)
	}
}

func TestGradientDescentDivergence(t *testing.T) {
	gd, _ := NewGradientDescent(map[string]float64{"surface": 2})
	sess := mustBind[GradientState](t, gd, fastConfig(50, 1))
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	degenerate, reason := sess.Degenerate()
	if !degenerate || !strings.Contains(reason, "diverged") {
		t.Fatalf("expected divergence, got %v %q", degenerate, reason)
	}
	if sess.Ticks() != 1 {
		t.Errorf("expected the run to stop after 1 tick, got %d", sess.Ticks())
	}
	svg := render.SVG(sess.Frame(allOverlays(sess.Info())))
	if strings.Contains(svg, "NaN") || strings.Contains(svg, "Inf") {
		t.Error("diverged frame contains non-finite numbers")
	}
}

func TestKMeansAssignsNearestCentroid(t *testing.T) {
	points := []render.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 10, Y: 10}, {X: 9, Y: 9}, {X: -5, Y: 5}}
	centroids := []render.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: -5, Y: 4}}
	km := NewKMeansWith(points, centroids)

	out := km.Step(km.Defaults(), nil)
	want := []int{0, 0, 1, 1, 2}
	for i, p := range out.State.Points {
		if p.Label != want[i] {
			t.Errorf("point %d: expected cluster %d, got %d", i, want[i], p.Label)
		}
	}
	if out.State.Phase != UpdatePhase {
		t.Errorf("expected update phase next, got %v", out.State.Phase)
	}
}

func TestKMeansEmptyCluster(t *testing.T) {
	km := NewKMeansWith(
		[]render.Point{{X: 0, Y: 0}, {X: 1, Y: 0}},
		[]render.Point{{X: 0, Y: 0}, {X: 100, Y: 100}},
	)
	s := km.Step(km.Defaults(), nil).State
	out := km.Step(s, nil)

	if !out.Degenerate || out.Reason != "cluster 1 is empty" {
		t.Fatalf("expected empty cluster outcome, got %v %q", out.Degenerate, out.Reason)
	}
	if out.State.Centroids[1] != (render.Point{X: 100, Y: 100}) {
		t.Errorf("empty centroid moved to %v", out.State.Centroids[1])
	}
	if out.State.Centroids[0] != (render.Point{X: 0.5, Y: 0}) {
		t.Errorf("expected centroid 0 at mean (0.5, 0), got %v", out.State.Centroids[0])
	}
}

func TestKMeansConverges(t *testing.T) {
	km, _ := NewKMeans(nil)
	sess := mustBind[KMeansState](t, km, fastConfig(40, 1))
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sess.Ticks() >= 40 {
		t.Errorf("expected convergence before the budget, ran %d ticks", sess.Ticks())
	}
	if sess.Values()["changed"] != 0 {
		t.Errorf("expected no label changes at convergence")
	}
}

func pointShapes(f *render.Frame) []render.Shape {
	var out []render.Shape
	for _, s := range f.Shapes {
		if s.Style.Class == "point" {
			out = append(out, s)
		}
	}
	return out
}

func countClass(f *render.Frame, class string) int {
	n := 0
	for _, s := range f.Shapes {
		if s.Style.Class == class {
			n++
		}
	}
	return n
}

func TestSVMOverlayLeavesDataAlone(t *testing.T) {
	svm, _ := NewSVM(nil)
	sess := mustBind[SVMState](t, svm, fastConfig(100, 3))
	for i := 0; i < 20; i++ {
		if err := sess.StepOnce(); err != nil {
			t.Fatal(err)
		}
	}

	plain := sess.Frame(render.DefaultOptions())
	decorated := sess.Frame(allOverlays(sess.Info()))

	if !reflect.DeepEqual(pointShapes(plain), pointShapes(decorated)) {
		t.Error("overlay changed the drawn points")
	}
	if countClass(plain, "support-vector") != 0 {
		t.Error("support vectors drawn without the overlay")
	}
	want := int(sess.Values()["support_vectors"])
	if got := countClass(decorated, "support-vector"); got != want {
		t.Errorf("expected %d support vector markers, got %d", want, got)
	}
}

func TestSVMSeparatesBlobs(t *testing.T) {
	svm, _ := NewSVM(nil)
	sess := mustBind[SVMState](t, svm, fastConfig(100, 1))
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if acc := sess.Values()["accuracy"]; acc < 0.9 {
		t.Errorf("expected accuracy >= 0.9, got %v", acc)
	}
}

func TestSameSeedSameTrajectory(t *testing.T) {
	run := func(seed int64) []Record {
		svm, _ := NewSVM(nil)
		sess := mustBind[SVMState](t, svm, fastConfig(30, seed))
		if err := sess.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		return sess.Records()
	}
	a, b := run(42), run(42)
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different trajectories")
	}
	c := run(43)
	if reflect.DeepEqual(a[len(a)-1].Values, c[len(c)-1].Values) {
		t.Error("different seeds produced identical weights")
	}
}

func TestDecisionTreeGrows(t *testing.T) {
	dt, _ := NewDecisionTree(nil)
	sess := mustBind[TreeState](t, dt, fastConfig(40, 1))
	initial := sess.Values()["accuracy"]

	prev := initial
	for {
		err := sess.StepOnce()
		if errors.Is(err, engine.ErrExhausted) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		acc := sess.Values()["accuracy"]
		if acc < prev {
			t.Errorf("training accuracy dropped from %v to %v", prev, acc)
		}
		prev = acc
	}

	v := sess.Values()
	if v["depth"] > 4 {
		t.Errorf("tree deeper than max_depth: %v", v["depth"])
	}
	if v["accuracy"] <= initial {
		t.Errorf("expected splits to improve on %v, got %v", initial, v["accuracy"])
	}
	if v["leaves"] != v["splits"]+1 {
		t.Errorf("binary tree should have splits+1 leaves, got %v leaves for %v splits", v["leaves"], v["splits"])
	}
}

func TestEnsembleStopsAtMembers(t *testing.T) {
	e, _ := NewEnsemble(nil)
	sess := mustBind[EnsembleState](t, e, fastConfig(100, 1))
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sess.Ticks() != 25 {
		t.Errorf("expected 25 ticks, got %d", sess.Ticks())
	}
	if sess.Values()["members"] != 25 {
		t.Errorf("expected 25 members, got %v", sess.Values()["members"])
	}
	if acc := sess.Values()["ensemble_accuracy"]; acc <= 0.5 {
		t.Errorf("expected ensemble better than chance, got %v", acc)
	}
}

func TestFitStump(t *testing.T) {
	samples := []Sample{{X: 0, Label: 1}, {X: 1, Label: 1}, {X: 2, Label: 0}, {X: 3, Label: 0}}
	st := fitStump(samples, []int{0, 1, 2, 3})
	for _, s := range samples {
		if got := st.Predict(s.X, s.Y); got != s.Label {
			t.Errorf("x=%v: expected %d, got %d (stump %+v)", s.X, s.Label, got, st)
		}
	}
}

func TestNaiveBayesSmoothsEarlyVariance(t *testing.T) {
	nb, _ := NewNaiveBayes(nil)
	sess := mustBind[BayesState](t, nb, fastConfig(300, 1))

	if err := sess.StepOnce(); err != nil {
		t.Fatal(err)
	}
	degenerate, reason := sess.Degenerate()
	if !degenerate || !strings.Contains(reason, "fewer than two samples") {
		t.Errorf("expected degenerate first step, got %v %q", degenerate, reason)
	}

	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sess.Ticks() != 90 || sess.Values()["seen"] != 90 {
		t.Errorf("expected every point absorbed in 90 ticks, got %d ticks", sess.Ticks())
	}
	if degenerate, _ := sess.Degenerate(); degenerate {
		t.Error("expected a healthy final step")
	}
	if acc := sess.Values()["accuracy"]; acc < 0.6 {
		t.Errorf("expected accuracy >= 0.6, got %v", acc)
	}
}

func TestBatchNormNormalizes(t *testing.T) {
	bn, _ := NewBatchNorm(nil)
	rng := rand.New(rand.NewSource(1))

	s := bn.Defaults()
	for i := 0; i < 3; i++ {
		s = bn.Step(s, rng).State
	}
	if math.Abs(s.OutMean) > 1e-9 || math.Abs(s.OutStd-1) > 1e-3 {
		t.Errorf("expected mean 0 std 1, got %v %v", s.OutMean, s.OutStd)
	}

	s, _ = bn.Configure(s, "gamma", 2)
	s, _ = bn.Configure(s, "beta", 0.5)
	s = bn.Step(s, rng).State
	if math.Abs(s.OutMean-0.5) > 1e-9 || math.Abs(s.OutStd-2) > 1e-3 {
		t.Errorf("expected mean 0.5 std 2, got %v %v", s.OutMean, s.OutStd)
	}
}

func TestBatchNormEmptyBatch(t *testing.T) {
	bn, _ := NewBatchNorm(map[string]float64{"batch_size": 0})
	sess := mustBind[NormState](t, bn, fastConfig(10, 1))
	if err := sess.StepOnce(); err != nil {
		t.Fatal(err)
	}
	if degenerate, reason := sess.Degenerate(); !degenerate || reason != "empty batch" {
		t.Errorf("expected empty batch, got %v %q", degenerate, reason)
	}
	f := sess.Frame(render.DefaultOptions())
	if f.Placeholder != "empty batch" {
		t.Errorf("expected placeholder frame, got %q", f.Placeholder)
	}
}

func TestActivationDerivatives(t *testing.T) {
	const h = 1e-5
	for _, fn := range activations {
		for _, x := range []float64{-2, -0.5, 0.7, 3} {
			numeric := (fn.F(x+h, 0.01) - fn.F(x-h, 0.01)) / (2 * h)
			if got := fn.Deriv(x, 0.01); math.Abs(got-numeric) > 1e-4 {
				t.Errorf("%s'(%v): expected %v, got %v", fn.Name, x, numeric, got)
			}
		}
	}
}

func TestActivationSweep(t *testing.T) {
	a, _ := NewActivation(map[string]float64{"function": 2})
	sess := mustBind[ActivationState](t, a, fastConfig(250, 1))
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	v := sess.Values()
	if sess.Ticks() != 48 || v["x"] != 6 {
		t.Errorf("expected sweep to end at x=6 after 48 ticks, got x=%v after %d", v["x"], sess.Ticks())
	}
	if v["y"] != 6 || v["dy"] != 1 {
		t.Errorf("relu(6) should be 6 with slope 1, got %v %v", v["y"], v["dy"])
	}
}

func TestRNNConsumesSequence(t *testing.T) {
	r, _ := NewRNN(nil)
	sess := mustBind[RNNState](t, r, fastConfig(128, 1))
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sess.Ticks() != 32 {
		t.Errorf("expected one tick per input, got %d", sess.Ticks())
	}
	for i := 0; i < 4; i++ {
		h := sess.Values()["h"+string(rune('0'+i))]
		if math.Abs(h) > 1 {
			t.Errorf("h%d outside tanh range: %v", i, h)
		}
	}
}

func TestSolve(t *testing.T) {
	x, ok := Solve([][]float64{{2, 1}, {1, 3}}, []float64{3, 5})
	if !ok {
		t.Fatal("expected a solution")
	}
	if math.Abs(x[0]-0.8) > 1e-12 || math.Abs(x[1]-1.4) > 1e-12 {
		t.Errorf("expected (0.8, 1.4), got %v", x)
	}

	if _, ok := Solve([][]float64{{1, 2}, {2, 4}}, []float64{1, 2}); ok {
		t.Error("expected singular matrix to be rejected")
	}
}

func TestRegression(t *testing.T) {
	r, _ := NewRegression(nil)
	sess := mustBind[RegressionState](t, r, fastConfig(300, 1))
	before := sess.Values()["loss"]
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	v := sess.Values()
	if v["loss"] >= before {
		t.Errorf("expected loss to drop from %v, got %v", before, v["loss"])
	}
	if v["closed_form_loss"] > v["loss"]+1e-9 {
		t.Errorf("closed form %v should not be worse than gradient descent %v", v["closed_form_loss"], v["loss"])
	}
}

func TestRegressionSingular(t *testing.T) {
	r, _ := NewRegression(map[string]float64{"degree": 9, "points": 3})
	s := r.Defaults()
	if !s.Singular {
		t.Fatal("expected singular normal equations")
	}
	out := r.Step(s, nil)
	if !out.Degenerate || out.Reason != "normal equations are singular" {
		t.Errorf("expected singular outcome, got %v %q", out.Degenerate, out.Reason)
	}
}

func TestSessionResetRestoresDefaults(t *testing.T) {
	gd, _ := NewGradientDescent(nil)
	sess := mustBind[GradientState](t, gd, fastConfig(50, 1))
	fresh := sess.Values()

	for i := 0; i < 10; i++ {
		_ = sess.StepOnce()
	}
	if err := sess.SetParam("learning_rate", 0.5); err != nil {
		t.Fatal(err)
	}
	sess.Reset()

	if !reflect.DeepEqual(sess.Values(), fresh) {
		t.Errorf("expected defaults %v after reset, got %v", fresh, sess.Values())
	}
	if len(sess.Records()) != 0 || sess.Ticks() != 0 {
		t.Error("expected empty trajectory after reset")
	}
}

func TestSetParam(t *testing.T) {
	km, _ := NewKMeans(nil)
	sess := mustBind[KMeansState](t, km, fastConfig(20, 1))

	err := sess.SetParam("nope", 1)
	if !errors.Is(err, engine.ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
	var perr *ParamError
	if !errors.As(err, &perr) || perr.Name != "nope" {
		t.Errorf("expected ParamError naming the param, got %v", err)
	}

	if err := sess.SetParam("k", 50); err != nil {
		t.Fatal(err)
	}
	if got := sess.Params()["k"]; got != 6 {
		t.Errorf("expected k clamped to 6, got %v", got)
	}
	if err := sess.SetParam("k", 2.4); err != nil {
		t.Fatal(err)
	}
	if got := sess.Params()["k"]; got != 2 {
		t.Errorf("expected k rounded to 2, got %v", got)
	}
}

func TestUnknownOverride(t *testing.T) {
	if _, err := NewSVM(map[string]float64{"gamma": 1}); !errors.Is(err, engine.ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
}

func TestObserveSeesEveryTick(t *testing.T) {
	r, _ := NewRNN(map[string]float64{"length": 8})
	sess := mustBind[RNNState](t, r, fastConfig(100, 1))
	var ticks []int
	sess.Observe(func(rec Record) { ticks = append(ticks, rec.Tick) })
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ticks, []int{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("unexpected observed ticks %v", ticks)
	}
}

func TestGradientDescentRecoversAfterLoweringRate(t *testing.T) {
	gd, _ := NewGradientDescent(map[string]float64{"surface": 2, "learning_rate": 1})
	sess := mustBind[GradientState](t, gd, fastConfig(50, 1))
	if err := sess.StepOnce(); err != nil {
		t.Fatal(err)
	}
	if degenerate, _ := sess.Degenerate(); !degenerate {
		t.Fatal("expected the first step to diverge")
	}

	if err := sess.SetParam("learning_rate", 0.001); err != nil {
		t.Fatal(err)
	}
	if degenerate, reason := sess.Degenerate(); degenerate {
		t.Fatalf("still degenerate after lowering the rate: %q", reason)
	}
	if err := sess.Start(); err != nil {
		t.Fatalf("start after lowering the rate: %v", err)
	}
	if !sess.Tick() {
		t.Fatal("expected a tick after restarting")
	}
	if degenerate, reason := sess.Degenerate(); degenerate {
		t.Errorf("small rate diverged again: %q", reason)
	}
}

func TestKMeansFixedDataRejectsShapeParams(t *testing.T) {
	km := NewKMeansWith(
		[]render.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 5, Y: 5}},
		[]render.Point{{X: 0, Y: 0}, {X: 5, Y: 5}},
	)
	s := km.Defaults()
	for _, name := range []string{"k", "points", "spread"} {
		out, err := km.Configure(s, name, 4)
		if !errors.Is(err, engine.ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
		if len(out.Centroids) != 2 || out.Params.Int("k") != 2 {
			t.Errorf("%s: state changed to k=%d with %d centroids", name, out.Params.Int("k"), len(out.Centroids))
		}
	}
}

func TestMoonsNoiseJittersPointsOnly(t *testing.T) {
	clean := moons(rand.New(rand.NewSource(4)), 40, 0)
	noisy := moons(rand.New(rand.NewSource(4)), 40, 0.3)
	moved := 0
	for i := range clean {
		if clean[i].Label != noisy[i].Label {
			t.Fatalf("point %d changed label", i)
		}
		if clean[i].X != noisy[i].X || clean[i].Y != noisy[i].Y {
			moved++
		}
	}
	if moved == 0 {
		t.Error("noise did not move any point")
	}
}
