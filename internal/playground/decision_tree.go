package playground

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/render"
)

// TreeNode is one node of a flat binary tree. Leaves have Left == -1.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Depth     int
	Samples   []int
	Predict   int
	Gini      float64
	// Terminal leaves were found to have no useful split.
	Terminal bool
	// Region is the node's box in data space: minX, maxX, minY, maxY.
	Region [4]float64
}

func (n TreeNode) Leaf() bool { return n.Left < 0 }

type TreeState struct {
	Params   ParamSet
	Points   []Sample
	Nodes    []TreeNode
	Splits   int
	Accuracy float64
	Finished bool
}

func (s TreeState) Clone() TreeState {
	s.Params = s.Params.Clone()
	s.Points = cloneSamples(s.Points)
	nodes := make([]TreeNode, len(s.Nodes))
	for i, n := range s.Nodes {
		n.Samples = cloneInts(n.Samples)
		nodes[i] = n
	}
	s.Nodes = nodes
	return s
}

func (s TreeState) Values() map[string]float64 {
	leaves, depth := 0, 0
	for _, n := range s.Nodes {
		if n.Leaf() {
			leaves++
		}
		depth = max(depth, n.Depth)
	}
	return map[string]float64{
		"splits":   float64(s.Splits),
		"leaves":   float64(leaves),
		"depth":    float64(depth),
		"accuracy": s.Accuracy,
	}
}

func (s TreeState) params() ParamSet { return s.Params }

// Predict walks the tree for one point.
func (s TreeState) Predict(x, y float64) int {
	if len(s.Nodes) == 0 {
		return 0
	}
	i := 0
	for !s.Nodes[i].Leaf() {
		n := s.Nodes[i]
		v := x
		if n.Feature == 1 {
			v = y
		}
		if v <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return s.Nodes[i].Predict
}

var treeParams = []Param{
	{Name: "max_depth", Description: "deepest split allowed", Min: 1, Max: 8, Step: 1, Default: 4},
	{Name: "min_leaf", Description: "fewest samples per leaf", Min: 1, Max: 20, Step: 1, Default: 3},
	{Name: "points", Description: "number of points", Min: 20, Max: 300, Step: 10, Default: 120, Rebuild: true},
	{Name: "noise", Description: "point jitter", Min: 0, Max: 0.5, Step: 0.05, Default: 0.15, Rebuild: true},
	{Name: "data_seed", Description: "seed for the generated points", Min: 0, Max: 9999, Step: 1, Default: 11, Rebuild: true},
}

// DecisionTree grows a classification tree one split per tick.
type DecisionTree struct {
	initial ParamSet
}

func NewDecisionTree(overrides map[string]float64) (*DecisionTree, error) {
	ps, err := resolve(treeParams, overrides)
	if err != nil {
		return nil, err
	}
	return &DecisionTree{initial: ps}, nil
}

func (d *DecisionTree) Info() Info {
	return Info{
		Name:        "decision_tree",
		Title:       "Decision Tree",
		Description: "greedy Gini splits, one leaf per Grow Tree step",
		Params:      treeParams,
		Overlays:    []string{"regions", "splits"},
		Metric:      "accuracy",
		Config:      engine.Config{Interval: 800 * time.Millisecond, MaxTicks: 40, Seed: 1},
	}
}

func (d *DecisionTree) Defaults() TreeState { return d.build(d.initial.Clone()) }

func (d *DecisionTree) build(ps ParamSet) TreeState {
	s := TreeState{Params: ps, Points: moons(dataRNG(ps), ps.Int("points"), ps["noise"])}
	all := make([]int, len(s.Points))
	for i := range all {
		all[i] = i
	}
	minX, maxX, minY, maxY := bounds(s.Points)
	root := TreeNode{Left: -1, Right: -1, Samples: all, Region: [4]float64{minX, maxX, minY, maxY}}
	root.Predict, root.Gini = majority(s.Points, all, 2)
	s.Nodes = []TreeNode{root}
	s.Accuracy = treeAccuracy(s)
	return s
}

func (d *DecisionTree) Step(s TreeState, _ *rand.Rand) engine.Outcome[TreeState] {
	for {
		leaf := d.pickLeaf(s)
		if leaf < 0 {
			s.Finished = true
			return engine.Ok(s)
		}
		feature, threshold, ok := bestSplit(s.Points, s.Nodes[leaf].Samples, s.Params.Int("min_leaf"))
		if !ok {
			s.Nodes[leaf].Terminal = true
			continue
		}
		d.split(&s, leaf, feature, threshold)
		s.Splits++
		s.Accuracy = treeAccuracy(s)
		return engine.Ok(s)
	}
}

// pickLeaf returns the splittable leaf with the most impurity mass, or -1.
func (d *DecisionTree) pickLeaf(s TreeState) int {
	best, bestScore := -1, 0.0
	maxDepth, minLeaf := s.Params.Int("max_depth"), s.Params.Int("min_leaf")
	for i, n := range s.Nodes {
		if !n.Leaf() || n.Terminal || n.Depth >= maxDepth || len(n.Samples) < 2*minLeaf || n.Gini == 0 {
			continue
		}
		if score := n.Gini * float64(len(n.Samples)); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func (d *DecisionTree) split(s *TreeState, at, feature int, threshold float64) {
	parent := s.Nodes[at]
	var left, right []int
	for _, i := range parent.Samples {
		v := s.Points[i].X
		if feature == 1 {
			v = s.Points[i].Y
		}
		if v <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	lr, rr := parent.Region, parent.Region
	if feature == 0 {
		lr[1], rr[0] = threshold, threshold
	} else {
		lr[3], rr[2] = threshold, threshold
	}

	li, ri := len(s.Nodes), len(s.Nodes)+1
	for _, child := range []struct {
		samples []int
		region  [4]float64
	}{{left, lr}, {right, rr}} {
		n := TreeNode{Left: -1, Right: -1, Depth: parent.Depth + 1, Samples: child.samples, Region: child.region}
		n.Predict, n.Gini = majority(s.Points, child.samples, 2)
		s.Nodes = append(s.Nodes, n)
	}
	s.Nodes[at].Feature = feature
	s.Nodes[at].Threshold = threshold
	s.Nodes[at].Left, s.Nodes[at].Right = li, ri
}

func (d *DecisionTree) Done(s TreeState) bool { return s.Finished }

func (d *DecisionTree) Configure(s TreeState, name string, v float64) (TreeState, error) {
	ps, rebuild, err := configure(treeParams, s.Params, name, v)
	if err != nil {
		return s, err
	}
	if rebuild {
		return d.build(ps), nil
	}
	s.Params = ps
	// a looser limit can reopen leaves that were closed
	s.Finished = false
	for i := range s.Nodes {
		s.Nodes[i].Terminal = false
	}
	return s, nil
}

func (d *DecisionTree) Frame(s TreeState, _ []TreeState, opts render.Options) *render.Frame {
	f := render.NewFrame(opts.Width, opts.Height, "Decision Tree")
	vp := render.Fit(samplePoints(s.Points), opts.Width, opts.Height)

	if opts.Overlay("regions") {
		heatGrid(f, vp, 40, 26, func(x, y float64) (int, float64) { return s.Predict(x, y), 0.4 })
	}
	if opts.Overlay("splits") {
		st := render.Style{Stroke: render.Foreground, Width: 1.5, Class: "split"}
		for _, n := range s.Nodes {
			if n.Leaf() {
				continue
			}
			r := clampRegion(n.Region, vp)
			if n.Feature == 0 {
				x1, y1 := vp.Map(n.Threshold, r[2])
				x2, y2 := vp.Map(n.Threshold, r[3])
				f.Add(render.Line(x1, y1, x2, y2, st))
			} else {
				x1, y1 := vp.Map(r[0], n.Threshold)
				x2, y2 := vp.Map(r[1], n.Threshold)
				f.Add(render.Line(x1, y1, x2, y2, st))
			}
		}
	}

	drawSamples(f, vp, s.Points, 2.5)
	leaves := s.Values()["leaves"]
	label(f, vp.Margin, 12, fmt.Sprintf("splits %d  leaves %.0f  accuracy %.1f%%", s.Splits, leaves, s.Accuracy*100))
	return f
}

// clampRegion keeps split lines inside the viewport.
func clampRegion(r [4]float64, vp render.Viewport) [4]float64 {
	return [4]float64{
		math.Max(r[0], vp.MinX), math.Min(r[1], vp.MaxX),
		math.Max(r[2], vp.MinY), math.Min(r[3], vp.MaxY),
	}
}

func bounds(samples []Sample) (minX, maxX, minY, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range samples {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	if len(samples) == 0 {
		return -1, 1, -1, 1
	}
	return minX, maxX, minY, maxY
}

// majority returns the most common label among idx and their Gini impurity.
func majority(samples []Sample, idx []int, classes int) (int, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	counts := make([]int, classes)
	for _, i := range idx {
		counts[samples[i].Label]++
	}
	best := 0
	for c := range counts {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best, gini(counts, len(idx))
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

// bestSplit scans both features for the threshold with the lowest weighted
// Gini. ok is false when no split improves on the parent.
func bestSplit(samples []Sample, idx []int, minLeaf int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	_, parent := majority(samples, idx, 2)
	bestScore := parent
	sorted := make([]int, n)

	for feat := 0; feat < 2; feat++ {
		value := func(i int) float64 {
			if feat == 0 {
				return samples[i].X
			}
			return samples[i].Y
		}
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return value(sorted[a]) < value(sorted[b]) })

		left := make([]int, 2)
		right := make([]int, 2)
		for _, i := range sorted {
			right[samples[i].Label]++
		}
		for k := 0; k < n-1; k++ {
			lbl := samples[sorted[k]].Label
			left[lbl]++
			right[lbl]--
			nl, nr := k+1, n-k-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			a, b := value(sorted[k]), value(sorted[k+1])
			if a == b {
				continue
			}
			score := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(n)
			if score < bestScore-1e-12 {
				bestScore, feature, threshold, ok = score, feat, (a+b)/2, true
			}
		}
	}
	return feature, threshold, ok
}

func treeAccuracy(s TreeState) float64 {
	if len(s.Points) == 0 {
		return 0
	}
	correct := 0
	for _, p := range s.Points {
		if s.Predict(p.X, p.Y) == p.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(s.Points))
}
