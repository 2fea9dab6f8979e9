package config

import "sort"

var Presets = map[string]map[string]*Config{
	"gradient_descent": {
		"gentle": {
			Simulator: "gradient_descent", MaxTicks: 50,
			Params: map[string]float64{"learning_rate": 0.05},
		},
		"overshoot": {
			Simulator: "gradient_descent", MaxTicks: 50,
			Params: map[string]float64{"learning_rate": 0.95},
		},
		"ravine": {
			Simulator: "gradient_descent", MaxTicks: 50,
			Params: map[string]float64{"surface": 1, "optimizer": 1, "learning_rate": 0.04},
		},
		"banana": {
			Simulator: "gradient_descent", MaxTicks: 500,
			Params: map[string]float64{"surface": 2, "optimizer": 3, "learning_rate": 0.05, "x0": -1.5, "y0": 2},
		},
	},
	"kmeans": {
		"underfit": {
			Simulator: "kmeans",
			Params:    map[string]float64{"k": 2},
		},
		"overfit": {
			Simulator: "kmeans",
			Params:    map[string]float64{"k": 6, "points": 120},
		},
		"overlapping": {
			Simulator: "kmeans",
			Params:    map[string]float64{"spread": 2},
		},
	},
	"decision_tree": {
		"stump": {
			Simulator: "decision_tree",
			Params:    map[string]float64{"max_depth": 1},
		},
		"overgrown": {
			Simulator: "decision_tree",
			Params:    map[string]float64{"max_depth": 8, "min_leaf": 1},
		},
	},
	"svm": {
		"hard_margin": {
			Simulator: "svm",
			Params:    map[string]float64{"lambda": 0.0001},
		},
		"soft_margin": {
			Simulator: "svm",
			Params:    map[string]float64{"lambda": 0.5, "spread": 1.2},
		},
	},
	"neural_net": {
		"narrow": {
			Simulator: "neural_net",
			Params:    map[string]float64{"hidden": 2},
		},
		"slow": {
			Simulator: "neural_net",
			Params:    map[string]float64{"learning_rate": 0.05},
		},
	},
	"ensemble": {
		"large": {
			Simulator: "ensemble", MaxTicks: 100,
			Params: map[string]float64{"members": 100},
		},
		"subsampled": {
			Simulator: "ensemble",
			Params:    map[string]float64{"sample_ratio": 0.3},
		},
	},
	"naive_bayes": {
		"two_class": {
			Simulator: "naive_bayes",
			Params:    map[string]float64{"classes": 2},
		},
		"crowded": {
			Simulator: "naive_bayes",
			Params:    map[string]float64{"classes": 4, "spread": 1.8},
		},
	},
	"batch_norm": {
		"still": {
			Simulator: "batch_norm",
			Params:    map[string]float64{"drift": 0},
		},
		"tiny_batch": {
			Simulator: "batch_norm",
			Params:    map[string]float64{"batch_size": 2},
		},
	},
	"activation": {
		"tanh": {
			Simulator: "activation",
			Params:    map[string]float64{"function": 1},
		},
		"gelu": {
			Simulator: "activation",
			Params:    map[string]float64{"function": 4},
		},
	},
	"rnn": {
		"vanishing": {
			Simulator: "rnn",
			Params:    map[string]float64{"weight_scale": 0.3},
		},
		"saturating": {
			Simulator: "rnn",
			Params:    map[string]float64{"weight_scale": 2.5},
		},
	},
	"regression": {
		"underfit": {
			Simulator: "regression",
			Params:    map[string]float64{"degree": 1},
		},
		"overfit": {
			Simulator: "regression",
			Params:    map[string]float64{"degree": 9, "points": 12},
		},
		"singular": {
			Simulator: "regression",
			Params:    map[string]float64{"degree": 6, "points": 4},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(simulator, name string) *Config {
	presets, ok := Presets[simulator]
	if !ok {
		return nil
	}
	p, ok := presets[name]
	if !ok {
		return nil
	}
	cp := *p
	cp.Params = make(map[string]float64, len(p.Params))
	for k, v := range p.Params {
		cp.Params[k] = v
	}
	return &cp
}

// ListPresets returns the preset names for a simulator in sorted order.
func ListPresets(simulator string) []string {
	presets, ok := Presets[simulator]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
