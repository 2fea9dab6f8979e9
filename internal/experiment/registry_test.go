package experiment_test

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/experiment"
	"github.com/san-kum/mlplay/internal/playground"
	"github.com/san-kum/mlplay/internal/render"
)

func allOverlays(info playground.Info) render.Options {
	opts := render.DefaultOptions()
	for _, o := range info.Overlays {
		opts.Overlays[o] = true
	}
	return opts
}

func finiteValues(values map[string]float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

var _ = Describe("Registry", func() {
	var reg *experiment.Registry

	BeforeEach(func() {
		reg = experiment.NewRegistry()
	})

	It("lists every simulator in registration order", func() {
		Expect(reg.Names()).To(Equal([]string{
			"gradient_descent", "kmeans", "decision_tree", "svm", "neural_net", "ensemble",
			"naive_bayes", "batch_norm", "activation", "rnn", "regression",
		}))
		for _, info := range reg.List() {
			Expect(info.Metric).NotTo(BeEmpty(), info.Name)
			Expect(info.Config.MaxTicks).To(BeNumerically(">", 0), info.Name)
			Expect(info.Config.Interval).To(BeNumerically(">", 0), info.Name)
		}
	})

	It("rejects unknown simulators", func() {
		_, err := reg.Info("perceptron")
		Expect(errors.Is(err, experiment.ErrUnknownSimulator)).To(BeTrue())

		_, err = reg.New("perceptron", nil, engine.Config{})
		Expect(errors.Is(err, experiment.ErrUnknownSimulator)).To(BeTrue())
	})

	It("falls back to the simulator's config for a zero config", func() {
		s, err := reg.New("kmeans", nil, engine.Config{})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Config()).To(Equal(s.Info().Config))
	})

	It("rejects unknown params", func() {
		_, err := reg.New("kmeans", map[string]float64{"gamma": 1}, engine.Config{})
		Expect(errors.Is(err, engine.ErrUnknownParam)).To(BeTrue())
	})

	It("draws finite frames for every simulator with every overlay on", func() {
		for _, info := range reg.List() {
			exp, err := experiment.New(reg, experiment.Config{Simulator: info.Name, Seed: 3, MaxTicks: 25})
			Expect(err).NotTo(HaveOccurred(), info.Name)

			opts := allOverlays(info)
			Expect(render.SVG(exp.Session().Frame(opts))).NotTo(ContainSubstring("NaN"), info.Name)

			result, err := exp.Run(context.Background())
			Expect(err).NotTo(HaveOccurred(), info.Name)
			Expect(result.Ticks).To(BeNumerically(">", 0), info.Name)
			Expect(result.Ticks).To(BeNumerically("<=", 25), info.Name)
			if result.Degenerate {
				Expect(result.Reason).NotTo(BeEmpty(), info.Name)
				continue
			}
			Expect(finiteValues(result.Final)).To(BeTrue(), info.Name)
			Expect(result.Final).To(HaveKey(info.Metric), info.Name)
			Expect(result.Metrics).To(HaveKey("final_"+info.Metric), info.Name)

			svg := render.SVG(exp.Session().Frame(opts))
			Expect(svg).To(HavePrefix("<svg"), info.Name)
			Expect(svg).NotTo(ContainSubstring("NaN"), info.Name)
		}
	})
})

var _ = Describe("Experiment", func() {
	reg := experiment.NewRegistry()

	It("replays the same trajectory for the same seed", func() {
		run := func(seed int64) *experiment.Result {
			exp, err := experiment.New(reg, experiment.Config{Simulator: "kmeans", Seed: seed, MaxTicks: 10})
			Expect(err).NotTo(HaveOccurred())
			result, err := exp.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			return result
		}
		a, b := run(11), run(11)
		Expect(a.Ticks).To(Equal(b.Ticks))
		Expect(a.Final).To(Equal(b.Final))
		Expect(a.Records).To(HaveLen(len(b.Records)))
		for i := range a.Records {
			Expect(a.Records[i].Values).To(Equal(b.Records[i].Values))
		}
	})

	It("records the params the run used", func() {
		exp, err := experiment.New(reg, experiment.Config{
			Simulator: "gradient_descent",
			Params:    map[string]float64{"learning_rate": 0.2},
			Seed:      1,
			MaxTicks:  5,
		})
		Expect(err).NotTo(HaveOccurred())
		result, err := exp.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Simulator).To(Equal("gradient_descent"))
		Expect(result.Params).To(HaveKeyWithValue("learning_rate", 0.2))
		Expect(result.Ticks).To(Equal(5))
	})

	It("stops early when cancelled", func() {
		exp, err := experiment.New(reg, experiment.Config{Simulator: "rnn", Seed: 1})
		Expect(err).NotTo(HaveOccurred())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = exp.Run(ctx)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})

	Describe("EngineConfig", func() {
		info, _ := reg.Info("svm")

		It("keeps the simulator's defaults for zero overrides", func() {
			ec := experiment.EngineConfig(info, experiment.Config{Seed: 9})
			Expect(ec.Interval).To(Equal(info.Config.Interval))
			Expect(ec.MaxTicks).To(Equal(info.Config.MaxTicks))
			Expect(ec.Seed).To(Equal(int64(9)))
		})

		It("applies explicit overrides", func() {
			ec := experiment.EngineConfig(info, experiment.Config{MaxTicks: 7, Interval: time.Second})
			Expect(ec.MaxTicks).To(Equal(7))
			Expect(ec.Interval).To(Equal(time.Second))
		})
	})
})
