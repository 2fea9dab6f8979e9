// Package playground contains the machine-learning simulators.
//
// Each simulator is an [engine.Model] over its own state type and also knows
// how to draw that state as a [render.Frame]:
//
//   - [GradientDescent]: an optimizer walking a 2D loss surface
//   - [KMeans]: alternating assign and update phases on blob data
//   - [DecisionTree]: greedy Gini splits, one leaf per tick
//   - [SVM]: linear soft-margin classifier trained with Pegasos
//   - [NeuralNet]: a tiny MLP learning XOR
//   - [Ensemble]: bagged decision stumps
//   - [NaiveBayes]: online Gaussian Naive Bayes
//   - [BatchNorm]: normalizing drifting activation batches
//   - [Activation]: sweeping common activation functions
//   - [RNN]: an Elman hidden-state tracer
//   - [Regression]: polynomial fit by gradient steps
//
// Simulators are bound to an [engine.Loop] with [Bind], which returns a
// [Session]: the type-erased handle the TUI, HTTP server and headless runs
// work with.
//
// Data sets are generated in Defaults from a data_seed parameter rather than
// the loop's rng, so Reset always restores the same points and only the
// stochastic parts of training replay from the loop seed.
package playground
