// Package render turns simulator state into pictures.
//
// Simulators describe what to draw as a [Frame]: an ordered list of
// retained-mode shapes in pixel coordinates. A frame can then be
//
//   - serialized as SVG with [SVG] (browser / file output), or
//   - rasterized onto a Braille [Canvas] with [Rasterize] (terminal output),
//     and recorded into an animated GIF with [Recorder].
//
// Frames whose shapes carry NaN or Inf coordinates, or that were built from
// a degenerate step, are swapped for a [Placeholder] frame before drawing so
// a broken step never produces a broken picture.
package render
