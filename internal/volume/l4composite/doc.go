// Package l4composite owns Layer 4 (Compositing) of the volume rendering
// model.
//
// Responsibilities: front-to-back alpha compositing of per-sample
// density and color into per-ray color, opacity and depth, in one pass
// over a training batch or incrementally across iterative march steps,
// plus background blending and depth normalisation.
// Key types: Compositor, Result, Accumulator, Output.
//
// Dependency rule: L4 may depend on L1-L3, but never on the pipeline.
package l4composite
