// Package field defines the contract between the renderer and the
// learned radiance fields it queries.
//
// The renderer never trains or owns a field. It hands batches of sample
// positions to an Evaluator and receives densities, colors and, for the
// dynamic field, scene flow and blending weights. Analytic fields in
// this package are used by the demo binary and by tests.
package field
