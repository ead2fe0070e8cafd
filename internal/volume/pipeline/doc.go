// Package pipeline orchestrates dynamic/static volume renders.
//
// Responsibilities: splitting a training batch into static and dynamic
// halves, marching both against the occupancy slice for the query time,
// evaluating the static and dynamic fields, compositing each half, and
// running the backward/forward scene-flow warp passes that feed the
// temporal consistency losses. Inference marches only the dynamic field
// in iterative mode, optionally in staged chunks.
// Key types: Config, Renderer, TrainResult, WarpPass, InferResult.
//
// Dependency rule: pipeline may depend on L1-L4 and the field contract.
// No SQL/database code is allowed in this package.
package pipeline
