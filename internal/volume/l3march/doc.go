// Package l3march owns Layer 3 (Marching) of the volume rendering model.
//
// Responsibilities: turning rays into sample batches by walking the
// occupancy bitfield, in batch mode for training and in iterative
// alive-set mode for inference, plus inverse-CDF resampling along rays.
// Key types: Config, Sample, SampleBatch, Iterative, StepBatch.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
package l3march
