// Package l1geom owns Layer 1 (Geometry) of the volume rendering model.
//
// Responsibilities: ray and bounding-box intersection, Morton voxel
// indexing, background-sphere mapping, and camera/intrinsics handling
// for occupancy marking.
// Key types: Vec3, Color, Ray, AABB, Camera, Intrinsics.
//
// Dependency rule: L1 depends on nothing above it. Packages in L2-L4
// import it freely.
package l1geom
