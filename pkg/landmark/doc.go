// Package landmark keeps per-mesh landmark state for an editing session,
// reacts to landmark notifications and propagates regions of interest to
// other meshes.
//
// A Session owns one Entry per reference mesh. Each landmark placed on the
// reference is snapped to its nearest vertex; a positive radius grows a
// hop region around that vertex and stores it as a point array named
// <mesh>_ROI_<n>. Propagation pushes those arrays to target meshes, either
// by copying them when vertex indexing corresponds or by re-snapping and
// re-growing them on each target.
package landmark
