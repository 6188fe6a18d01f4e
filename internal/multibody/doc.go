// Package multibody is a small planar multibody host: a serial chain of pin
// joints hanging from a ground pivot in a vertical plane, with optional
// single-coordinate speed and acceleration constraints.
//
// Computation is organised in ordered [Stage]s. A [State] caches the results
// of each realized stage; mutating a variable invalidates every stage that
// depends on it, and [System.Realize] recomputes only what is stale:
//
//	Instance     constraint enable flags checked for conflicts
//	Position     body angles, pin and mass-center locations, mass matrix
//	Velocity     angular rates, mass-center velocities, velocity-product terms
//	Dynamics     applied mobility forces and body forces (gravity)
//	Acceleration constrained accelerations and constraint multipliers
//
// Applied forces are cached at Dynamics, so a caller may realize Dynamics,
// overwrite the cached forces with [State.UpdMobilityForces] and
// [State.UpdBodyForces], and then realize Acceleration against the modified
// forces. The locking handlers rely on this to compute impulsive responses.
//
// Sign convention for constraints: M*udot + G^T*lambda = f.
package multibody
