// Package dynamo provides the numerical primitives shared by the simulation host
// and the integrators.
//
// The package defines the fundamental types for integrating first-order ODEs:
//
//   - [State]: flat vector of generalized coordinates followed by speeds
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Integrator]: fixed-step numerical integrator interface
//   - [AdaptiveIntegrator]: integrator with an embedded error estimate
//   - [Config]: step-size and accuracy settings used by the time stepper
//
// # Example
//
//	integ := integrators.NewRK3()
//	x1, err := integ.Step(sys, x0, t, dt)
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use. Give
// each simulation run its own integrator instance.
package dynamo
