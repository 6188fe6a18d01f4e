package multibody

import (
	"errors"
	"fmt"
)

var (
	ErrTopologySealed         = errors.New("multibody: topology already realized")
	ErrNotSerialChain         = errors.New("multibody: pins must extend the tip of the chain")
	ErrForeignMobilizer       = errors.New("multibody: mobilizer belongs to another system")
	ErrInvalidBody            = errors.New("multibody: invalid body mass properties")
	ErrConflictingConstraints = errors.New("multibody: more than one enabled constraint on a coordinate")
	ErrSingularMassMatrix     = errors.New("multibody: mass matrix is not positive definite")
	ErrForeignState           = errors.New("multibody: state was not created by this system")
	ErrDimensionMismatch      = errors.New("multibody: vector length does not match the number of coordinates")
)

// RealizeError reports the stage that could not be reached.
type RealizeError struct {
	Stage Stage
	Err   error
}

func (e *RealizeError) Error() string {
	return fmt.Sprintf("multibody: realize %s: %v", e.Stage, e.Err)
}

func (e *RealizeError) Unwrap() error {
	return e.Err
}
