// Package stage contains an abstract interface for the sample stage.
package stage

// Position is an absolute stage position in microns.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Controller describes a set of methods on a three axis sample stage.
type Controller interface {
	// MoveTo moves the stage to an absolute position and blocks until the
	// move completes.
	MoveTo(Position) error

	// Pos gets the current position of the stage.
	Pos() (Position, error)

	// SetZSpeed sets the Z axis scan speed in microns per second.  The speed
	// governs continuous Z-stack sweeps; XY moves run at the controller's
	// default speed.
	SetZSpeed(umPerS float64) error

	// Home homes all axes.
	Home() error
}
