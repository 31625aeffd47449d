// Package filterwheel contains an abstract interface for an emission filter wheel.
package filterwheel

// Wheel describes a motorized filter wheel.
type Wheel interface {
	// Select rotates the wheel to the given filter position and blocks until
	// the wheel settles.
	Select(position int) error

	// Current gets the current filter position.
	Current() (int, error)
}
