package hal

// Device is the contract every capture backend implements.
//
// All methods may fail with an ErrIO error when talking to the hardware
// fails. A Device owns its backend resource exclusively; Close releases it
// and exhausts every stream the device started.
type Device interface {
	// QueryStreams enumerates every mode the device currently offers. It
	// has no side effects and may be called before any stream is started.
	QueryStreams() ([]StreamDescriptor, error)

	// QueryControls enumerates the adjustable parameters in a stable,
	// backend-defined order.
	QueryControls() ([]Control, error)

	// Control reads the current value of id.
	Control(id uint32) (Value, error)

	// SetControl writes v to id. The change takes effect immediately.
	SetControl(id uint32, v Value) error

	// PreferredStream folds QueryStreams through prefer and returns the
	// winner. It fails with ErrNoStreams when nothing is enumerable.
	PreferredStream(prefer func(a, b StreamDescriptor) StreamDescriptor) (StreamDescriptor, error)

	// StartStream begins capturing in the given mode. Backends that cannot
	// run two streams at once fail with ErrBusy instead of stopping the
	// first.
	StartStream(desc StreamDescriptor) (*ImageStream, error)

	// Close releases the backend resource.
	Close() error
}
