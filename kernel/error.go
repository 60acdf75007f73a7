// Package kernel provides the error type shared by all kernel subsystems.
package kernel

// Error describes a kernel error. Errors are declared as package-level
// pointers to Error values and compared by identity; this avoids calling
// errors.New, which would allocate before the Go allocator is usable.
type Error struct {
	// Module is the name of the subsystem where the error occurred.
	Module string

	// Message describes the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
