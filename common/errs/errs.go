package errs

// ErrorKind identifies a kind of internal error.
// fully support for errors.Is and errors.As.
type ErrorKind string

const (
	// NotFound is returned when a requested item is not found.
	NotFound = ErrorKind("Not Found")

	// InvalidArgument is returned when an argument or configuration value is invalid.
	InvalidArgument = ErrorKind("Invalid Argument")

	// Unsupported is returned when a feature, driver or network is not supported.
	Unsupported = ErrorKind("Unsupported")

	// Conflict is returned when an operation conflicts with the current state, e.g. running twice.
	Conflict = ErrorKind("Conflict")

	// Closed is returned when operating on a closed resource.
	Closed = ErrorKind("Closed")

	Timeout            = ErrorKind("Timeout")
	InternalError      = ErrorKind("Internal Error")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}
