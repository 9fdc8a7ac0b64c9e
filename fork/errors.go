package fork

import "errors"

var (
	// ErrInvalidConsume indicates the fork handshake itself is malformed: an
	// invalid or already-consumed selector, or a payload that fails to
	// decrypt. It never implies any local storage mutation.
	ErrInvalidConsume = errors.New("invalid fork consume")

	// ErrInvalidProduce indicates production-side validation failed, e.g. an
	// unsupported payload type was requested.
	ErrInvalidProduce = errors.New("invalid fork produce")

	// ErrExtensionTimeout indicates the extension channel did not answer
	// within the configured timeout.
	ErrExtensionTimeout = errors.New("extension fork timed out")
)
