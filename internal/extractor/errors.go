package extractor

// Error is returned when one of the required extraction steps fails.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType categorizes extraction failures.
type ErrorType int

const (
	// ErrTypeProbe indicates the media could not be probed for duration and size.
	// The file is treated as unreadable.
	ErrTypeProbe ErrorType = iota
	// ErrTypeThumbnail indicates no preview frame could be captured.
	ErrTypeThumbnail
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeProbe:
		return "probe"
	case ErrTypeThumbnail:
		return "thumbnail"
	default:
		return "unknown"
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
