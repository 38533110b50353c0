package hardware

// Level is a digital pin level.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

// String returns "LOW" or "HIGH".
func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// DigitalIO reads and drives the node's GPIO pins.
type DigitalIO interface {
	ReadDigital(pin int) (Level, error)
	WriteDigital(pin int, level Level) error
	Close() error
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}
