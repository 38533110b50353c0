package actuator

// Level is the requested state of the LED output.
type Level int

const (
	Off Level = iota
	On
)

// String returns "ON" or "OFF".
func (l Level) String() string {
	if l == On {
		return "ON"
	}
	return "OFF"
}

// Source records where a command came from.
type Source int

const (
	// SourceLocal is the push-button on the board.
	SourceLocal Source = iota

	// SourceRemote is the subscribed broker feed.
	SourceRemote
)

// String returns "local" or "remote".
func (s Source) String() string {
	if s == SourceRemote {
		return "remote"
	}
	return "local"
}

// Command is a requested output level and its provenance.
type Command struct {
	Level  Level
	Source Source
}

// ParseRemote converts a feed payload into a command.
//
// Only the exact bytes "ON" turn the output on. Anything else, including
// "on", " ON" and "1", turns it off. No trimming or case folding is done.
func ParseRemote(payload []byte) Command {
	if string(payload) == "ON" {
		return Command{Level: On, Source: SourceRemote}
	}
	return Command{Level: Off, Source: SourceRemote}
}
