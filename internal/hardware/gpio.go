package hardware

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// GPIO drives the LED and reads the push-button through the Linux GPIO
// character device.
//
// The LED line is requested as an output starting LOW. The button line is
// requested as an input with the pull-up bias enabled, so it reads HIGH
// while released and LOW while pressed.
type GPIO struct {
	mu     sync.Mutex
	chip   *gpiocdev.Chip
	lines  map[int]*gpiocdev.Line
	closed bool
}

// OpenGPIO requests the LED and button lines on chip.
//
// Parameters:
//   - chip: Character device name, e.g. "gpiochip0"
//   - ledPin: Line offset of the LED output
//   - buttonPin: Line offset of the button input
//
// Returns:
//   - *GPIO: Open lines ready for use
//   - error: If the chip or either line cannot be requested
func OpenGPIO(chip string, ledPin, buttonPin int) (*GPIO, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", chip, err)
	}

	led, err := c.RequestLine(ledPin, gpiocdev.AsOutput(int(Low)))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("requesting LED line %d: %w", ledPin, err)
	}

	button, err := c.RequestLine(buttonPin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		led.Close()
		c.Close()
		return nil, fmt.Errorf("requesting button line %d: %w", buttonPin, err)
	}

	return &GPIO{
		chip: c,
		lines: map[int]*gpiocdev.Line{
			ledPin:    led,
			buttonPin: button,
		},
	}, nil
}

// ReadDigital returns the current level of pin.
func (g *GPIO) ReadDigital(pin int) (Level, error) {
	line, err := g.line(pin)
	if err != nil {
		return Low, err
	}

	v, err := line.Value()
	if err != nil {
		return Low, fmt.Errorf("reading line %d: %w", pin, err)
	}
	if v != 0 {
		return High, nil
	}
	return Low, nil
}

// WriteDigital sets pin to level. The pin must be the output line.
func (g *GPIO) WriteDigital(pin int, level Level) error {
	line, err := g.line(pin)
	if err != nil {
		return err
	}

	if err := line.SetValue(int(level)); err != nil {
		return fmt.Errorf("writing line %d: %w", pin, err)
	}
	return nil
}

// Close releases every line and the chip. Calling it again is a no-op.
func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	for _, line := range g.lines {
		line.Close()
	}
	return g.chip.Close()
}

func (g *GPIO) line(pin int) (*gpiocdev.Line, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrClosed
	}
	line, ok := g.lines[pin]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPin, pin)
	}
	return line, nil
}
