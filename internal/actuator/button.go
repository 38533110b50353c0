package actuator

import (
	"github.com/nerrad567/gray-logic-node/internal/hardware"
)

// DigitalReader reads an input pin. Implemented by hardware.GPIO.
type DigitalReader interface {
	ReadDigital(pin int) (hardware.Level, error)
}

// ButtonEdge detects presses of an active-LOW push-button.
//
// A press is reported on the poll that first sees the button released
// after an earlier poll saw it held down. Holding the button reports
// nothing until it is let go. There is no debouncing beyond the polling
// cadence of the caller.
//
// The pin is sampled once per loop iteration, which by default lasts about
// as long as the message drain (10s). A press is only seen if the button is
// still held at one poll and released by a later one.
type ButtonEdge struct {
	gpio    DigitalReader
	pin     int
	pressed bool
}

// NewButtonEdge watches pin through gpio.
func NewButtonEdge(gpio DigitalReader, pin int) *ButtonEdge {
	return &ButtonEdge{gpio: gpio, pin: pin}
}

// Poll samples the pin once.
//
// Returns:
//   - bool: true on a press-release transition
//   - error: The read error; the edge state is left unchanged
func (b *ButtonEdge) Poll() (bool, error) {
	level, err := b.gpio.ReadDigital(b.pin)
	if err != nil {
		return false, err
	}

	down := level == hardware.Low
	released := b.pressed && !down
	b.pressed = down
	return released, nil
}
