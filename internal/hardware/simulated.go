package hardware

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/telemetry"
)

// SimulatedGPIO is an in-memory board used when hardware.enabled is false.
//
// Input pins read HIGH (released, as with a pull-up) until Press is called.
type SimulatedGPIO struct {
	mu     sync.Mutex
	levels map[int]Level
	writes int
	closed bool
}

// NewSimulatedGPIO creates a board with an output pin starting LOW and an
// input pin starting HIGH.
func NewSimulatedGPIO(ledPin, buttonPin int) *SimulatedGPIO {
	return &SimulatedGPIO{
		levels: map[int]Level{
			ledPin:    Low,
			buttonPin: High,
		},
	}
}

// ReadDigital returns the stored level of pin.
func (s *SimulatedGPIO) ReadDigital(pin int) (Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Low, ErrClosed
	}
	level, ok := s.levels[pin]
	if !ok {
		return Low, fmt.Errorf("%w: %d", ErrUnknownPin, pin)
	}
	return level, nil
}

// WriteDigital stores level for pin.
func (s *SimulatedGPIO) WriteDigital(pin int, level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, ok := s.levels[pin]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPin, pin)
	}
	s.levels[pin] = level
	s.writes++
	return nil
}

// Press holds an input pin LOW.
func (s *SimulatedGPIO) Press(pin int) {
	s.set(pin, Low)
}

// Release returns an input pin to HIGH.
func (s *SimulatedGPIO) Release(pin int) {
	s.set(pin, High)
}

// Writes returns the number of successful WriteDigital calls.
func (s *SimulatedGPIO) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Close marks the board closed.
func (s *SimulatedGPIO) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *SimulatedGPIO) set(pin int, level Level) {
	s.mu.Lock()
	s.levels[pin] = level
	s.mu.Unlock()
}

// SimulatedSensor returns a fixed reading, stamped at sample time.
type SimulatedSensor struct {
	mu          sync.Mutex
	temperature float64
	humidity    float64
}

// NewSimulatedSensor creates a sensor that reports the given values.
func NewSimulatedSensor(temperature, humidity float64) *SimulatedSensor {
	return &SimulatedSensor{temperature: temperature, humidity: humidity}
}

// Set changes the values returned by later samples.
func (s *SimulatedSensor) Set(temperature, humidity float64) {
	s.mu.Lock()
	s.temperature = temperature
	s.humidity = humidity
	s.mu.Unlock()
}

// Sample returns the configured values.
func (s *SimulatedSensor) Sample() telemetry.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return telemetry.Reading{
		Temperature: s.temperature,
		Humidity:    s.humidity,
		SampledAt:   time.Now(),
	}
}
