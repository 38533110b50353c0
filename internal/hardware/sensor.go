package hardware

import (
	"fmt"
	"math"
	"time"

	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/nerrad567/gray-logic-node/internal/telemetry"
)

// Sensor produces one climate reading per call.
type Sensor interface {
	Sample() telemetry.Reading
}

// climateReader is the part of the gobot SHT2x driver the sensor uses.
type climateReader interface {
	Temperature() (float32, error)
	Humidity() (float32, error)
}

// SHT2xSensor reads an SHT2x temperature and humidity sensor over I2C on
// a Raspberry Pi, using the gobot driver.
//
// Sample never fails. A read error is logged and the affected value is
// returned as NaN, which the publisher sends as-is.
type SHT2xSensor struct {
	adaptor *raspi.Adaptor
	driver  *i2c.SHT2xDriver
	reader  climateReader
	now     func() time.Time
	logger  Logger
}

// OpenSHT2x connects the Raspberry Pi adaptor and starts the SHT2x driver.
//
// Parameters:
//   - bus: I2C bus number the sensor is attached to
//
// Returns:
//   - *SHT2xSensor: Ready to sample
//   - error: If the adaptor or driver fails to start
func OpenSHT2x(bus int) (*SHT2xSensor, error) {
	adaptor := raspi.NewAdaptor()
	if err := adaptor.Connect(); err != nil {
		return nil, fmt.Errorf("connecting raspi adaptor: %w", err)
	}

	driver := i2c.NewSHT2xDriver(adaptor, i2c.WithBus(bus))
	if err := driver.Start(); err != nil {
		adaptor.Finalize()
		return nil, fmt.Errorf("starting SHT2x driver on bus %d: %w", bus, err)
	}

	return &SHT2xSensor{
		adaptor: adaptor,
		driver:  driver,
		reader:  driver,
		now:     time.Now,
	}, nil
}

// SetLogger sets the logger for read failures.
func (s *SHT2xSensor) SetLogger(logger Logger) {
	s.logger = logger
}

// Sample reads temperature then humidity.
func (s *SHT2xSensor) Sample() telemetry.Reading {
	reading := telemetry.Reading{
		Temperature: math.NaN(),
		Humidity:    math.NaN(),
		SampledAt:   s.now(),
	}

	if t, err := s.reader.Temperature(); err != nil {
		s.warn("temperature read failed", err)
	} else {
		reading.Temperature = float64(t)
	}

	if h, err := s.reader.Humidity(); err != nil {
		s.warn("humidity read failed", err)
	} else {
		reading.Humidity = float64(h)
	}

	return reading
}

// Close halts the driver and releases the adaptor.
func (s *SHT2xSensor) Close() error {
	var firstErr error
	if s.driver != nil {
		firstErr = s.driver.Halt()
	}
	if s.adaptor != nil {
		if err := s.adaptor.Finalize(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *SHT2xSensor) warn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, "error", err)
	}
}
