// Package hardware provides the node's physical inputs and outputs.
//
// This package manages:
//   - GPIO lines for the LED and push-button (go-gpiocdev)
//   - The SHT2x climate sensor over I2C (gobot raspi adaptor)
//   - Waiting for the OS to bring the network up
//   - An in-memory board for running off-target
//
// # Wiring
//
//	hardware:
//	  enabled: true
//	  gpio_chip: "gpiochip0"
//	  led_pin: 2        # output, starts LOW
//	  button_pin: 18    # input, pull-up, pressed = LOW
//	  i2c_bus: 1
package hardware
