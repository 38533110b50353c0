// Package telemetry turns sensor samples into feed publications.
//
// Temperature is sent with one decimal place and humidity with none, as
// plain text on <device>/feeds/temperatura and <device>/feeds/umidade.
package telemetry
