package mqtt

import (
	"fmt"
	"strings"
)

// Feed keys used by the climate node. They are the Adafruit IO feed keys
// the site dashboard was built on, so they stay in Portuguese.
const (
	FeedTemperature = "temperatura"
	FeedHumidity    = "umidade"
	FeedActuator    = "botao-on-slash-off"
	FeedStatus      = "status"
)

// Topics provides builders for the node's feed topics.
// All topics follow the scheme <device>/feeds/<feed>.
//
//	topics := mqtt.NewTopics("greenhouse")
//	topics.Temperature() // "greenhouse/feeds/temperatura"
type Topics struct {
	Device string
}

// NewTopics returns the topic builder for a device.
func NewTopics(device string) Topics {
	return Topics{Device: device}
}

// Feed returns the topic for an arbitrary feed key.
func (t Topics) Feed(key string) string {
	return fmt.Sprintf("%s/feeds/%s", t.Device, key)
}

// Temperature returns the published temperature feed.
func (t Topics) Temperature() string {
	return t.Feed(FeedTemperature)
}

// Humidity returns the published humidity feed.
func (t Topics) Humidity() string {
	return t.Feed(FeedHumidity)
}

// Actuator returns the subscribed LED command feed.
func (t Topics) Actuator() string {
	return t.Feed(FeedActuator)
}

// Status returns the retained online/offline feed.
func (t Topics) Status() string {
	return t.Feed(FeedStatus)
}

// validatePublishTopic rejects topics a client may not publish to.
func validatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}
