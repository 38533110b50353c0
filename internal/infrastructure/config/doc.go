// Package config loads node.yaml into a Config.
//
// Load starts from the board defaults (10 s publish period, three connect
// attempts 10 s apart, LED on pin 2, button on pin 18), overlays the YAML
// file, then the GRAYLOGIC_NODE_* environment variables, and finally runs
// Validate. Durations are written as Go duration strings ("10s", "168h").
//
// Keep the broker key out of the file; set GRAYLOGIC_NODE_MQTT_KEY instead.
//
//	cfg, err := config.Load(os.Getenv("GRAYLOGIC_NODE_CONFIG"))
//	if err != nil {
//	    return err
//	}
//	topics := mqtt.NewTopics(cfg.Node.Device)
package config
