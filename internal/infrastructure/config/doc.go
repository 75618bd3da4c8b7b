// Package config loads GridLink Core configuration.
//
// Load applies built-in defaults, then the YAML file, then GRIDLINK_*
// environment variables, and finally validates the result. Secrets such as
// the InfluxDB token and MQTT password are best supplied through the
// environment.
//
// Besides infrastructure settings the file carries the provisioning data
// the directory is seeded from: end devices (lFDI and sFDI from the
// certificate tooling), DER programs with their controls, curves and
// function set assignments.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
package config
