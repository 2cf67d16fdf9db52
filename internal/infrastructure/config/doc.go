// Package config provides configuration loading for FleetSim Core.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// FLEETSIM_* environment variables, each layer overriding the last. The
// result is validated before use.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    // missing store DSN, bad YAML, etc.
//	}
//
// # Required settings
//
// Only the reference store DSN is strictly required (store.dsn, usually set
// via FLEETSIM_STORE_DSN). Everything else has a working default. The MQTT
// broker host may be left empty: the daemon starts and the publisher retries
// deliveries until the broker is reachable.
package config
