// Package mqtt provides the broker client for FleetSim Core.
//
// This package wraps eclipse/paho.mqtt.golang as a publish-only client with
// lazy connection semantics: the client is constructed disconnected and the
// delivery pipeline (re)connects on demand before each attempt. A missing or
// unreachable broker therefore never prevents the daemon from starting; it
// only causes delivery attempts to fail until the broker is reachable.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	if err := client.Connect(); err != nil {
//	    // retried lazily by the publisher
//	}
//	err := client.Publish("fleetsim/telemetry/readings", payload, 1, false)
//
// # Status topic
//
// On connect the client publishes a retained online status to
// fleetsim/system/status, and registers an LWT so the broker announces an
// unexpected disconnect on the same topic. Close publishes a graceful
// offline status.
package mqtt
