// Package mqtt provides the MQTT client for StageCue Core.
//
// Core publishes device commands on stagecue/command/{category}/{target},
// retained field state on stagecue/state/field/{id}, and subscribes to
// inbound events on stagecue/event/+. Connection status is advertised on
// stagecue/system/status with an LWT for crash detection.
//
// The client wraps eclipse/paho.mqtt.golang with automatic reconnection,
// subscription restoration, and panic-safe message handlers.
package mqtt
