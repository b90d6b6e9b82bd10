// Package homie exposes the node as a Homie 3.0.1 device over MQTT.
//
// Topic layout, all below <base>/<device-id>/:
//
//	$homie $name $state $nodes $implementation $fw/name $fw/version
//	$stats $stats/interval $stats/uptime
//	<node>/$name <node>/$type <node>/$properties
//	<node>/<prop> <node>/<prop>/$name $datatype $unit $settable
//	<node>/<prop>/set (subscribed for settable properties)
package homie

import (
	"strings"
	"time"
)

const (
	Version        = "3.0.1"
	Implementation = "hvac-node"
)

// Device states.
const (
	StateInit         = "init"
	StateReady        = "ready"
	StateDisconnected = "disconnected"
	StateLost         = "lost"
)

// Property data types.
const (
	Float  = "float"
	String = "string"
)

type Property struct {
	ID       string
	Name     string
	DataType string
	Unit     string
	Format   string
	Settable bool
}

type Node struct {
	ID         string
	Name       string
	Type       string
	Properties []Property
}

func (n Node) propertyIDs() string {
	ids := make([]string, len(n.Properties))
	for i, p := range n.Properties {
		ids[i] = p.ID
	}
	return strings.Join(ids, ",")
}

// SetFunc receives a value written to a settable property. It runs on the
// MQTT client's goroutine and must not block.
type SetFunc func(property, value string)

type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	RetryInterval  time.Duration

	BaseTopic       string
	DeviceID        string
	Name            string
	FirmwareName    string
	FirmwareVersion string
	StatsInterval   time.Duration
}

func (c *Config) defaults() {
	if c.BaseTopic == "" {
		c.BaseTopic = "homie"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 5 * time.Second
	}
	if c.Name == "" {
		c.Name = c.DeviceID
	}
}

func validID(id string) bool {
	return id != "" && !strings.HasPrefix(id, "$") && !strings.ContainsAny(id, "/+#")
}
