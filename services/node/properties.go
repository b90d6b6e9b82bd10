package node

import (
	"hvac-node/services/homie"
	"hvac-node/types"
)

// Nodes are the Homie nodes the device advertises. Only mode is settable.
func Nodes() []homie.Node {
	return []homie.Node{
		{ID: types.NodeHVAC, Name: "HVAC", Type: "HVAC", Properties: []homie.Property{
			{ID: types.PropMode, Name: "Mode", DataType: homie.String, Settable: true},
		}},
		{ID: types.NodeTemperature, Name: "Temperature", Type: "temperature", Properties: []homie.Property{
			{ID: types.PropDegrees, Name: "Degrees", DataType: homie.Float, Unit: "°C"},
		}},
		{ID: types.NodeHumidity, Name: "Humidity", Type: "humidity", Properties: []homie.Property{
			{ID: types.PropRelative, Name: "Relative", DataType: homie.Float, Unit: "%"},
		}},
	}
}
