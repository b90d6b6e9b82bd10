package types

// Node and property identifiers advertised to the broker.
const (
	NodeHVAC        = "HVAC"
	NodeTemperature = "temperature"
	NodeHumidity    = "humidity"

	PropMode     = "mode"
	PropDegrees  = "degrees"
	PropRelative = "relative"
)

// Firmware identity shown on the display and advertised as $fw/*.
const (
	FirmwareName    = "D1Mini-HVAC"
	FirmwareVersion = "0.17.2.4"
)
