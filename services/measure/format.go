package measure

import "hvac-node/x/strconvx"

// FormatValue renders a reading in plain decimal notation; consumers parse it
// as fixed-point, so exponent forms must never appear.
func FormatValue(v float64) string { return strconvx.FormatFixed(v, Precision) }

func TemperatureText(value string) string { return "Temp: " + value }
func HumidityText(value string) string    { return "Humi: " + value }
