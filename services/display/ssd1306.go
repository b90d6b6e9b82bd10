package display

import (
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
)

// SSD1306 opens an SSD1306 OLED on bus at the driver's fixed address.
func SSD1306(bus i2c.Bus, width, height int) Opener {
	return func() (Panel, error) {
		opts := ssd1306.DefaultOpts
		opts.W, opts.H = width, height
		dev, err := ssd1306.NewI2C(bus, &opts)
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
}
