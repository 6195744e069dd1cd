package types

// DisplayConfig represents the configuration for the display
type DisplayConfig struct {
	Width       int    `json:"width" env:"LEDPANEL_WIDTH,overwrite"`
	Height      int    `json:"height" env:"LEDPANEL_HEIGHT,overwrite"`
	Brightness  int    `json:"brightness" env:"LEDPANEL_BRIGHTNESS,overwrite"`
	Driver      string `json:"driver" env:"LEDPANEL_DRIVER,overwrite"`
	IdleTimeout string `json:"idle_timeout" env:"LEDPANEL_IDLE_TIMEOUT,overwrite"`
	LogLevel    string `json:"log_level" env:"LEDPANEL_LOG_LEVEL,overwrite"`
}

// ScreensaverConfig represents the configuration for the Game of Life screensaver
type ScreensaverConfig struct {
	TickMS  int     `json:"tick_ms" env:"LEDPANEL_TICK_MS,overwrite"`
	Density float64 `json:"density" env:"LEDPANEL_DENSITY,overwrite"`
}

// ServerConfig represents the configuration for the upload server
type ServerConfig struct {
	Addr           string `json:"addr" env:"LEDPANEL_ADDR,overwrite"`
	MaxUploadBytes int64  `json:"max_upload_bytes" env:"LEDPANEL_MAX_UPLOAD_BYTES,overwrite"`
}

// PanelConfig represents the HUB75 wiring of the panel
type PanelConfig struct {
	Chip   string `json:"chip" env:"LEDPANEL_GPIO_CHIP,overwrite"`
	Planes int    `json:"planes" env:"LEDPANEL_PLANES,overwrite"`
	R1Pin  int    `json:"r1"`
	G1Pin  int    `json:"g1"`
	B1Pin  int    `json:"b1"`
	R2Pin  int    `json:"r2"`
	G2Pin  int    `json:"g2"`
	B2Pin  int    `json:"b2"`
	CLKPin int    `json:"clk"`
	OEPin  int    `json:"oe"`
	LAPin  int    `json:"lat"`
	APin   int    `json:"a"`
	BPin   int    `json:"b"`
	CPin   int    `json:"c"`
	DPin   int    `json:"d"`
	EPin   int    `json:"e"`
}

// MQTTConfig represents the configuration for mode change publishing
type MQTTConfig struct {
	Broker   string `json:"broker" env:"LEDPANEL_MQTT_BROKER,overwrite"`
	ClientID string `json:"client_id" env:"LEDPANEL_MQTT_CLIENT_ID,overwrite"`
	Topic    string `json:"topic" env:"LEDPANEL_MQTT_TOPIC,overwrite"`
}
