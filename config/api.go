package config

// APIConfig controls the read-only HTTP surface the dashboard consumes.
type APIConfig struct {
	Addr string `json:"addr"`
	// MapServiceKey is forwarded to dashboard clients that render vehicle
	// positions on an external map service. Empty disables the map layer.
	MapServiceKey string `json:"map_service_key"`
}

func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
