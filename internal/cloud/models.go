package cloud

// LampRecord is a lamp as returned by the list endpoint
type LampRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	APIVersion   string `json:"api_version"`
	SerialNumber string `json:"serial_number"`
}

// StateResponse is the body of the lamp state endpoint
type StateResponse struct {
	On         bool `json:"on"`
	Brightness int  `json:"brightness"`
	Color      struct {
		TemperatureK int `json:"temperatureK"`
	} `json:"color"`
	Online bool `json:"online"`
}

// Power is the power value of a command
type Power string

const (
	PowerOn  Power = "ON"
	PowerOff Power = "OFF"
)

// Command is the body of the lamp command endpoint.
// Nil fields are omitted from the wire payload.
type Command struct {
	Power      *Power `json:"power,omitempty"`
	Brightness *int   `json:"brightness,omitempty"`
	Kelvin     *int   `json:"kelvin,omitempty"`
	Scene      *int   `json:"scene,omitempty"`
}

// Fields returns the command as a flat map, used for logging and auditing.
func (c Command) Fields() map[string]any {
	fields := make(map[string]any, 4)
	if c.Power != nil {
		fields["power"] = string(*c.Power)
	}
	if c.Brightness != nil {
		fields["brightness"] = *c.Brightness
	}
	if c.Kelvin != nil {
		fields["kelvin"] = *c.Kelvin
	}
	if c.Scene != nil {
		fields["scene"] = *c.Scene
	}
	return fields
}
