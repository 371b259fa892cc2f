// Package lamp models a single Luvo lamp: its identity, its cached state and
// the commands that change it.
//
// State is only ever written by a refresh. Commands never update it
// optimistically; each one is followed by a state fetch and the cache takes
// whatever the cloud reports.
package lamp

import (
	"fmt"

	"github.com/dokzlo13/luvo/internal/cloud"
)

// Identity is the immutable identity of a lamp, copied from its discovery record
type Identity struct {
	ID           string
	Name         string
	SerialNumber string
	APIVersion   string
}

// IdentityFromRecord builds an Identity from a discovery record, verbatim
func IdentityFromRecord(rec cloud.LampRecord) Identity {
	return Identity{
		ID:           rec.ID,
		Name:         rec.Name,
		SerialNumber: rec.SerialNumber,
		APIVersion:   rec.APIVersion,
	}
}

// State is the last confirmed runtime state of a lamp.
// The zero value means "unknown": never refreshed.
type State struct {
	Power           bool
	Brightness      int
	ColorTempKelvin int
	Online          bool
}

// StateFromResponse converts a state endpoint body
func StateFromResponse(resp *cloud.StateResponse) State {
	return State{
		Power:           resp.On,
		Brightness:      resp.Brightness,
		ColorTempKelvin: resp.Color.TemperatureK,
		Online:          resp.Online,
	}
}

func (s State) String() string {
	power := "off"
	if s.Power {
		power = "on"
	}
	return fmt.Sprintf("power=%s brightness=%d%% kelvin=%dK online=%t",
		power, s.Brightness, s.ColorTempKelvin, s.Online)
}
