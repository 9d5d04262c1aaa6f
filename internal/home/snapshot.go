package home

import (
	"fmt"
	"strings"
)

type LightState struct {
	Room string `json:"room"`
	On   bool   `json:"on"`
}

// Snapshot is a point-in-time copy of the device state. Lights keep the
// order in which rooms were first referenced.
type Snapshot struct {
	Lights      []LightState `json:"lights"`
	ThermostatC float64      `json:"thermostat_c"`
	DoorsLocked bool         `json:"doors_locked"`
	Music       string       `json:"music,omitempty"`
}

// String renders the multi-line status shown to users.
func (s Snapshot) String() string {
	parts := make([]string, 0, len(s.Lights))
	for _, l := range s.Lights {
		parts = append(parts, fmt.Sprintf("%s: %s", l.Room, onOff(l.On)))
	}

	music := s.Music
	if music == "" {
		music = "None"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Lights -> [%s]\n", strings.Join(parts, ", "))
	fmt.Fprintf(&sb, "Thermostat -> %.1f°C\n", s.ThermostatC)
	fmt.Fprintf(&sb, "Doors -> %s\n", lockedText(s.DoorsLocked))
	fmt.Fprintf(&sb, "Music -> %s", music)
	return sb.String()
}
