// Package home holds the simulated smart-home state and the operations
// that may mutate it.
package home

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"home-dispatch/internal/domain"
)

// DefaultRooms are the rooms known at startup, all with lights off.
var DefaultRooms = []string{"living room", "kitchen", "bedroom"}

// DefaultThermostatC is the thermostat setpoint at startup.
const DefaultThermostatC = 20.0

// Ops is the set of operations the catalog can drive. Both *Store and the
// view handed out by Store.Batch implement it.
type Ops interface {
	SetLight(room string, turnOn bool) string
	SetTemperature(celsius float64) (string, error)
	LockDoors(lock bool) string
	PlayMusic(genre string) (string, error)
	StopMusic() string
	Status() string
}

type state struct {
	rooms       []string
	lights      map[string]bool
	thermostatC float64
	doorsLocked bool
	music       string
}

// Store owns the device state. All access is serialized by one mutex.
type Store struct {
	mu sync.Mutex
	st state
}

// NewStore returns a store with the default rooms, the thermostat at
// DefaultThermostatC and the doors locked.
func NewStore() *Store {
	s := &Store{
		st: state{
			lights:      make(map[string]bool, len(DefaultRooms)),
			thermostatC: DefaultThermostatC,
			doorsLocked: true,
		},
	}
	for _, room := range DefaultRooms {
		s.st.setLight(room, false)
	}
	return s
}

// NormalizeRoom is the single canonical form for room keys.
func NormalizeRoom(room string) string {
	return strings.ToLower(strings.TrimSpace(room))
}

func (s *Store) SetLight(room string, turnOn bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.setLight(room, turnOn)
}

func (s *Store) SetTemperature(celsius float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.setTemperature(celsius)
}

func (s *Store) LockDoors(lock bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.lockDoors(lock)
}

func (s *Store) PlayMusic(genre string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.playMusic(genre)
}

func (s *Store) StopMusic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.stopMusic()
}

func (s *Store) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.status()
}

// Snapshot returns a structured copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.snapshot()
}

// MusicPlaying reports the current genre, if any.
func (s *Store) MusicPlaying() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.music, s.st.music != ""
}

// Light reports the light state of a room and whether the room is known.
func (s *Store) Light(room string) (on bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	on, ok = s.st.lights[NormalizeRoom(room)]
	return on, ok
}

// Batch runs fn with exclusive access to the state. Operations called on
// ops inside fn must not call back into the Store.
//
// The returned snapshot is taken before the lock is released, so it is
// exactly the state fn left behind.
func (s *Store) Batch(fn func(ops Ops)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
	return s.st.snapshot()
}

func (st *state) SetLight(room string, turnOn bool) string      { return st.setLight(room, turnOn) }
func (st *state) SetTemperature(celsius float64) (string, error) { return st.setTemperature(celsius) }
func (st *state) LockDoors(lock bool) string                     { return st.lockDoors(lock) }
func (st *state) PlayMusic(genre string) (string, error)         { return st.playMusic(genre) }
func (st *state) StopMusic() string                              { return st.stopMusic() }
func (st *state) Status() string                                 { return st.status() }

func (st *state) setLight(room string, turnOn bool) string {
	key := NormalizeRoom(room)
	if _, ok := st.lights[key]; !ok {
		st.rooms = append(st.rooms, key)
	}
	st.lights[key] = turnOn
	return fmt.Sprintf("Light in '%s' is now %s.", key, onOff(turnOn))
}

func (st *state) setTemperature(celsius float64) (string, error) {
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		return "", fmt.Errorf("%w: temperature must be a finite number", domain.ErrInvalidArgument)
	}
	st.thermostatC = celsius
	return fmt.Sprintf("Thermostat set to %.1f°C.", st.thermostatC), nil
}

func (st *state) lockDoors(lock bool) string {
	st.doorsLocked = lock
	return fmt.Sprintf("Doors %s.", lockedText(lock))
}

func (st *state) playMusic(genre string) (string, error) {
	genre = strings.TrimSpace(genre)
	if genre == "" {
		return "", fmt.Errorf("%w: genre must not be empty", domain.ErrInvalidArgument)
	}
	st.music = genre
	return fmt.Sprintf("Playing %s music.", genre), nil
}

func (st *state) stopMusic() string {
	st.music = ""
	return "Music stopped."
}

func (st *state) status() string {
	return st.snapshot().String()
}

func (st *state) snapshot() Snapshot {
	lights := make([]LightState, 0, len(st.rooms))
	for _, room := range st.rooms {
		lights = append(lights, LightState{Room: room, On: st.lights[room]})
	}
	return Snapshot{
		Lights:      lights,
		ThermostatC: st.thermostatC,
		DoorsLocked: st.doorsLocked,
		Music:       st.music,
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func lockedText(locked bool) string {
	if locked {
		return "LOCKED"
	}
	return "UNLOCKED"
}
