// Package domain contains entity without logic, just meta-data
package domain

// ConnectionID is the opaque identity assigned to a transport connection.
// The app layer only ever holds this id plus meta, never the socket itself.
type ConnectionID string

type Role int

const (
	RoleNone Role = iota
	RoleSpeaker
	RoleListener
	RoleBroadcaster
	RoleWatcher
)

func (r Role) String() string {
	switch r {
	case RoleSpeaker:
		return "speaker"
	case RoleListener:
		return "listener"
	case RoleBroadcaster:
		return "broadcaster"
	case RoleWatcher:
		return "watcher"
	}
	return "none"
}
