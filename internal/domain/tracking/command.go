package tracking

import (
	"fmt"
	"strings"
)

// Command is one of the two lifecycle commands accepted from the foreground process.
type Command string

const (
	CommandStart Command = "startService"
	CommandStop  Command = "stopService"
)

// ParseCommand maps a method name onto a Command. Names are case-sensitive,
// surrounding whitespace is ignored.
func ParseCommand(name string) (Command, error) {
	switch cmd := Command(strings.TrimSpace(name)); cmd {
	case CommandStart, CommandStop:
		return cmd, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCommand, name)
	}
}

// String returns the method name of the Command.
func (cmd Command) String() string {
	return string(cmd)
}

// Ack is the success acknowledgement returned for a lifecycle command.
type Ack struct {
	Message   string `json:"message"`
	State     State  `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	Changed   bool   `json:"changed"`
	Warning   string `json:"warning,omitempty"`
}

const (
	AckStarted = "Service started"
	AckStopped = "Service stopped"
)
