package source

import "context"

// Source yields one raw measurement line ("<code>:<value>") for a sensor code.
type Source interface {
	ReadLine(ctx context.Context, code string) (string, error)
}

// CommandWriter sends an actuator command to the attached device.
type CommandWriter interface {
	WriteCommand(cmd string) error
}
