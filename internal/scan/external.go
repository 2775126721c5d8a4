package scan

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Default netsh invocations, tried in order for the network list.
var (
	DefaultListCommands = []string{
		"netsh wlan show networks mode=bssid",
		"netsh wlan show networks",
		"netsh wlan show all",
	}
	DefaultStatusCommand = "netsh wlan show interfaces"
)

// ExternalScanner runs one list command and one status command.
type ExternalScanner struct {
	list    []string
	status  []string
	decoder *Decoder
}

// NewExternalScanner returns a scanner that shells out to the given command
// lines. Command lines are split on whitespace.
func NewExternalScanner(listCommand, statusCommand string, decoder *Decoder) (*ExternalScanner, error) {
	list := strings.Fields(listCommand)
	status := strings.Fields(statusCommand)
	if len(list) == 0 || len(status) == 0 {
		return nil, fmt.Errorf("scanner commands must not be empty")
	}
	if decoder == nil {
		decoder = &Decoder{name: "auto"}
	}
	return &ExternalScanner{list: list, status: status, decoder: decoder}, nil
}

// ListNetworks runs the list command.
func (s *ExternalScanner) ListNetworks(ctx context.Context) (string, error) {
	return s.run(ctx, s.list)
}

// InterfaceStatus runs the status command.
func (s *ExternalScanner) InterfaceStatus(ctx context.Context) (string, error) {
	return s.run(ctx, s.status)
}

func (s *ExternalScanner) run(ctx context.Context, args []string) (string, error) {
	command := strings.Join(args, " ")
	if err := ctx.Err(); err != nil {
		return "", wrapExecError(ctx, command, err)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return "", wrapExecError(ctx, command, err)
	}
	text, err := s.decoder.Decode(out)
	if err != nil {
		return "", fmt.Errorf("%s: %w", command, err)
	}
	return text, nil
}
