package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
)

const (
	ModeTracker = "tracker-service"
	ModeControl = "control"
	ModeToken   = "token"
)

var ErrNoMode = errors.New("no mode specified: use --mode=<mode>")

type modeInfo struct {
	name    string
	aliases []string
	summary string
}

var modes = []modeInfo{
	{ModeTracker, []string{"tracker", "t"}, "Background tracking task: lifecycle controller and command channel"},
	{ModeControl, []string{"ctl", "c"}, "Send startService / stopService to a running tracker"},
	{ModeToken, []string{"tok"}, "Mint a command-channel JWT (dev only)"},
}

// canonicalMode resolves a mode name or alias.
func canonicalMode(s string) (string, bool) {
	for _, m := range modes {
		if s == m.name || slices.Contains(m.aliases, s) {
			return m.name, true
		}
	}
	return "", false
}

// ParseMode picks the mode from --mode=<value> or from the first bare mode
// name (e.g. `control --method=startService`) and returns the remaining args.
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var rest []string

	for _, arg := range args {
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}
		if mode == "" {
			if m, ok := canonicalMode(arg); ok {
				mode = m
				continue
			}
		}
		rest = append(rest, arg)
	}

	if mode == "" {
		return "", rest, ErrNoMode
	}
	canonical, ok := canonicalMode(mode)
	if !ok {
		return "", rest, fmt.Errorf("unknown mode %q", mode)
	}
	return canonical, rest, nil
}

// PrintUsage prints the global usage with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, "Usage:\n  ./geotrack --mode=<mode> [flags]\n\nModes:")
	for _, m := range modes {
		fmt.Fprintf(w, "  %-18s  %s (aliases: %s)\n", m.name, m.summary, strings.Join(m.aliases, ", "))
	}
	fmt.Fprintln(w, `
Examples:
  ./geotrack --mode=tracker-service --config=./config/config.yaml
  ./geotrack --mode=control --method=startService --transport=http
  ./geotrack --mode=control --method=stopService --transport=amqp
  ./geotrack --mode=token --client-id=control-1 --role=CONTROLLER --config=./config/config.yaml`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./geotrack --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
