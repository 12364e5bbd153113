//go:build linux

package window

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// systemSource shells out to xdotool and wmctrl, which cover X11 and
// XWayland sessions.
type systemSource struct{}

func (systemSource) ActiveTitle(ctx context.Context) (string, bool, error) {
	out, err := run(ctx, "xdotool", "getactivewindow", "getwindowname")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// xdotool exits non-zero when no window has focus.
			return "", false, nil
		}
		return "", false, err
	}
	title := strings.TrimSpace(out)
	if title == "" {
		return "", false, nil
	}
	return title, true, nil
}

func (systemSource) VisibleTitles(ctx context.Context) ([]string, error) {
	out, err := run(ctx, "wmctrl", "-l")
	if err != nil {
		return nil, err
	}
	return parseWmctrl(out), nil
}

func run(ctx context.Context, name string, args ...string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", fmt.Errorf("%w: %s not found", ErrUnsupported, name)
	}
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return stdout.String(), nil
}

// parseWmctrl extracts titles from `wmctrl -l` lines:
// "0x03a00003  0 host Title words".
func parseWmctrl(out string) []string {
	var titles []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		// Skip to the 4th field in the original line to keep inner spacing.
		rest := line
		for i := 0; i < 3; i++ {
			rest = strings.TrimLeft(rest, " \t")
			rest = rest[len(fields[i]):]
		}
		titles = append(titles, rest)
	}
	return cleanTitles(titles)
}
