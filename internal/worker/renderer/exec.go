package renderer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"posterforge/internal/pkg/errors"
	"posterforge/internal/poster"
)

// stderrTail caps how much renderer stderr is carried into the job error.
const stderrTail = 2000

// ExecRenderer shells out to the poster generation script. The command is
// an argv prefix ("uv run ./create_map_poster.py" or similar); spec flags
// and the output path are appended per render. Cancelling the context kills
// the process, which is how render timeouts are enforced.
type ExecRenderer struct {
	command []string
	workdir string
}

// NewExecRenderer parses the command line prefix for the renderer script.
func NewExecRenderer(command, workdir string) (*ExecRenderer, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("renderer command is empty")
	}
	return &ExecRenderer{command: argv, workdir: workdir}, nil
}

func (r *ExecRenderer) Render(ctx context.Context, spec poster.Spec, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return errors.Wrap(err, "renderer.exec", "failed to create output directory")
	}

	args := append([]string{}, r.command[1:]...)
	args = append(args,
		"--city", spec.City,
		"--country", spec.Country,
		"--theme", spec.Theme,
		"--width", formatFloat(spec.Width),
		"--height", formatFloat(spec.Height),
		"--distance", strconv.Itoa(spec.Distance),
		"--output", destPath,
	)
	if spec.DisplayCity != "" {
		args = append(args, "--display-city", spec.DisplayCity)
	}
	if spec.DisplayCountry != "" {
		args = append(args, "--display-country", spec.DisplayCountry)
	}
	if spec.FontFamily != "" {
		args = append(args, "--font-family", spec.FontFamily)
	}

	cmd := exec.CommandContext(ctx, r.command[0], args...)
	cmd.Dir = r.workdir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Surface the deadline as-is so callers can classify timeouts.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.RenderFailed(renderReason(err, stderr.Bytes()))
	}

	st, err := os.Stat(destPath)
	if err != nil {
		return errors.RenderFailed("renderer exited cleanly but produced no output file")
	}
	if st.Size() == 0 {
		return errors.RenderFailed("renderer produced an empty output file")
	}

	return nil
}

func renderReason(err error, stderr []byte) string {
	reason := err.Error()
	if tail := strings.TrimSpace(string(stderr)); tail != "" {
		if len(tail) > stderrTail {
			tail = tail[len(tail)-stderrTail:]
		}
		reason = reason + ": " + tail
	}
	return reason
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
