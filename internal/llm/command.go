package llm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/imkarma/crew/internal/config"
	"github.com/imkarma/crew/internal/errors"
)

// CommandClient spawns an external CLI (claude, gemini, ollama, etc.) and
// passes the prompt as the last argument.
type CommandClient struct {
	cfg config.Completion
}

// NewCommandClient creates a client that runs cfg.Command.
func NewCommandClient(cfg config.Completion) *CommandClient {
	return &CommandClient{cfg: cfg}
}

// Complete runs the command once per request.
//
// System and user prompts are joined into one argument, so with
// command="claude" and args=["--print"] the process becomes:
//
//	claude --print "<system>\n\n<user>"
//
// JSON requests get an explicit instruction appended since CLIs have no
// response format switch.
func (c *CommandClient) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	prompt := req.User
	if req.System != "" {
		prompt = req.System + "\n\n" + req.User
	}
	if req.JSON {
		prompt += "\n\nRespond with JSON only."
	}

	args := make([]string, len(c.cfg.Args), len(c.cfg.Args)+1)
	copy(args, c.cfg.Args)
	args = append(args, prompt)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.DefaultTimeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, c.commandError(ctx, err, stderr.String())
	}
	return &Response{
		Output:   stdout.String(),
		Duration: time.Since(start),
	}, nil
}

func (c *CommandClient) commandError(ctx context.Context, err error, stderr string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.Wrapf(errors.ErrTransport, "%s timed out after %s", c.cfg.Command, c.cfg.DefaultTimeout())
	}

	code := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	}
	if msg := strings.TrimSpace(stderr); msg != "" {
		return errors.Wrapf(errors.ErrTransport, "%s exited with code %d: %s", c.cfg.Command, code, msg)
	}
	return errors.Wrap(errors.ErrTransport, fmt.Sprintf("%s exited with code %d: %v", c.cfg.Command, code, err))
}

// CommandAvailable reports whether cmd exists in PATH.
func CommandAvailable(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
