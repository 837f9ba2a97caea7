package interp

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/logfields"
)

const (
	// EnvSocket carries the block server socket path into subprocesses.
	EnvSocket = "MDEXEC_SOCKET"
	// EnvBinary carries the mdexec executable path for shell helpers.
	EnvBinary = "MDEXEC_BIN"
	// EnvBlockID carries the id of the running block.
	EnvBlockID = "MDEXEC_BLOCK_ID"

	maxStderr = 64 << 10
)

// Subprocess runs block source with an external interpreter. The source is
// written to a temporary script file whose path is appended to Command.
type Subprocess struct {
	name    string
	Command []string
	Prelude Prelude
	// WaitDelay bounds how long to wait for output pipes after the process is killed.
	WaitDelay time.Duration
}

// NewSubprocess returns a subprocess interpreter for name running command.
func NewSubprocess(name string, command []string, prelude Prelude) *Subprocess {
	return &Subprocess{
		name:      name,
		Command:   command,
		Prelude:   prelude,
		WaitDelay: time.Second,
	}
}

func (s *Subprocess) Name() string { return s.name }

func (s *Subprocess) Run(ctx context.Context, src string, ectx *Context) error {
	if len(s.Command) == 0 {
		return errors.ConfigError(fmt.Sprintf("interpreter %q has no command", s.name)).Build()
	}

	env := append(os.Environ(), ectx.Env...)
	env = append(env, EnvBlockID+"="+ectx.BlockID)
	if s.Prelude != PreludeNone && s.Prelude != "" {
		if ectx.Socket != nil {
			sock, err := ectx.Socket()
			if err != nil {
				return err
			}
			env = append(env, EnvSocket+"="+sock)
		}
		if ectx.Binary != "" {
			env = append(env, EnvBinary+"="+ectx.Binary)
		}
	}

	dir, err := os.MkdirTemp("", "mdexec-block-")
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create script directory").Build()
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			ectx.logger().Warn("Failed to remove script directory", logfields.Path(dir), logfields.Error(rmErr))
		}
	}()

	script := filepath.Join(dir, "block"+s.Prelude.Extension())
	if err := os.WriteFile(script, []byte(s.Prelude.Source()+src), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write block script").Build()
	}

	args := append(append([]string{}, s.Command[1:]...), script)
	// #nosec G204 -- running document code is the purpose of this tool
	cmd := exec.CommandContext(ctx, s.Command[0], args...)
	cmd.Env = env
	cmd.Stdout = ectx.Stdout
	stderr := &cappedBuffer{limit: maxStderr}
	cmd.Stderr = stderr
	cmd.WaitDelay = s.WaitDelay

	runErr := cmd.Run()

	if text := strings.TrimSpace(stderr.String()); text != "" {
		ectx.logger().Debug("Block stderr", logfields.BlockID(ectx.BlockID), logfields.Language(s.name), "stderr", text)
	}
	if runErr == nil {
		return nil
	}
	if terr := timedOut(ctx, ectx); terr != nil {
		return terr
	}

	if stderrors.Is(runErr, exec.ErrNotFound) {
		return failure(fmt.Sprintf("interpreter %q not found", s.Command[0]))
	}

	var exitErr *exec.ExitError
	if stderrors.As(runErr, &exitErr) {
		msg := lastLine(stderr.String())
		if msg == "" {
			msg = exitErr.Error()
		}
		return failure(msg).WithContext("exit_code", exitErr.ExitCode())
	}
	return failure(runErr.Error())
}

// lastLine returns the last non-blank line of s, trimmed.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, " \t\r\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// cappedBuffer keeps at most limit bytes, dropping the oldest output first.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	c.buf.Write(p)
	if over := c.buf.Len() - c.limit; over > 0 {
		c.buf.Next(over)
	}
	return n, nil
}

func (c *cappedBuffer) String() string { return c.buf.String() }
