// Package ipmi wraps the ipmitool command line utility used to read BMC
// sensors and send raw fan control requests.
package ipmi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"smartfan/internal/logger"
)

// Mode selects how ipmitool reaches the BMC.
type Mode string

const (
	// ModeRemote talks to the BMC over the network (out-of-band, lanplus).
	ModeRemote Mode = "remote"
	// ModeLocal uses the in-band system interface of the host itself.
	ModeLocal Mode = "local"
)

// passwordEnv is read by ipmitool when invoked with -E.
const passwordEnv = "IPMI_PASSWORD"

// Options configures a Tool.
type Options struct {
	Binary    string
	Mode      Mode
	Interface string
	Host      string
	Port      int
	Username  string
	Password  string
	Timeout   time.Duration
}

// Runner executes a single process and returns its output.
type Runner interface {
	Run(ctx context.Context, name string, args, env []string) (stdout, stderr []byte, err error)
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct{}

// Run implements Runner. The process is killed when ctx is done.
func (ExecRunner) Run(ctx context.Context, name string, args, env []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// CommandError is returned when an ipmitool invocation could not be started,
// exited non-zero, or timed out.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	b.WriteString(e.Command)
	if e.TimedOut {
		b.WriteString(": timed out")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Stderr != "" {
		b.WriteString(": ")
		b.WriteString(e.Stderr)
	}
	return b.String()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Tool invokes ipmitool once per call.
type Tool struct {
	opts   Options
	runner Runner
}

// NewTool creates a Tool. A nil runner uses ExecRunner.
func NewTool(opts Options, runner Runner) (*Tool, error) {
	if opts.Binary == "" {
		opts.Binary = "ipmitool"
	}
	if opts.Mode == "" {
		opts.Mode = ModeRemote
	}
	switch opts.Mode {
	case ModeRemote:
		if opts.Host == "" {
			return nil, fmt.Errorf("ipmi: remote mode requires a host")
		}
		if opts.Interface == "" {
			opts.Interface = "lanplus"
		}
	case ModeLocal:
	default:
		return nil, fmt.Errorf("ipmi: unknown mode %q (supported: remote, local)", opts.Mode)
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Tool{opts: opts, runner: runner}, nil
}

// Mode returns the mode the tool was configured with.
func (t *Tool) Mode() Mode {
	return t.opts.Mode
}

// Host returns the BMC host, empty in local mode.
func (t *Tool) Host() string {
	if t.opts.Mode == ModeLocal {
		return ""
	}
	return t.opts.Host
}

// QuerySensors returns the raw "ipmitool sensor" report.
func (t *Tool) QuerySensors(ctx context.Context) (string, error) {
	out, err := t.run(ctx, []string{"sensor"})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SendRaw sends one raw request to the BMC.
func (t *Tool) SendRaw(ctx context.Context, cmd RawCommand) error {
	_, err := t.run(ctx, cmd.Args())
	return err
}

// connectionArgs holds everything placed before the subcommand. The password
// is never part of it; see env.
func (t *Tool) connectionArgs() []string {
	if t.opts.Mode == ModeLocal {
		return nil
	}
	args := []string{"-I", t.opts.Interface, "-H", t.opts.Host}
	if t.opts.Port > 0 {
		args = append(args, "-p", strconv.Itoa(t.opts.Port))
	}
	if t.opts.Username != "" {
		args = append(args, "-U", t.opts.Username)
	}
	if t.opts.Password != "" {
		args = append(args, "-E")
	}
	return args
}

func (t *Tool) env() []string {
	if t.opts.Mode == ModeLocal || t.opts.Password == "" {
		return nil
	}
	return []string{passwordEnv + "=" + t.opts.Password}
}

func (t *Tool) run(ctx context.Context, sub []string) ([]byte, error) {
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	args := append(t.connectionArgs(), sub...)
	command := t.opts.Binary + " " + strings.Join(args, " ")

	log := logger.WithComponent("ipmi")
	log.Debug().Str("command", command).Msg("Running ipmitool")

	start := time.Now()
	stdout, stderr, err := t.runner.Run(ctx, t.opts.Binary, args, t.env())
	if err != nil {
		cerr := &CommandError{
			Command:  command,
			ExitCode: -1,
			Stderr:   strings.TrimSpace(string(stderr)),
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		return nil, cerr
	}

	log.Debug().
		Str("command", command).
		Dur("duration", time.Since(start)).
		Int("bytes", len(stdout)).
		Msg("ipmitool finished")
	return stdout, nil
}
