package skills

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcozac/go-jsonc"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// commandSkill is the on-disk form of a declarative skill: a shell command
// with named arguments exposed to it as environment variables.
type commandSkill struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Command     string            `json:"command"`
	Args        map[string]string `json:"args"` // arg name → description
	Timeout     string            `json:"timeout"`
}

const defaultCommandTimeout = 30 * time.Second

func (r *Registry) loadCommandSkillFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var def commandSkill
	if err := jsonc.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if def.Name == "" || def.Command == "" {
		return fmt.Errorf("%s: name and command are required", filepath.Base(path))
	}

	timeout := defaultCommandTimeout
	if def.Timeout != "" {
		if d, err := time.ParseDuration(def.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}

	desc := def.Description
	if len(def.Args) > 0 {
		var names []string
		for arg := range def.Args {
			names = append(names, arg)
		}
		desc = fmt.Sprintf("%s Args: %s", desc, strings.Join(names, ", "))
	}

	r.Register(&Skill{
		Name:        def.Name,
		Description: desc,
		path:        path,
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			return r.runShell(ctx, def.Command, args, timeout)
		},
	})
	return nil
}

// runShell executes a command line under the embedded shell interpreter.
// Arguments arrive as environment variables, the workspace is the working
// directory, and output is capped by the caller's truncation.
func (r *Registry) runShell(ctx context.Context, command string, args map[string]any, timeout time.Duration) (string, error) {
	if reason, blocked := blockedCommand(command); blocked {
		return fmt.Sprintf("BLOCKED: Command contains dangerous pattern %q", reason), nil
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return "", fmt.Errorf("parse command: %w", err)
	}

	env := os.Environ()
	for k, v := range args {
		env = append(env, fmt.Sprintf("%s=%s", strings.ToUpper(k), fmt.Sprint(v)))
	}

	var buf bytes.Buffer
	runner, err := interp.New(
		interp.Dir(r.cfg.Workspace),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, &buf, &buf),
	)
	if err != nil {
		return "", fmt.Errorf("shell init: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = runner.Run(ctx, file)
	out := strings.TrimSpace(buf.String())
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Sprintf("TIMEOUT: command exceeded %s", timeout), nil
		}
		if status, ok := interp.IsExitStatus(err); ok {
			if out == "" {
				out = "(command produced no output)"
			}
			return fmt.Sprintf("%s\n[exit code: %d]", out, status), nil
		}
		return "", err
	}
	if out == "" {
		return "(command produced no output)", nil
	}
	return out, nil
}

// blockedPatterns are never executed regardless of where the command came
// from. The model writes its own skills; this is the backstop.
var blockedPatterns = []string{
	"rm -rf /",
	"rm -rf ~",
	"mkfs",
	":(){:|:&};:",
	"dd if=/dev/zero of=/dev/sd",
	"dd if=/dev/zero of=/dev/nvme",
	"> /dev/sda",
	"chmod -R 777 /",
	"chown -R root /",
	"shutdown",
	"reboot",
	"halt",
	"init 0",
	"init 6",
}

func blockedCommand(command string) (string, bool) {
	for _, p := range blockedPatterns {
		if strings.Contains(command, p) {
			return p, true
		}
	}
	return "", false
}
