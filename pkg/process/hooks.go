package process

import (
    "bytes"
    "context"
    "fmt"
    "os"
    "os/exec"
    "strings"

    "go.uber.org/zap"

    "github.com/amirimatin/go-ensemble/internal/logutil"
)

// Runner executes a hook command with extra environment variables.
type Runner interface {
    Run(ctx context.Context, argv []string, env []string) error
}

// ExecRunner runs hooks as child processes. Output is logged at debug level
// and included in the error on failure.
type ExecRunner struct {
    Logger *zap.Logger
}

func (r ExecRunner) Run(ctx context.Context, argv []string, env []string) error {
    if len(argv) == 0 { return nil }
    cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
    cmd.Env = append(os.Environ(), env...)
    var out bytes.Buffer
    cmd.Stdout = &out
    cmd.Stderr = &out
    err := cmd.Run()
    text := strings.TrimSpace(out.String())
    if text != "" { logutil.Debugf(r.Logger, "%s: %s", argv[0], text) }
    if err != nil {
        if text != "" { return fmt.Errorf("process: %s: %w: %s", argv[0], err, text) }
        return fmt.Errorf("process: %s: %w", argv[0], err)
    }
    return nil
}

var _ Runner = ExecRunner{}
