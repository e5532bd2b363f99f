package process

import (
    "context"
    "fmt"

    "github.com/coreos/go-systemd/v22/dbus"
    "go.uber.org/zap"

    "github.com/amirimatin/go-ensemble/internal/logutil"
)

// Units starts and stops service units.
type Units interface {
    StartUnit(ctx context.Context, name string) error
    StopUnit(ctx context.Context, name string) error
    Close()
}

// Systemd drives units over the systemd D-Bus API.
type Systemd struct {
    conn *dbus.Conn
}

// DialSystemd connects to the system bus.
func DialSystemd(ctx context.Context) (*Systemd, error) {
    conn, err := dbus.NewWithContext(ctx)
    if err != nil { return nil, fmt.Errorf("process: systemd: %w", err) }
    return &Systemd{conn: conn}, nil
}

// StartUnit is a no-op for an already active unit.
func (s *Systemd) StartUnit(ctx context.Context, name string) error {
    ch := make(chan string, 1)
    if _, err := s.conn.StartUnitContext(ctx, name, "replace", ch); err != nil {
        return fmt.Errorf("process: start %s: %w", name, err)
    }
    return wait(ctx, "start", name, ch)
}

func (s *Systemd) StopUnit(ctx context.Context, name string) error {
    ch := make(chan string, 1)
    if _, err := s.conn.StopUnitContext(ctx, name, "replace", ch); err != nil {
        return fmt.Errorf("process: stop %s: %w", name, err)
    }
    return wait(ctx, "stop", name, ch)
}

func (s *Systemd) Close() { s.conn.Close() }

func wait(ctx context.Context, op, name string, ch <-chan string) error {
    select {
    case res := <-ch:
        if res != "done" { return fmt.Errorf("process: %s %s: job %s", op, name, res) }
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

var _ Units = (*Systemd)(nil)

// LogUnits only logs unit operations, for development hosts without systemd.
type LogUnits struct {
    Logger *zap.Logger
}

func (u LogUnits) StartUnit(_ context.Context, name string) error {
    logutil.Infof(u.Logger, "start unit %s (not supervised)", name)
    return nil
}

func (u LogUnits) StopUnit(_ context.Context, name string) error {
    logutil.Infof(u.Logger, "stop unit %s (not supervised)", name)
    return nil
}

func (LogUnits) Close() {}

var _ Units = LogUnits{}
