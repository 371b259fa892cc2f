package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dokzlo13/luvo/internal/lamp"
	"github.com/dokzlo13/luvo/internal/ledger"
	"github.com/dokzlo13/luvo/internal/lua"
)

// ErrUsage is returned for malformed command lines
var ErrUsage = errors.New("usage error")

// Usage describes the command line
const Usage = `usage: luvoctl [-c config.yaml] [-token TOKEN] <command> [args]

commands:
  check                       test the connection to the cloud
  lamps                       list lamps with their current state
  state <lamp>                show the state of one lamp
  on <lamp> [-b N] [-k K]     turn on, optionally with brightness and color temperature
  off <lamp>                  turn off
  brightness <lamp> N         set brightness (0-100)
  temp <lamp> K               set color temperature (2700-4000)
  scene <lamp> N              select scene (0-31, 0 = off)
  set <lamp> N K              set brightness and color temperature
  run <script.lua>            run a Lua script
  history [-n N] [lamp]       show recent commands (requires database.path)

<lamp> is an id, serial number or name.`

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// Run executes one CLI command, writing human-readable output to out
func (a *App) Run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageErr("missing command")
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "check":
		return a.check(ctx, out)
	case "lamps":
		return a.lamps(ctx, out)
	case "state":
		return a.withLamp(ctx, rest, 0, out, func(l *lamp.Controller, _ []string) (lamp.State, error) {
			return l.Refresh(ctx)
		})
	case "on":
		return a.turnOn(ctx, rest, out)
	case "off":
		return a.withLamp(ctx, rest, 0, out, func(l *lamp.Controller, _ []string) (lamp.State, error) {
			return l.TurnOff(ctx)
		})
	case "brightness":
		return a.withLamp(ctx, rest, 1, out, func(l *lamp.Controller, v []string) (lamp.State, error) {
			n, err := intArg(v[0])
			if err != nil {
				return lamp.State{}, err
			}
			return l.SetBrightness(ctx, n)
		})
	case "temp":
		return a.withLamp(ctx, rest, 1, out, func(l *lamp.Controller, v []string) (lamp.State, error) {
			n, err := intArg(v[0])
			if err != nil {
				return lamp.State{}, err
			}
			return l.SetColorTemp(ctx, n)
		})
	case "scene":
		return a.withLamp(ctx, rest, 1, out, func(l *lamp.Controller, v []string) (lamp.State, error) {
			n, err := intArg(v[0])
			if err != nil {
				return lamp.State{}, err
			}
			return l.SetScene(ctx, n)
		})
	case "set":
		return a.withLamp(ctx, rest, 2, out, func(l *lamp.Controller, v []string) (lamp.State, error) {
			b, err := intArg(v[0])
			if err != nil {
				return lamp.State{}, err
			}
			k, err := intArg(v[1])
			if err != nil {
				return lamp.State{}, err
			}
			return l.SetValues(ctx, b, k)
		})
	case "run":
		return a.runScript(ctx, rest)
	case "history":
		return a.history(rest, out)
	default:
		return usageErr("unknown command %q", cmd)
	}
}

func intArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, usageErr("%q is not an integer", s)
	}
	return n, nil
}

func (a *App) check(ctx context.Context, out io.Writer) error {
	if !a.Fleet.TestConnection(ctx) {
		fmt.Fprintln(out, "cloud: unreachable or unauthorized")
		return errors.New("connection test failed")
	}
	fmt.Fprintln(out, "cloud: ok")
	return nil
}

func (a *App) lamps(ctx context.Context, out io.Writer) error {
	lamps, err := a.Fleet.Discover(ctx)
	if err != nil {
		return err
	}
	// lamps whose refresh failed are still listed with their last known state
	refreshErr := a.Fleet.RefreshAll(ctx)
	for _, l := range lamps {
		fmt.Fprintln(out, l)
	}
	return refreshErr
}

// withLamp resolves args[0] to a lamp, checks that exactly nvals values
// follow it, runs fn and prints the resulting state
func (a *App) withLamp(ctx context.Context, args []string, nvals int, out io.Writer,
	fn func(*lamp.Controller, []string) (lamp.State, error)) error {
	if len(args) != nvals+1 {
		return usageErr("expected <lamp> and %d value(s)", nvals)
	}

	l, err := a.resolve(ctx, args[0])
	if err != nil {
		return err
	}

	state, err := fn(l, args[1:])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s\n", l.Name(), state)
	return nil
}

func (a *App) turnOn(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageErr("expected <lamp>")
	}

	fs := flag.NewFlagSet("on", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	bri := fs.Int("b", -1, "brightness (0-100)")
	kelvin := fs.Int("k", -1, "color temperature (2700-4000)")
	if err := fs.Parse(args[1:]); err != nil {
		return usageErr("%v", err)
	}

	var opts []lamp.TurnOnOption
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "b":
			opts = append(opts, lamp.WithBrightness(*bri))
		case "k":
			opts = append(opts, lamp.WithColorTemp(*kelvin))
		}
	})

	return a.withLamp(ctx, args[:1], 0, out, func(l *lamp.Controller, _ []string) (lamp.State, error) {
		return l.TurnOn(ctx, opts...)
	})
}

func (a *App) resolve(ctx context.Context, ref string) (*lamp.Controller, error) {
	if _, err := a.Fleet.Discover(ctx); err != nil {
		return nil, err
	}
	l, ok := a.Fleet.Find(ref)
	if !ok {
		return nil, fmt.Errorf("lamp %q not found", ref)
	}
	return l, nil
}

func (a *App) runScript(ctx context.Context, args []string) error {
	path := a.cfg.Script
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return usageErr("expected <script.lua> (or script in config)")
	}

	rt := lua.NewRuntime(a.Fleet)
	defer rt.Close()

	return rt.LoadScript(ctx, path)
}

func (a *App) history(args []string, out io.Writer) error {
	if a.Ledger == nil {
		return errors.New("command history is disabled (set database.path)")
	}

	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("n", 20, "number of entries")
	if err := fs.Parse(args); err != nil {
		return usageErr("%v", err)
	}

	var (
		entries []*ledger.Entry
		err     error
	)
	if fs.NArg() > 0 {
		entries, err = a.Ledger.ByLamp(fs.Arg(0), *limit)
	} else {
		entries, err = a.Ledger.Recent(*limit)
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s  %-8s  %-14s  %s",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.LampID, e.EventType, formatPayload(e.Payload))
		if e.Error != "" {
			line += "  error: " + e.Error
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func formatPayload(p map[string]any) string {
	var parts []string
	for _, key := range []string{"power", "brightness", "kelvin", "scene"} {
		if v, ok := p[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", key, v))
		}
	}
	return strings.Join(parts, " ")
}
