// Package lua runs user scripts against a lamp fleet.
package lua

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/luvo/internal/fleet"
	"github.com/dokzlo13/luvo/internal/lua/modules"
)

// Runtime owns one Lua VM bound to a fleet.
// A Runtime is not safe for concurrent use; run one script at a time.
type Runtime struct {
	L     *lua.LState
	fleet *fleet.Client
}

// NewRuntime creates a new Lua runtime with the log and lamps modules preloaded
func NewRuntime(f *fleet.Client) *Runtime {
	r := &Runtime{
		L:     lua.NewState(),
		fleet: f,
	}
	r.registerModules()
	return r
}

// registerModules registers all Lua modules
func (r *Runtime) registerModules() {
	r.L.PreloadModule("log", modules.NewLogModule().Loader)
	r.L.PreloadModule("lamps", modules.NewLampsModule(r.fleet).Loader)
}

// Close closes the Lua state
func (r *Runtime) Close() {
	r.L.Close()
}

// LoadScript executes a Lua script file.
// ctx bounds every lamp call the script makes; cancelling it aborts the script.
func (r *Runtime) LoadScript(ctx context.Context, path string) error {
	log.Info().Str("path", path).Msg("Running Lua script")

	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}

	log.Info().Str("path", path).Msg("Lua script finished")
	return nil
}

// DoString executes an inline Lua chunk
func (r *Runtime) DoString(ctx context.Context, src string) error {
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	if err := r.L.DoString(src); err != nil {
		return fmt.Errorf("failed to execute Lua chunk: %w", err)
	}
	return nil
}
