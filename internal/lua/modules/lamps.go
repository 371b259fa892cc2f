package modules

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/luvo/internal/fleet"
	"github.com/dokzlo13/luvo/internal/lamp"
)

const lampTypeName = "luvo.lamp"

// LampsModule exposes a fleet to Lua as the "lamps" module
type LampsModule struct {
	fleet *fleet.Client
}

// NewLampsModule creates a new lamps module
func NewLampsModule(f *fleet.Client) *LampsModule {
	return &LampsModule{fleet: f}
}

// Loader is the module loader for Lua
func (m *LampsModule) Loader(L *lua.LState) int {
	registerLampType(L)

	mod := L.NewTable()
	L.SetField(mod, "discover", L.NewFunction(m.discover))
	L.SetField(mod, "list", L.NewFunction(m.list))
	L.SetField(mod, "get", L.NewFunction(m.get))
	L.SetField(mod, "check", L.NewFunction(m.check))
	L.SetField(mod, "refresh_all", L.NewFunction(m.refreshAll))

	L.Push(mod)
	return 1
}

// lamps.discover() -> {lamp, ...}
func (m *LampsModule) discover(L *lua.LState) int {
	lamps, err := m.fleet.Discover(luaContext(L))
	if err != nil {
		L.RaiseError("discover: %s", err.Error())
		return 0
	}
	L.Push(lampList(L, lamps))
	return 1
}

// lamps.list() -> {lamp, ...}
func (m *LampsModule) list(L *lua.LState) int {
	L.Push(lampList(L, m.fleet.Lamps()))
	return 1
}

// lamps.get(ref) -> lamp | nil
// ref is an id, serial number or name
func (m *LampsModule) get(L *lua.LState) int {
	ref := L.CheckString(1)
	l, ok := m.fleet.Find(ref)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	pushLamp(L, l)
	return 1
}

// lamps.check() -> bool
func (m *LampsModule) check(L *lua.LState) int {
	L.Push(lua.LBool(m.fleet.TestConnection(luaContext(L))))
	return 1
}

// lamps.refresh_all()
func (m *LampsModule) refreshAll(L *lua.LState) int {
	if err := m.fleet.RefreshAll(luaContext(L)); err != nil {
		L.RaiseError("refresh_all: %s", err.Error())
	}
	return 0
}

func lampList(L *lua.LState, lamps []*lamp.Controller) *lua.LTable {
	tbl := L.NewTable()
	for _, l := range lamps {
		pushLamp(L, l)
		tbl.Append(L.Get(-1))
		L.Pop(1)
	}
	return tbl
}

// registerLampType registers the luvo.lamp metatable
func registerLampType(L *lua.LState) {
	mt := L.NewTypeMetatable(lampTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), lampMethods))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		l, _ := checkLamp(L)
		L.Push(lua.LString(l.String()))
		return 1
	}))
}

var lampMethods = map[string]lua.LGFunction{
	// Getters (cached state, no network)
	"id":          lampID,
	"name":        lampName,
	"serial":      lampSerial,
	"api_version": lampAPIVersion,
	"is_on":       lampIsOn,
	"brightness":  lampBrightness,
	"kelvin":      lampKelvin,
	"online":      lampOnline,
	"state":       lampState,

	// Chainable commands
	"turn_on":        lampTurnOn,
	"turn_off":       lampTurnOff,
	"set_brightness": lampSetBrightness,
	"set_temp":       lampSetTemp,
	"set_scene":      lampSetScene,
	"set_values":     lampSetValues,
	"refresh":        lampRefresh,
}

// pushLamp creates a new lamp userdata and pushes it onto the stack
func pushLamp(L *lua.LState, l *lamp.Controller) {
	ud := L.NewUserData()
	ud.Value = l
	L.SetMetatable(ud, L.GetTypeMetatable(lampTypeName))
	L.Push(ud)
}

// checkLamp retrieves the controller from the Lua stack
func checkLamp(L *lua.LState) (*lamp.Controller, *lua.LUserData) {
	ud := L.CheckUserData(1)
	if v, ok := ud.Value.(*lamp.Controller); ok {
		return v, ud
	}
	L.ArgError(1, "luvo.lamp expected")
	return nil, nil
}

func lampID(L *lua.LState) int {
	l, _ := checkLamp(L)
	L.Push(lua.LString(l.ID()))
	return 1
}

func lampName(L *lua.LState) int {
	l, _ := checkLamp(L)
	L.Push(lua.LString(l.Name()))
	return 1
}

func lampSerial(L *lua.LState) int {
	l, _ := checkLamp(L)
	L.Push(lua.LString(l.SerialNumber()))
	return 1
}

func lampAPIVersion(L *lua.LState) int {
	l, _ := checkLamp(L)
	L.Push(lua.LString(l.Identity().APIVersion))
	return 1
}

func lampIsOn(L *lua.LState) int {
	l, _ := checkLamp(L)
	L.Push(lua.LBool(l.State().Power))
	return 1
}

func lampBrightness(L *lua.LState) int {
	l, _ := checkLamp(L)
	L.Push(lua.LNumber(l.State().Brightness))
	return 1
}

func lampKelvin(L *lua.LState) int {
	l, _ := checkLamp(L)
	L.Push(lua.LNumber(l.State().ColorTempKelvin))
	return 1
}

func lampOnline(L *lua.LState) int {
	l, _ := checkLamp(L)
	L.Push(lua.LBool(l.State().Online))
	return 1
}

// lamp:state() -> {on = bool, brightness = n, kelvin = n, online = bool}
func lampState(L *lua.LState) int {
	l, _ := checkLamp(L)
	s := l.State()
	tbl := L.NewTable()
	tbl.RawSetString("on", lua.LBool(s.Power))
	tbl.RawSetString("brightness", lua.LNumber(s.Brightness))
	tbl.RawSetString("kelvin", lua.LNumber(s.ColorTempKelvin))
	tbl.RawSetString("online", lua.LBool(s.Online))
	L.Push(tbl)
	return 1
}

// command runs fn against the lamp and pushes self, raising on error
func command(L *lua.LState, name string, fn func(context.Context, *lamp.Controller) error) int {
	l, ud := checkLamp(L)
	if err := fn(luaContext(L), l); err != nil {
		L.RaiseError("%s: %s", name, err.Error())
		return 0
	}
	L.Push(ud)
	return 1
}

// lamp:turn_on([brightness], [kelvin]) -> self
func lampTurnOn(L *lua.LState) int {
	var opts []lamp.TurnOnOption
	if b := optInt(L, 2); b != nil {
		opts = append(opts, lamp.WithBrightness(*b))
	}
	if k := optInt(L, 3); k != nil {
		opts = append(opts, lamp.WithColorTemp(*k))
	}
	return command(L, "turn_on", func(ctx context.Context, l *lamp.Controller) error {
		_, err := l.TurnOn(ctx, opts...)
		return err
	})
}

// lamp:turn_off() -> self
func lampTurnOff(L *lua.LState) int {
	return command(L, "turn_off", func(ctx context.Context, l *lamp.Controller) error {
		_, err := l.TurnOff(ctx)
		return err
	})
}

// lamp:set_brightness(percent) -> self
func lampSetBrightness(L *lua.LState) int {
	b := L.CheckInt(2)
	return command(L, "set_brightness", func(ctx context.Context, l *lamp.Controller) error {
		_, err := l.SetBrightness(ctx, b)
		return err
	})
}

// lamp:set_temp(kelvin) -> self
func lampSetTemp(L *lua.LState) int {
	k := L.CheckInt(2)
	return command(L, "set_temp", func(ctx context.Context, l *lamp.Controller) error {
		_, err := l.SetColorTemp(ctx, k)
		return err
	})
}

// lamp:set_scene(id) -> self
func lampSetScene(L *lua.LState) int {
	s := L.CheckInt(2)
	return command(L, "set_scene", func(ctx context.Context, l *lamp.Controller) error {
		_, err := l.SetScene(ctx, s)
		return err
	})
}

// lamp:set_values(brightness, kelvin) -> self
func lampSetValues(L *lua.LState) int {
	b := L.CheckInt(2)
	k := L.CheckInt(3)
	return command(L, "set_values", func(ctx context.Context, l *lamp.Controller) error {
		_, err := l.SetValues(ctx, b, k)
		return err
	})
}

// lamp:refresh() -> self
func lampRefresh(L *lua.LState) int {
	return command(L, "refresh", func(ctx context.Context, l *lamp.Controller) error {
		_, err := l.Refresh(ctx)
		return err
	})
}
