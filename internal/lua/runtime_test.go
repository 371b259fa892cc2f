package lua

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dokzlo13/luvo/internal/fleet"
)

// scriptCloud is a fake cloud with two lamps whose state follows commands
type scriptCloud struct {
	mu       sync.Mutex
	commands []map[string]any
	bri      int
	on       bool
}

func (s *scriptCloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.URL.Path == "/api/v1/lamps":
		w.Write([]byte(`[
			{"id":"a","name":"Desk","api_version":"1.0","serial_number":"SN-A"},
			{"id":"b","name":"Reading","api_version":"1.0","serial_number":"SN-B"}
		]`))
	case strings.HasSuffix(r.URL.Path, "/command"):
		raw, _ := io.ReadAll(r.Body)
		var cmd map[string]any
		json.Unmarshal(raw, &cmd)
		s.commands = append(s.commands, cmd)
		if v, ok := cmd["brightness"].(float64); ok {
			s.bri = int(v)
		}
		if v, ok := cmd["power"].(string); ok {
			s.on = v == "ON"
		}
	case strings.HasSuffix(r.URL.Path, "/state"):
		json.NewEncoder(w).Encode(map[string]any{
			"on":         s.on,
			"brightness": s.bri,
			"color":      map[string]any{"temperatureK": 3000},
			"online":     true,
		})
	default:
		http.NotFound(w, r)
	}
}

func newRuntime(t *testing.T) (*Runtime, *scriptCloud) {
	t.Helper()
	sc := &scriptCloud{}
	srv := httptest.NewServer(sc)
	t.Cleanup(srv.Close)

	rt := NewRuntime(fleet.New("token", fleet.WithBaseURL(srv.URL+"/api/v1")))
	t.Cleanup(rt.Close)
	return rt, sc
}

func TestScriptDrivesLamps(t *testing.T) {
	rt, sc := newRuntime(t)

	err := rt.DoString(context.Background(), `
		local lamps = require("lamps")
		local log = require("log")

		local all = lamps.discover()
		assert(#all == 2, "expected two lamps")

		local desk = lamps.get("SN-A")
		assert(desk:name() == "Desk")
		assert(desk:api_version() == "1.0")

		desk:turn_on(150):set_brightness(-10)
		assert(desk:is_on() == true)
		assert(desk:brightness() == 0, "brightness should follow the cloud")

		local st = desk:state()
		assert(st.kelvin == 3000 and st.online)

		log.info("done", {lamp = desk:id()})
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	if len(sc.commands) != 2 {
		t.Fatalf("commands = %v, want 2", sc.commands)
	}
	if sc.commands[0]["brightness"] != float64(100) || sc.commands[0]["power"] != "ON" {
		t.Errorf("turn_on body = %v", sc.commands[0])
	}
	if sc.commands[1]["brightness"] != float64(0) {
		t.Errorf("set_brightness body = %v", sc.commands[1])
	}
}

func TestScriptGetUnknownLamp(t *testing.T) {
	rt, _ := newRuntime(t)

	err := rt.DoString(context.Background(), `
		local lamps = require("lamps")
		lamps.discover()
		assert(lamps.get("nope") == nil)
		assert(lamps.check() == true)
		assert(#lamps.list() == 2)
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
}

func TestScriptCommandErrorRaises(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/lamps" {
			w.Write([]byte(`[{"id":"a","name":"Desk","api_version":"1","serial_number":"1"}]`))
			return
		}
		http.Error(w, "lamp offline", http.StatusConflict)
	}))
	defer srv.Close()

	rt := NewRuntime(fleet.New("token", fleet.WithBaseURL(srv.URL+"/api/v1")))
	defer rt.Close()

	err := rt.DoString(context.Background(), `
		local lamps = require("lamps")
		lamps.discover()
		lamps.get("a"):turn_off()
	`)
	if err == nil || !strings.Contains(err.Error(), "lamp offline") {
		t.Errorf("DoString() error = %v, want command failure", err)
	}
}

func TestLoadScript(t *testing.T) {
	rt, sc := newRuntime(t)

	path := filepath.Join(t.TempDir(), "evening.lua")
	script := `
		local lamps = require("lamps")
		for _, l in ipairs(lamps.discover()) do
			l:set_values(30, 2700)
		end
	`
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := rt.LoadScript(context.Background(), path); err != nil {
		t.Fatalf("LoadScript() error = %v", err)
	}
	if len(sc.commands) != 2 {
		t.Errorf("commands = %d, want one per lamp", len(sc.commands))
	}
}

func TestLogAcceptsNonSequenceTables(t *testing.T) {
	rt, _ := newRuntime(t)

	err := rt.DoString(context.Background(), `
		local log = require("log")
		log.info("fields", {f = {[0] = "a", [1] = "b"}, g = {[-1] = true}})
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
}
