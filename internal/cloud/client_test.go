package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *Credential) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cred := NewCredential("secret")
	return NewClient(cred, WithBaseURL(srv.URL+"/api/v1")), cred
}

func TestListLamps(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/lamps" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer secret")
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID header missing")
		}
		w.Write([]byte(`[{"id":"1","name":"Desk","api_version":"1.2","serial_number":"SN1"}]`))
	})

	lamps, err := c.ListLamps(context.Background())
	if err != nil {
		t.Fatalf("ListLamps() error = %v", err)
	}
	want := LampRecord{ID: "1", Name: "Desk", APIVersion: "1.2", SerialNumber: "SN1"}
	if len(lamps) != 1 || lamps[0] != want {
		t.Errorf("ListLamps() = %+v, want [%+v]", lamps, want)
	}
}

func TestFetchState(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/lamps/abc/state" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"on":true,"brightness":42,"color":{"temperatureK":3200},"online":true}`))
	})

	state, err := c.FetchState(context.Background(), "abc")
	if err != nil {
		t.Fatalf("FetchState() error = %v", err)
	}
	if !state.On || state.Brightness != 42 || state.Color.TemperatureK != 3200 || !state.Online {
		t.Errorf("FetchState() = %+v", state)
	}
}

func TestSendCommand_Body(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/lamps/abc/command" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("invalid body %q: %v", raw, err)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	power := PowerOn
	scene := 0
	if err := c.SendCommand(context.Background(), "abc", Command{Power: &power, Scene: &scene}); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if len(body) != 2 || body["power"] != "ON" || body["scene"] != float64(0) {
		t.Errorf("body = %v, want power=ON scene=0 only", body)
	}
}

func TestStatusErrorKinds(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		kind error
	}{
		{"list", func() error { _, err := c.ListLamps(ctx); return err }, ErrDiscovery},
		{"state", func() error { _, err := c.FetchState(ctx, "x"); return err }, ErrStateFetch},
		{"command", func() error { return c.SendCommand(ctx, "x", Command{}) }, ErrCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.kind) {
				t.Fatalf("error = %v, want kind %v", err, tt.kind)
			}
			if errors.Is(err, ErrTransport) {
				t.Error("status error should not be a transport error")
			}
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("error %T is not *StatusError", err)
			}
			if se.StatusCode != http.StatusForbidden || se.Body != "nope" {
				t.Errorf("StatusError = %+v", se)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(NewCredential("t"), WithBaseURL(base), WithTimeout(time.Second))
	_, err := c.FetchState(context.Background(), "x")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if !errors.Is(err, ErrStateFetch) {
		t.Errorf("transport error should also carry the operation kind")
	}
}

func TestTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.SendCommand(ctx, "x", Command{})
	if !errors.Is(err, ErrTransport) || !errors.Is(err, ErrCommand) {
		t.Fatalf("error = %v, want transport+command kinds", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error should wrap context.DeadlineExceeded, got %v", err)
	}
}

func TestMalformedBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})
	_, err := c.FetchState(context.Background(), "x")
	if !errors.Is(err, ErrStateFetch) {
		t.Fatalf("error = %v, want ErrStateFetch", err)
	}
}

func TestCredentialSwap(t *testing.T) {
	var seen []string
	c, cred := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	})

	c.ListLamps(context.Background())
	cred.SetToken("rotated")
	c.ListLamps(context.Background())

	if len(seen) != 2 || seen[0] != "Bearer secret" || seen[1] != "Bearer rotated" {
		t.Errorf("Authorization headers = %v", seen)
	}
}

func TestCommandFields(t *testing.T) {
	power := PowerOff
	bri := 10
	fields := Command{Power: &power, Brightness: &bri}.Fields()
	if len(fields) != 2 || fields["power"] != "OFF" || fields["brightness"] != 10 {
		t.Errorf("Fields() = %v", fields)
	}
}

func TestTimeoutAppliesToCustomHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	tests := []struct {
		name string
		opts func(hc *http.Client) []Option
	}{
		{"timeout first", func(hc *http.Client) []Option {
			return []Option{WithTimeout(100 * time.Millisecond), WithHTTPClient(hc)}
		}},
		{"http client first", func(hc *http.Client) []Option {
			return []Option{WithHTTPClient(hc), WithTimeout(100 * time.Millisecond)}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := &http.Client{}
			opts := append([]Option{WithBaseURL(srv.URL)}, tt.opts(hc)...)
			c := NewClient(NewCredential("t"), opts...)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			start := time.Now()
			_, err := c.ListLamps(ctx)
			if !errors.Is(err, ErrTransport) || !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("error = %v, want deadline transport error", err)
			}
			if took := time.Since(start); took > 2*time.Second {
				t.Errorf("request took %v, want about 100ms", took)
			}
			if hc.Timeout != 0 {
				t.Errorf("caller's http.Client.Timeout = %v, want untouched", hc.Timeout)
			}
		})
	}
}
