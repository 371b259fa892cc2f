package lamp

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/luvo/internal/cloud"
)

// Transport is the part of the cloud client a controller needs
type Transport interface {
	SendCommand(ctx context.Context, lampID string, cmd cloud.Command) error
	FetchState(ctx context.Context, lampID string) (*cloud.StateResponse, error)
}

// Recorder receives the outcome of every command sent to a lamp
type Recorder interface {
	RecordCommand(lampID string, cmd cloud.Command, err error)
}

// Controller issues commands to one lamp and caches its confirmed state.
//
// Commands on one controller are strictly sequential: a command and its
// follow-up refresh hold the controller's slot together, and later callers
// queue behind them until their context is done.
// Controllers for different lamps are independent.
type Controller struct {
	identity  Identity
	transport Transport
	recorder  Recorder

	// slot is a one-token semaphore guarding command+refresh pairs
	slot chan struct{}

	mu    sync.RWMutex
	state State
}

// NewController creates a controller with unknown state.
// recorder may be nil.
func NewController(identity Identity, transport Transport, recorder Recorder) *Controller {
	return &Controller{
		identity:  identity,
		transport: transport,
		recorder:  recorder,
		slot:      make(chan struct{}, 1),
	}
}

// Identity returns the lamp identity
func (c *Controller) Identity() Identity {
	return c.identity
}

// ID returns the lamp id
func (c *Controller) ID() string {
	return c.identity.ID
}

// Name returns the lamp name
func (c *Controller) Name() string {
	return c.identity.Name
}

// SerialNumber returns the lamp serial number
func (c *Controller) SerialNumber() string {
	return c.identity.SerialNumber
}

// State returns the cached state. It never touches the network.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) String() string {
	return fmt.Sprintf("%s, Serial Number: %s, ID: %s, %s",
		c.identity.Name, c.identity.SerialNumber, c.identity.ID, c.State())
}

// TurnOnOption adjusts a TurnOn command
type TurnOnOption func(*cloud.Command)

// WithBrightness sets the brightness applied when turning on (clamped to 0..100)
func WithBrightness(b int) TurnOnOption {
	return func(cmd *cloud.Command) {
		v := ClampBrightness(b)
		cmd.Brightness = &v
	}
}

// WithColorTemp sets the color temperature applied when turning on (clamped to 2700..4000 K)
func WithColorTemp(k int) TurnOnOption {
	return func(cmd *cloud.Command) {
		v := ClampColorTemp(k)
		cmd.Kelvin = &v
	}
}

// TurnOn powers the lamp on, optionally with brightness and color temperature
func (c *Controller) TurnOn(ctx context.Context, opts ...TurnOnOption) (State, error) {
	power := cloud.PowerOn
	cmd := cloud.Command{Power: &power}
	for _, opt := range opts {
		opt(&cmd)
	}
	return c.exec(ctx, cmd)
}

// TurnOff powers the lamp off
func (c *Controller) TurnOff(ctx context.Context) (State, error) {
	power := cloud.PowerOff
	return c.exec(ctx, cloud.Command{Power: &power})
}

// SetValues sets brightness and color temperature of the downlight without
// changing the power state
func (c *Controller) SetValues(ctx context.Context, brightness, kelvin int) (State, error) {
	b := ClampBrightness(brightness)
	k := ClampColorTemp(kelvin)
	return c.exec(ctx, cloud.Command{Brightness: &b, Kelvin: &k})
}

// SetBrightness sets the brightness percentage (clamped to 0..100)
func (c *Controller) SetBrightness(ctx context.Context, brightness int) (State, error) {
	b := ClampBrightness(brightness)
	return c.exec(ctx, cloud.Command{Brightness: &b})
}

// SetColorTemp sets the color temperature (clamped to 2700..4000 K)
func (c *Controller) SetColorTemp(ctx context.Context, kelvin int) (State, error) {
	k := ClampColorTemp(kelvin)
	return c.exec(ctx, cloud.Command{Kelvin: &k})
}

// SetScene selects a scene (clamped to 0..31). Scene 0 is "Off".
func (c *Controller) SetScene(ctx context.Context, scene int) (State, error) {
	s := ClampScene(scene)
	return c.exec(ctx, cloud.Command{Scene: &s})
}

// Refresh fetches the remote state and replaces the cached state.
// On failure the cached state is left as it was.
func (c *Controller) Refresh(ctx context.Context) (State, error) {
	if err := c.acquire(ctx); err != nil {
		return c.State(), err
	}
	defer c.release()

	return c.refresh(ctx)
}

// exec sends cmd and then refreshes, holding the slot for both
func (c *Controller) exec(ctx context.Context, cmd cloud.Command) (State, error) {
	if err := c.acquire(ctx); err != nil {
		return c.State(), err
	}
	defer c.release()

	err := c.transport.SendCommand(ctx, c.identity.ID, cmd)
	if c.recorder != nil {
		c.recorder.RecordCommand(c.identity.ID, cmd, err)
	}
	if err != nil {
		return c.State(), fmt.Errorf("lamp %s: %w", c.identity.ID, err)
	}

	log.Debug().
		Str("lamp", c.identity.ID).
		Fields(cmd.Fields()).
		Msg("Command sent")

	return c.refresh(ctx)
}

func (c *Controller) refresh(ctx context.Context) (State, error) {
	resp, err := c.transport.FetchState(ctx, c.identity.ID)
	if err != nil {
		return c.State(), fmt.Errorf("lamp %s: %w", c.identity.ID, err)
	}

	state := StateFromResponse(resp)

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	log.Debug().
		Str("lamp", c.identity.ID).
		Bool("on", state.Power).
		Int("brightness", state.Brightness).
		Int("kelvin", state.ColorTempKelvin).
		Bool("online", state.Online).
		Msg("Lamp state refreshed")

	return state, nil
}

// acquire takes the lamp's slot. A context that is already done never wins the slot.
func (c *Controller) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("lamp %s: %w", c.identity.ID, err)
	}
	select {
	case c.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("lamp %s: %w", c.identity.ID, ctx.Err())
	}
}

func (c *Controller) release() {
	<-c.slot
}
