package uia2

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/signup-runner/pkg/config"
	"github.com/devicelab-dev/signup-runner/pkg/core"
	"github.com/devicelab-dev/signup-runner/pkg/driver"
)

// Session adapts the UIAutomator2 client and the adb channel to
// driver.Session.
type Session struct {
	client *Client
	adb    *adbChannel
}

const uia2ServerPort = 6790

// Factory returns a driver.Factory that connects to a device per the
// driver configuration.
func Factory(cfg config.DriverConfig) driver.Factory {
	return func(ctx context.Context) (driver.Session, error) {
		return Acquire(ctx, cfg)
	}
}

// Acquire connects to the device, forwards the UIAutomator2 server, and
// opens a session.
func Acquire(ctx context.Context, cfg config.DriverConfig) (driver.Session, error) {
	adb, err := newADBChannel(cfg.ADBPath, cfg.Serial)
	if err != nil {
		return nil, core.ErrSessionUnavailable.WithCause(err)
	}
	if err := adb.WaitForDevice(5 * time.Second); err != nil {
		return nil, core.ErrSessionUnavailable.WithCause(err)
	}

	var client *Client
	if cfg.Socket != "" {
		if err := adb.ForwardSocket(cfg.Socket, uia2ServerPort); err != nil {
			return nil, core.ErrSessionUnavailable.WithCause(err)
		}
		client = NewClient(cfg.Socket)
	} else {
		port := cfg.Port
		if port == 0 {
			port = uia2ServerPort
		}
		if err := adb.Forward(port, uia2ServerPort); err != nil {
			return nil, core.ErrSessionUnavailable.WithCause(err)
		}
		client = NewClientTCP(port)
	}

	if err := waitForServer(ctx, client, 15*time.Second); err != nil {
		return nil, core.ErrSessionUnavailable.WithCause(err)
	}

	if err := client.CreateSession(Capabilities{PlatformName: "android", DeviceName: adb.serial}); err != nil {
		return nil, core.ErrSessionUnavailable.WithCause(err)
	}

	if cfg.ImplicitWait > 0 {
		if err := client.SetImplicitWait(cfg.ImplicitWait.Std()); err != nil {
			_ = client.DeleteSession()
			return nil, core.ErrSessionUnavailable.WithCause(err)
		}
	}

	return &Session{client: client, adb: adb}, nil
}

func waitForServer(ctx context.Context, client *Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if ready, err := client.Status(); err == nil && ready {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("automation server not ready after %v", timeout)
}

// wireStrategy maps the logical strategy kinds to the server's locator
// strategy names.
func wireStrategy(kind string) (string, error) {
	switch kind {
	case driver.KindXPath:
		return StrategyXPath, nil
	case driver.KindUIAutomator:
		return StrategyUIAutomator, nil
	case driver.KindClass:
		return StrategyClassName, nil
	case driver.KindID:
		return StrategyID, nil
	case driver.KindAccessibility:
		return StrategyAccessibilityID, nil
	default:
		return "", fmt.Errorf("unknown strategy kind %q", kind)
	}
}

// FindElements implements driver.Session.
func (s *Session) FindElements(kind, query string) ([]driver.Element, error) {
	strategy, err := wireStrategy(kind)
	if err != nil {
		return nil, err
	}

	refs, err := s.client.FindElements(strategy, query)
	if err != nil {
		return nil, s.wrap(err)
	}

	elements := make([]driver.Element, 0, len(refs))
	for _, ref := range refs {
		el := driver.Element{Ref: ref}
		if displayed, derr := s.client.ElementDisplayed(ref); derr == nil {
			el.Displayed = displayed
		} else {
			// Include the element when the display check itself fails.
			el.Displayed = true
		}
		if rect, rerr := s.client.ElementRect(ref); rerr == nil {
			el.Bounds = driver.Bounds{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}
		}
		elements = append(elements, el)
	}
	return elements, nil
}

// Tap implements driver.Session.
func (s *Session) Tap(ref string) error {
	return s.wrap(s.client.ElementClick(ref))
}

// TapPoint implements driver.Session.
func (s *Session) TapPoint(x, y int) error {
	return s.wrap(s.client.Click(x, y))
}

// TypeText implements driver.Session.
func (s *Session) TypeText(ref, text string) error {
	return s.wrap(s.client.ElementSendKeys(ref, text))
}

// ClearText implements driver.Session.
func (s *Session) ClearText(ref string) error {
	return s.wrap(s.client.ElementClear(ref))
}

// ElementText implements driver.Session.
func (s *Session) ElementText(ref string) (string, error) {
	text, err := s.client.ElementText(ref)
	return text, s.wrap(err)
}

// PressKey implements driver.Session.
func (s *Session) PressKey(code int) error {
	return s.wrap(s.client.PressKeyCode(code))
}

// LongPress implements driver.Session.
func (s *Session) LongPress(ref string, duration time.Duration) error {
	return s.wrap(s.client.LongClickElement(ref, duration))
}

// Swipe implements driver.Session.
func (s *Session) Swipe(startX, startY, endX, endY int, duration time.Duration) error {
	// The gesture API takes speed rather than duration; approximate from
	// the swipe distance.
	speed := 1000
	if ms := duration.Milliseconds(); ms > 0 {
		dx, dy := endX-startX, endY-startY
		dist := dx*dx + dy*dy
		if dist > 0 {
			speed = int(float64(intSqrt(dist)) / float64(ms) * 1000)
			if speed < 100 {
				speed = 100
			}
		}
	}
	return s.wrap(s.client.Drag(startX, startY, endX, endY, speed))
}

func intSqrt(n int) int {
	if n <= 0 {
		return 0
	}
	x := n
	for y := (x + 1) / 2; y < x; y = (x + n/x) / 2 {
		x = y
	}
	return x
}

// WindowSize implements driver.Session.
func (s *Session) WindowSize() (int, int, error) {
	w, h, err := s.client.WindowSize()
	return w, h, s.wrap(err)
}

// LowLevelInput implements driver.Session via adb shell input.
func (s *Session) LowLevelInput(args ...string) error {
	return s.adb.Input(args...)
}

// Release implements driver.Session.
func (s *Session) Release() error {
	return s.client.DeleteSession()
}

// wrap converts transport-level failures into the session-lost category so
// the engine can attempt one re-acquisition.
func (s *Session) wrap(err error) error {
	if err == nil {
		return nil
	}
	if isConnError(err) {
		return core.ErrSessionLost.WithCause(err)
	}
	if isStaleError(err) {
		return core.ErrStaleElement.WithCause(err)
	}
	return err
}

func isStaleError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "stale") || strings.Contains(msg, "no such element")
}
