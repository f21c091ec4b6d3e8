// Package driver defines the automation session interface the engine and
// primitives are written against. A session is borrowed by exactly one run
// and must be released on every exit path.
package driver

import (
	"context"
	"strconv"
	"time"
)

// Bounds represents an element's position and size on screen.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds.
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Element is a reference to a UI element resolved by one lookup. References
// go stale when the screen changes; callers re-resolve rather than reuse.
type Element struct {
	Ref       string
	Text      string
	Displayed bool
	Bounds    Bounds
}

// Session is one automation connection to a device. All element references
// returned by FindElements belong to this session.
type Session interface {
	// FindElements resolves all elements matching the strategy. The kind is
	// one of the selector strategy kinds (xpath, uiautomator, class, id,
	// accessibility).
	FindElements(kind, query string) ([]Element, error)

	// Tap taps a previously resolved element.
	Tap(ref string) error
	// TapPoint taps raw screen coordinates.
	TapPoint(x, y int) error

	// TypeText sends text to a focused element.
	TypeText(ref, text string) error
	// ClearText clears an element's content via the driver's clear call.
	ClearText(ref string) error
	// ElementText reads an element's current text.
	ElementText(ref string) (string, error)

	// PressKey sends a key event (Android key codes).
	PressKey(code int) error

	// LongPress issues the native press-and-hold gesture on an element.
	LongPress(ref string, duration time.Duration) error

	// Swipe performs a directional gesture between two points.
	Swipe(startX, startY, endX, endY int, duration time.Duration) error

	// WindowSize returns the screen dimensions.
	WindowSize() (width, height int, err error)

	// LowLevelInput dispatches a raw device-shell input command, the
	// fallback channel when the primary automation action fails.
	LowLevelInput(args ...string) error

	// Release tears down the session.
	Release() error
}

// Factory acquires a new session. The engine calls it once per run, plus
// one more time when recovering from a lost session.
type Factory func(ctx context.Context) (Session, error)

// Android key codes used by the primitives.
const (
	KeyEnter      = 66
	KeyDelete     = 67
	KeyDpadUp     = 19
	KeyDpadDown   = 20
	KeyDpadCenter = 23
	KeyTab        = 61
)

// HoldInputArgs builds the low-level press-and-hold command: a
// zero-distance touchscreen swipe held for the duration.
func HoldInputArgs(x, y int, duration time.Duration) []string {
	sx, sy := strconv.Itoa(x), strconv.Itoa(y)
	return []string{"touchscreen", "swipe", sx, sy, sx, sy, strconv.FormatInt(duration.Milliseconds(), 10)}
}

// SwipeInputArgs builds the low-level swipe command between two points.
func SwipeInputArgs(startX, startY, endX, endY int, duration time.Duration) []string {
	return []string{
		"touchscreen", "swipe",
		strconv.Itoa(startX), strconv.Itoa(startY),
		strconv.Itoa(endX), strconv.Itoa(endY),
		strconv.FormatInt(duration.Milliseconds(), 10),
	}
}

// Selector strategy kinds accepted by FindElements.
const (
	KindXPath         = "xpath"
	KindUIAutomator   = "uiautomator"
	KindClass         = "class"
	KindID            = "id"
	KindAccessibility = "accessibility"
)
