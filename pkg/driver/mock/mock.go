// Package mock provides a scriptable in-memory session for testing the
// primitives, steps, and engine without a device.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/signup-runner/pkg/driver"
)

// Call records one session method invocation.
type Call struct {
	Op   string
	Kind string
	Ref  string
	Text string
	Code int
	Args []string
}

// Session is a scriptable driver.Session. Queries resolve against the
// visible set; hooks override individual methods when set.
type Session struct {
	mu       sync.Mutex
	visible  map[string][]driver.Element
	texts    map[string]string
	calls    []Call
	released bool

	// Err, when set, fails every subsequent call with this error.
	Err error

	// Per-method hooks. Each runs after the call is recorded and, when
	// non-nil, replaces the default behavior.
	FindHook      func(kind, query string) ([]driver.Element, error)
	TapHook       func(ref string) error
	TapPointHook  func(x, y int) error
	TypeHook      func(ref, text string) error
	ClearHook     func(ref string) error
	PressKeyHook  func(code int) error
	LongPressHook func(ref string, duration time.Duration) error
	LowLevelHook  func(args ...string) error

	// Screen dimensions reported by WindowSize.
	Width, Height int

	pool *Pool
}

// NewSession creates an empty session with a default screen size.
func NewSession() *Session {
	return &Session{
		visible: make(map[string][]driver.Element),
		texts:   make(map[string]string),
		Width:   1080,
		Height:  2400,
	}
}

// Show makes elements visible for a query. With no elements given, a single
// displayed element is synthesized whose ref derives from the query.
func (s *Session) Show(query string, els ...driver.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(els) == 0 {
		els = []driver.Element{{
			Ref:       "el:" + query,
			Displayed: true,
			Bounds:    driver.Bounds{X: 100, Y: 200, Width: 200, Height: 50},
		}}
	}
	s.visible[query] = els
}

// Hide removes a query from the visible set.
func (s *Session) Hide(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.visible, query)
}

// SetText seeds an element's current text.
func (s *Session) SetText(ref, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[ref] = text
}

// Text returns an element's current text as accumulated by TypeText.
func (s *Session) Text(ref string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texts[ref]
}

// Calls returns a copy of the recorded call log.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsOf returns the recorded calls for one operation.
func (s *Session) CallsOf(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Released reports whether Release was called.
func (s *Session) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *Session) record(c Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
	return s.Err
}

// FindElements implements driver.Session.
func (s *Session) FindElements(kind, query string) ([]driver.Element, error) {
	if err := s.record(Call{Op: "find", Kind: kind, Text: query}); err != nil {
		return nil, err
	}
	if s.FindHook != nil {
		return s.FindHook(kind, query)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	els := s.visible[query]
	out := make([]driver.Element, len(els))
	copy(out, els)
	return out, nil
}

// Tap implements driver.Session.
func (s *Session) Tap(ref string) error {
	if err := s.record(Call{Op: "tap", Ref: ref}); err != nil {
		return err
	}
	if s.TapHook != nil {
		return s.TapHook(ref)
	}
	return nil
}

// TapPoint implements driver.Session.
func (s *Session) TapPoint(x, y int) error {
	if err := s.record(Call{Op: "tap_point", Args: []string{fmt.Sprint(x), fmt.Sprint(y)}}); err != nil {
		return err
	}
	if s.TapPointHook != nil {
		return s.TapPointHook(x, y)
	}
	return nil
}

// TypeText implements driver.Session. Typed text is appended to the
// element's current value.
func (s *Session) TypeText(ref, text string) error {
	if err := s.record(Call{Op: "type", Ref: ref, Text: text}); err != nil {
		return err
	}
	if s.TypeHook != nil {
		return s.TypeHook(ref, text)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[ref] += text
	return nil
}

// ClearText implements driver.Session.
func (s *Session) ClearText(ref string) error {
	if err := s.record(Call{Op: "clear", Ref: ref}); err != nil {
		return err
	}
	if s.ClearHook != nil {
		return s.ClearHook(ref)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[ref] = ""
	return nil
}

// ElementText implements driver.Session.
func (s *Session) ElementText(ref string) (string, error) {
	if err := s.record(Call{Op: "text", Ref: ref}); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texts[ref], nil
}

// PressKey implements driver.Session.
func (s *Session) PressKey(code int) error {
	if err := s.record(Call{Op: "press_key", Code: code}); err != nil {
		return err
	}
	if s.PressKeyHook != nil {
		return s.PressKeyHook(code)
	}
	return nil
}

// LongPress implements driver.Session.
func (s *Session) LongPress(ref string, duration time.Duration) error {
	if err := s.record(Call{Op: "long_press", Ref: ref, Text: duration.String()}); err != nil {
		return err
	}
	if s.LongPressHook != nil {
		return s.LongPressHook(ref, duration)
	}
	return nil
}

// Swipe implements driver.Session.
func (s *Session) Swipe(startX, startY, endX, endY int, duration time.Duration) error {
	call := Call{Op: "swipe", Args: []string{
		fmt.Sprint(startX), fmt.Sprint(startY), fmt.Sprint(endX), fmt.Sprint(endY),
	}}
	return s.record(call)
}

// WindowSize implements driver.Session.
func (s *Session) WindowSize() (int, int, error) {
	if err := s.record(Call{Op: "window_size"}); err != nil {
		return 0, 0, err
	}
	return s.Width, s.Height, nil
}

// LowLevelInput implements driver.Session.
func (s *Session) LowLevelInput(args ...string) error {
	if err := s.record(Call{Op: "low_level", Args: args}); err != nil {
		return err
	}
	if s.LowLevelHook != nil {
		return s.LowLevelHook(args...)
	}
	return nil
}

// Release implements driver.Session.
func (s *Session) Release() error {
	s.mu.Lock()
	s.released = true
	pool := s.pool
	s.mu.Unlock()

	if pool != nil {
		pool.noteRelease()
	}
	return nil
}

// Pool hands out sessions and counts acquire/release pairs. Useful for
// asserting that every borrowed session is returned.
type Pool struct {
	mu       sync.Mutex
	acquired int
	released int

	// New builds the next session. Defaults to NewSession.
	New func() *Session
	// AcquireErr fails the next Acquire when set, then clears.
	AcquireErr error

	sessions []*Session
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Factory returns a driver.Factory backed by this pool.
func (p *Pool) Factory() driver.Factory {
	return func(ctx context.Context) (driver.Session, error) {
		return p.Acquire(ctx)
	}
}

// Acquire hands out a new session.
func (p *Pool) Acquire(_ context.Context) (driver.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.AcquireErr != nil {
		err := p.AcquireErr
		p.AcquireErr = nil
		return nil, err
	}

	var s *Session
	if p.New != nil {
		s = p.New()
	} else {
		s = NewSession()
	}
	s.pool = p
	p.acquired++
	p.sessions = append(p.sessions, s)
	return s, nil
}

func (p *Pool) noteRelease() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released++
}

// Acquired returns how many sessions were handed out.
func (p *Pool) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired
}

// Released returns how many sessions were returned.
func (p *Pool) Released() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// Sessions returns all sessions handed out so far.
func (p *Pool) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}
