package core

import (
	"context"
)

// Actuator drives the target app on a device.
// Implementations: Appium, the scripted mock used in tests.
// The search decides what to do; the Actuator just executes events and
// reports what the screen looks like.
type Actuator interface {
	// Perform executes events in order. Reset relaunches the app first;
	// RequireWait lets the screen settle longer afterwards.
	Perform(ctx context.Context, events []Event, opts PerformOptions) error

	// PageSource returns the current UI hierarchy as XML
	PageSource(ctx context.Context) (string, error)

	// CurrentActivity returns the foreground activity
	CurrentActivity(ctx context.Context) (string, error)

	// CurrentPackage returns the foreground package
	CurrentPackage(ctx context.Context) (string, error)

	// CheckTextInvisible waits for the text of a wait_until_text_invisible
	// event to disappear and reports whether it did
	CheckTextInvisible(ctx context.Context, e Event) (bool, error)
}

// PerformOptions controls one Perform call.
type PerformOptions struct {
	Reset       bool
	RequireWait bool

	// Recorder, if set, is told about every screen change caused by a
	// click or long press.
	Recorder TransitionRecorder
}

// TransitionRecorder learns screen transitions observed while acting.
type TransitionRecorder interface {
	AddEdge(from, to string, stepping Event)
}

// Screen describes what is in the foreground.
type Screen struct {
	Package  string
	Activity string
	Source   string
}

// Key is the screen's activity-graph key.
func (s Screen) Key() string {
	return s.Package + s.Activity
}

// ReadScreen fetches package, activity and hierarchy in one go.
func ReadScreen(ctx context.Context, a Actuator) (Screen, error) {
	src, err := a.PageSource(ctx)
	if err != nil {
		return Screen{}, err
	}
	pkg, err := a.CurrentPackage(ctx)
	if err != nil {
		return Screen{}, err
	}
	act, err := a.CurrentActivity(ctx)
	if err != nil {
		return Screen{}, err
	}
	return Screen{Package: pkg, Activity: act, Source: src}, nil
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// SwipeRight returns the horizontal swipe across the middle of the bounds,
// from a quarter to three quarters of the width.
func (b Bounds) SwipeRight() (startX, startY, endX, endY int) {
	y := b.Y + b.Height/2
	return b.X + b.Width/4, y, b.X + b.Width*3/4, y
}
