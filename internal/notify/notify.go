// Package notify reports command outcomes to the user.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Level is the severity of a notification
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warning"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Notifier shows a one-line message to the user
type Notifier interface {
	Notify(level Level, msg string)
}

var (
	infoLabel  = color.New(color.FgGreen, color.Bold).SprintFunc()
	warnLabel  = color.New(color.FgYellow, color.Bold).SprintFunc()
	errorLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	errorMsg   = color.New(color.FgRed).SprintFunc()
)

// Terminal writes notifications as colored lines
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal creates a notifier writing to w (usually stderr)
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Notify(level Level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch level {
	case LevelWarn:
		fmt.Fprintf(t.w, "%s %s\n", warnLabel("!"), msg)
	case LevelError:
		fmt.Fprintf(t.w, "%s %s\n", errorLabel("✗"), errorMsg(msg))
	default:
		fmt.Fprintf(t.w, "%s %s\n", infoLabel("✓"), msg)
	}
}

// Message is a recorded notification
type Message struct {
	Level Level
	Text  string
}

// Recorder keeps notifications in memory
type Recorder struct {
	mu       sync.Mutex
	Messages []Message
}

func (r *Recorder) Notify(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, Message{Level: level, Text: msg})
}

// Last returns the most recent notification, or the zero Message
func (r *Recorder) Last() Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Messages) == 0 {
		return Message{}
	}
	return r.Messages[len(r.Messages)-1]
}
