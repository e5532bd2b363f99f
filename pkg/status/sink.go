package status

import (
    "sync"
    "time"

    "go.uber.org/zap"
)

// Sink receives published statuses.
type Sink interface {
    Publish(level Level, message string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(level Level, message string)

func (f SinkFunc) Publish(level Level, message string) { f(level, message) }

// Entry is a published status.
type Entry struct {
    Level   Level     `json:"level"`
    Message string    `json:"message"`
    At      time.Time `json:"at"`
}

// Recorder remembers the latest status and a bounded history.
type Recorder struct {
    mu      sync.RWMutex
    limit   int
    history []Entry
}

// NewRecorder keeps up to limit entries; limit <= 0 defaults to 32.
func NewRecorder(limit int) *Recorder {
    if limit <= 0 { limit = 32 }
    return &Recorder{limit: limit}
}

func (r *Recorder) Publish(level Level, message string) {
    r.mu.Lock(); defer r.mu.Unlock()
    r.history = append(r.history, Entry{Level: level, Message: message, At: time.Now()})
    if over := len(r.history) - r.limit; over > 0 {
        r.history = append([]Entry(nil), r.history[over:]...)
    }
}

// Latest returns the most recent entry and false when nothing was published.
func (r *Recorder) Latest() (Entry, bool) {
    r.mu.RLock(); defer r.mu.RUnlock()
    if len(r.history) == 0 { return Entry{}, false }
    return r.history[len(r.history)-1], true
}

// History returns a copy of the recorded entries, oldest first.
func (r *Recorder) History() []Entry {
    r.mu.RLock(); defer r.mu.RUnlock()
    return append([]Entry(nil), r.history...)
}

// LogSink writes statuses to a zap logger.
type LogSink struct{ Logger *zap.Logger }

func (s LogSink) Publish(level Level, message string) {
    if s.Logger == nil { return }
    s.Logger.Info("status", zap.String("level", string(level)), zap.String("message", message))
}

// Multi fans a status out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
    return SinkFunc(func(level Level, message string) {
        for _, s := range sinks {
            if s != nil { s.Publish(level, message) }
        }
    })
}
