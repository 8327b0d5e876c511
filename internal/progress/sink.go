// Package progress defines the engine's external Progress Sink collaborator
// (spec §2, §6) and a default CLI implementation of it.
package progress

// Sink is the contract the executor and downloader drive status through. All
// methods must be safe to call from any goroutine; the engine treats writes
// to it as fire-and-forget.
type Sink interface {
	Log(msg string)
	SetProgress(percent int)
	IsCancelled() bool
	Close()
}

// Noop is a Sink that discards everything and never cancels. Useful as a
// default when a host embeds the engine without wiring a real sink.
type Noop struct{}

func (Noop) Log(string)        {}
func (Noop) SetProgress(int)   {}
func (Noop) IsCancelled() bool { return false }
func (Noop) Close()            {}
