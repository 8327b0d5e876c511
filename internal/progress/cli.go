package progress

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/caedis/modengine/internal/logging"
)

// CLI is the default Sink implementation used by the cobra command tree. It
// renders a live progressbar.v3 bar when stdout is an interactive terminal
// and falls back to plain internal/logging lines otherwise (piped output,
// CI, --log-file redirection), leaving the bar as a pure presentation layer
// over the same events that always go through internal/logging.
type CLI struct {
	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	cancelled atomic.Bool
	total     int
}

// NewCLI creates a CLI sink. total is the expected number of discrete steps
// (e.g. plan actions); pass 0 for an indeterminate spinner.
func NewCLI(label string, total int) *CLI {
	c := &CLI{total: total}
	if !isInteractive() {
		return c
	}
	if total > 0 {
		c.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(label),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	} else {
		c.bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription(label),
			progressbar.OptionSpinnerType(14),
		)
	}
	return c
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func (c *CLI) Log(msg string) {
	logging.Infoln(msg)
}

func (c *CLI) SetProgress(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar == nil || c.total <= 0 {
		return
	}
	target := percent * c.total / 100
	_ = c.bar.Set(target)
}

// Advance bumps the bar by one completed unit. It is not part of Sink; the
// executor reports progress through SetProgress.
func (c *CLI) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar != nil {
		_ = c.bar.Add(1)
	}
}

func (c *CLI) IsCancelled() bool { return c.cancelled.Load() }

// Cancel marks the sink cancelled. No command in cmd/ calls it; SIGINT is
// not routed to it.
func (c *CLI) Cancel() { c.cancelled.Store(true) }

func (c *CLI) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar != nil {
		_ = c.bar.Close()
	}
}
