package browser

import "context"

// Browser is the narrow view of one live browser engine process. The pool
// and registry only ever see this interface, never the automation backend.
type Browser interface {
	IsConnected() bool
	NewContext(opts ContextOptions) (Context, error)
	Close() error
}

// Context is an isolated browsing session (cookies, storage) inside an
// engine process.
type Context interface {
	NewPage() (Page, error)
	Close() error
}

// Page is one navigable document within a context.
type Page interface {
	IsClosed() bool
	Close() error
}

// Launcher starts new browser engine processes.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// ContextOptions configures a new browser context.
type ContextOptions struct {
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	Locale         string
	TimezoneID     string
}
