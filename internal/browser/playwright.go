package browser

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/playwright-community/playwright-go"
)

// Runtime owns the shared Playwright driver process. One Runtime serves the
// whole service; individual engine processes are launched from it.
type Runtime struct {
	pw       *playwright.Playwright
	headless bool
}

var _ Launcher = (*Runtime)(nil)

// RuntimeOptions configures the Playwright runtime.
type RuntimeOptions struct {
	Headless bool
	// Install downloads browser binaries on startup when they are missing.
	Install bool
}

// StartRuntime starts the Playwright driver and returns a Runtime that
// implements Launcher.
func StartRuntime(opts RuntimeOptions) (*Runtime, error) {
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("installing playwright browsers: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("starting playwright driver: %w", err)
	}

	log.Println("[BROWSER] Playwright runtime started")
	return &Runtime{pw: pw, headless: opts.Headless}, nil
}

// Launch starts a fresh Chromium process and wraps it in the narrow
// Browser interface.
func (r *Runtime) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := r.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(r.headless),
	})
	if err != nil {
		return nil, fmt.Errorf("launching chromium: %w", err)
	}
	return &pwBrowser{b: b}, nil
}

// Stop shuts down the Playwright driver. Any still-open browsers die with it.
func (r *Runtime) Stop() error {
	log.Println("[BROWSER] Stopping playwright runtime")
	return r.pw.Stop()
}

type pwBrowser struct {
	b playwright.Browser
}

func (p *pwBrowser) IsConnected() bool { return p.b.IsConnected() }

func (p *pwBrowser) NewContext(opts ContextOptions) (Context, error) {
	ctxOpts := playwright.BrowserNewContextOptions{}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		ctxOpts.Viewport = &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		}
	}
	if opts.UserAgent != "" {
		ctxOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	if opts.Locale != "" {
		ctxOpts.Locale = playwright.String(opts.Locale)
	}
	if opts.TimezoneID != "" {
		ctxOpts.TimezoneId = playwright.String(opts.TimezoneID)
	}

	c, err := p.b.NewContext(ctxOpts)
	if err != nil {
		return nil, err
	}
	return &pwContext{c: c}, nil
}

func (p *pwBrowser) Close() error { return p.b.Close() }

type pwContext struct {
	c playwright.BrowserContext
}

func (p *pwContext) NewPage() (Page, error) {
	pg, err := p.c.NewPage()
	if err != nil {
		return nil, err
	}
	return &pwPage{p: pg}, nil
}

func (p *pwContext) Close() error { return p.c.Close() }

type pwPage struct {
	p playwright.Page
}

func (p *pwPage) IsClosed() bool { return p.p.IsClosed() }
func (p *pwPage) Close() error   { return p.p.Close() }

// Raw exposes the underlying playwright page for the widget driver, which
// needs the full automation surface rather than the pool's lifecycle view.
func (p *pwPage) Raw() playwright.Page { return p.p }
