package widget

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/bookpilot/bookpilot/internal/booking"
	"github.com/bookpilot/bookpilot/internal/browser"
)

// Selectors locate the widget's moving parts. The defaults match the
// vendor's current markup; they are injectable because the vendor ships
// markup changes without notice.
type Selectors struct {
	DateInput    string
	OpenSlot     string
	SlotTime     string // attribute holding the ISO start time
	EmailInput   string
	NameInput    string
	SubmitButton string
	Confirmation string
}

func DefaultSelectors() Selectors {
	return Selectors{
		DateInput:    "input[name='date']",
		OpenSlot:     ".slot:not(.slot--taken)",
		SlotTime:     "data-start",
		EmailInput:   "input[name='email']",
		NameInput:    "input[name='name']",
		SubmitButton: "button[type='submit']",
		Confirmation: ".booking-confirmation .reference",
	}
}

// Driver drives the third-party scheduling widget through Playwright. It
// implements booking.Driver; everything above it sees only that interface.
type Driver struct {
	url       string
	selectors Selectors
	timeoutMs float64
}

var _ booking.Driver = (*Driver)(nil)

func New(url string, selectors Selectors, timeout time.Duration) *Driver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Driver{
		url:       url,
		selectors: selectors,
		timeoutMs: float64(timeout.Milliseconds()),
	}
}

// rawPager is satisfied by the playwright page adapter. The pool and
// registry only need the lifecycle view; the driver needs the full page.
type rawPager interface {
	Raw() playwright.Page
}

func (d *Driver) page(p browser.Page) (playwright.Page, error) {
	rp, ok := p.(rawPager)
	if !ok {
		return nil, fmt.Errorf("page %T is not playwright-backed", p)
	}
	return rp.Raw(), nil
}

// OpenSchedule navigates to the widget and waits for it to settle.
func (d *Driver) OpenSchedule(ctx context.Context, page browser.Page) error {
	pw, err := d.page(page)
	if err != nil {
		return err
	}

	_, err = pw.Goto(d.url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(d.timeoutMs),
	})
	if err != nil {
		return fmt.Errorf("navigating to widget: %w", err)
	}
	return nil
}

// Slots reads the open slots shown by the widget, optionally after
// switching the displayed date.
func (d *Driver) Slots(ctx context.Context, page browser.Page, date string) ([]booking.Slot, error) {
	pw, err := d.page(page)
	if err != nil {
		return nil, err
	}

	if date != "" {
		input := pw.Locator(d.selectors.DateInput)
		if err := input.Fill(date); err != nil {
			return nil, fmt.Errorf("setting date %q: %w", date, err)
		}
		if err := input.Press("Enter"); err != nil {
			return nil, fmt.Errorf("applying date %q: %w", date, err)
		}
		if err := pw.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State: playwright.LoadStateNetworkidle,
		}); err != nil {
			return nil, fmt.Errorf("waiting for slot refresh: %w", err)
		}
	}

	elements, err := pw.Locator(d.selectors.OpenSlot).All()
	if err != nil {
		return nil, fmt.Errorf("querying slots: %w", err)
	}

	slots := make([]booking.Slot, 0, len(elements))
	for _, el := range elements {
		raw, err := el.GetAttribute(d.selectors.SlotTime)
		if err != nil || raw == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			log.Printf("[WIDGET] Skipping slot with unparseable start %q: %v", raw, err)
			continue
		}

		label, _ := el.TextContent()
		slots = append(slots, booking.Slot{Start: start, Label: label})
	}

	return slots, nil
}

// Book selects the requested slot, fills the form, submits, and reads the
// confirmation reference.
func (d *Driver) Book(ctx context.Context, page browser.Page, req booking.BookRequest) (*booking.Confirmation, error) {
	pw, err := d.page(page)
	if err != nil {
		return nil, err
	}

	slotSel := fmt.Sprintf("%s[%s=%q]",
		d.selectors.OpenSlot, d.selectors.SlotTime, req.SlotStart.Format(time.RFC3339))

	if err := pw.Locator(slotSel).Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(d.timeoutMs),
	}); err != nil {
		return nil, fmt.Errorf("selecting slot %s: %w", req.SlotStart.Format(time.RFC3339), err)
	}

	if err := pw.Locator(d.selectors.EmailInput).Fill(req.Email); err != nil {
		return nil, fmt.Errorf("filling email: %w", err)
	}
	if req.Name != "" {
		if err := pw.Locator(d.selectors.NameInput).Fill(req.Name); err != nil {
			return nil, fmt.Errorf("filling name: %w", err)
		}
	}

	if err := pw.Locator(d.selectors.SubmitButton).Click(); err != nil {
		return nil, fmt.Errorf("submitting booking: %w", err)
	}

	confirmation := pw.Locator(d.selectors.Confirmation)
	if err := confirmation.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(d.timeoutMs),
	}); err != nil {
		return nil, fmt.Errorf("waiting for confirmation: %w", err)
	}

	ref, err := confirmation.TextContent()
	if err != nil {
		return nil, fmt.Errorf("reading confirmation reference: %w", err)
	}

	return &booking.Confirmation{Reference: ref, SlotStart: req.SlotStart}, nil
}
