package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/bookpilot/bookpilot/internal/browser"
	"github.com/bookpilot/bookpilot/internal/concurrency"
	"github.com/bookpilot/bookpilot/internal/pool"
	"github.com/bookpilot/bookpilot/internal/registry"
	"github.com/bookpilot/bookpilot/internal/tasks"
)

// Driver performs the actual widget interactions on a page. The service
// depends on this abstraction rather than a concrete automation backend.
type Driver interface {
	// OpenSchedule navigates a fresh page to the scheduling widget.
	OpenSchedule(ctx context.Context, page browser.Page) error
	// Slots reads the open appointment slots currently displayed.
	Slots(ctx context.Context, page browser.Page, date string) ([]Slot, error)
	// Book fills and submits the booking form for one slot.
	Book(ctx context.Context, page browser.Page, req BookRequest) (*Confirmation, error)
}

// Service orchestrates availability discovery and booking on top of the
// concurrency manager, browser pool, and instance registry. The two-step
// flow (discover, then book) reuses one navigated session per key.
type Service struct {
	mgr    *concurrency.Manager
	pool   *pool.Pool
	reg    *registry.Registry
	driver Driver

	taskClient *asynq.Client
	ctxOpts    browser.ContextOptions
	timeout    time.Duration
}

// Dependencies wires the service, mirroring how handlers receive their
// collaborators elsewhere in the codebase.
type Dependencies struct {
	Manager    *concurrency.Manager
	Pool       *pool.Pool
	Registry   *registry.Registry
	Driver     Driver
	TaskClient *asynq.Client
	CtxOpts    browser.ContextOptions
	Timeout    time.Duration
}

func NewService(deps Dependencies) *Service {
	if deps.Timeout <= 0 {
		deps.Timeout = concurrency.DefaultTimeout
	}
	return &Service{
		mgr:        deps.Manager,
		pool:       deps.Pool,
		reg:        deps.Registry,
		driver:     deps.Driver,
		taskClient: deps.TaskClient,
		ctxOpts:    deps.CtxOpts,
		timeout:    deps.Timeout,
	}
}

// Availability discovers open slots. The session stays registered under
// the returned key so a follow-up Book call skips re-navigation.
func (s *Service) Availability(ctx context.Context, req AvailabilityRequest) (*AvailabilityResult, error) {
	key := req.Email
	if key == "" {
		key = uuid.NewString()
	}

	res, err := s.mgr.Execute(ctx, func(ctx context.Context) (any, error) {
		sess, err := s.session(ctx, key)
		if err != nil {
			return nil, err
		}

		slots, err := s.driver.Slots(ctx, sess.Page, req.Date)
		if err != nil {
			// A failed read leaves the page in an unknown state; drop the
			// session rather than hand the next step a broken one.
			s.reg.Cleanup(key)
			return nil, fmt.Errorf("reading slots: %w", err)
		}

		return &AvailabilityResult{SessionKey: key, Slots: slots}, nil
	}, s.timeout)
	if err != nil {
		return nil, err
	}
	return res.(*AvailabilityResult), nil
}

// Book submits a booking, reusing the key's session when it is still
// alive. On logical completion the session is torn down and its handle
// returned to the pool regardless of outcome.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Confirmation, error) {
	key := req.Email

	res, err := s.mgr.Execute(ctx, func(ctx context.Context) (any, error) {
		sess, err := s.session(ctx, key)
		if err != nil {
			return nil, err
		}
		// Booking is the final step for this session either way.
		defer s.reg.Cleanup(key)

		conf, err := s.driver.Book(ctx, sess.Page, req)
		if err != nil {
			s.record(ctx, req, StatusFailed, err.Error(), nil)
			return nil, fmt.Errorf("submitting booking: %w", err)
		}

		s.record(ctx, req, StatusConfirmed, "", conf)
		return conf, nil
	}, s.timeout)
	if err != nil {
		return nil, err
	}
	return res.(*Confirmation), nil
}

// CleanupSession tears down the session for key, if any.
func (s *Service) CleanupSession(key string) {
	s.reg.Cleanup(key)
}

// session returns the live session for key, creating and registering a
// fresh one on miss. Creation failures release every acquired resource.
func (s *Service) session(ctx context.Context, key string) (*registry.Session, error) {
	if sess, ok := s.reg.Get(key); ok {
		return sess, nil
	}

	handle, bctx, err := s.pool.CreateContext(ctx, s.ctxOpts)
	if err != nil {
		return nil, err
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		s.pool.Release(handle)
		return nil, fmt.Errorf("creating page: %w", err)
	}

	if err := s.driver.OpenSchedule(ctx, page); err != nil {
		_ = page.Close()
		_ = bctx.Close()
		s.pool.Release(handle)
		return nil, fmt.Errorf("opening schedule: %w", err)
	}

	return s.reg.Register(key, handle, bctx, page), nil
}

// record enqueues the booking outcome for the worker to persist. Audit
// writes are best effort and never fail the booking itself.
func (s *Service) record(ctx context.Context, req BookRequest, status RecordStatus, detail string, conf *Confirmation) {
	if s.taskClient == nil {
		return
	}

	payload := tasks.BookingRecordPayload{
		RecordID:  uuid.New(),
		Email:     req.Email,
		SlotStart: req.SlotStart,
		Status:    string(status),
		Detail:    detail,
	}
	if conf != nil {
		payload.Detail = conf.Reference
	}

	task, err := tasks.NewBookingRecordTask(payload)
	if err != nil {
		log.Printf("[BOOKING] Failed to build record task: %v", err)
		return
	}

	if _, err := s.taskClient.EnqueueContext(ctx, task, asynq.Queue("bookings"), asynq.MaxRetry(3)); err != nil {
		log.Printf("[BOOKING] Failed to enqueue record task: %v", err)
	}
}
