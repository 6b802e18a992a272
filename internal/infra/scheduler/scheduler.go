package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"payment_notification_bot/internal/app"
	"payment_notification_bot/internal/domain/account"
	"payment_notification_bot/internal/domain/payment"
	"payment_notification_bot/internal/infra/config"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// State is the phase the scheduler loop is in.
type State string

const (
	StateIdle             State = "IDLE"
	StateResolvingWindow  State = "RESOLVING_WINDOW"
	StateNoWindow         State = "NO_WINDOW"
	StateScanningAccounts State = "SCANNING_ACCOUNTS"
	StateCooldown         State = "COOLDOWN"
)

// FailureCategory names the failure classes the scheduler distinguishes in its logs.
// Configuration errors never reach the scheduler; they stop the process at startup.
type FailureCategory string

const (
	FailureTransient       FailureCategory = "transient"
	FailureIdempotencyRace FailureCategory = "idempotency_race"
	FailureInternal        FailureCategory = "internal"
)

// ErrPanic marks a recovered panic.
var ErrPanic = errors.New("recovered panic")

// AccountLister enumerates the registered accounts.
type AccountLister interface {
	ListAll(ctx context.Context) ([]*account.Account, error)
}

// AccountChecker runs the per-account steps for one occurrence.
type AccountChecker interface {
	CheckAccount(ctx context.Context, acc *account.Account, occ payment.Occurrence) (app.Outcome, error)
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// CycleReport describes what one cycle did.
type CycleReport struct {
	StartedAt  time.Time
	Occurrence *payment.Occurrence // nil when no window was active
	Accounts   int
	Outcomes   map[app.Outcome]int
	Failed     int // Accounts whose check returned an error or panicked
}

// Notified is the number of notifications delivered in the cycle.
func (r CycleReport) Notified() int {
	return r.Outcomes[app.OutcomeNotified]
}

// PaymentScheduler periodically looks for the payment of the active occurrence
// on every registered account. Accounts are processed one at a time, which makes
// this loop the only writer of the payment store in a single-instance deployment.
type PaymentScheduler struct {
	resolver    payment.PeriodResolver
	accounts    AccountLister
	checker     AccountChecker
	schedule    cron.Schedule
	pacing      time.Duration
	cooldown    time.Duration
	callTimeout time.Duration
	now         func() time.Time
	sleep       Sleeper
	logger      *logrus.Entry

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customizes a PaymentScheduler.
type Option func(*PaymentScheduler)

// WithClock injects the clock used to resolve the active occurrence.
func WithClock(now func() time.Time) Option {
	return func(s *PaymentScheduler) { s.now = now }
}

// WithSleeper replaces the timer based sleep.
func WithSleeper(sleep Sleeper) Option {
	return func(s *PaymentScheduler) { s.sleep = sleep }
}

func NewPaymentScheduler(
	cfg config.SchedulerConfig,
	accounts AccountLister,
	checker AccountChecker,
	logger *logrus.Entry,
	opts ...Option,
) *PaymentScheduler {
	s := &PaymentScheduler{
		resolver: payment.PeriodResolver{
			Days:       cfg.PaymentDays,
			DaysBefore: cfg.DaysBefore,
			DaysAfter:  cfg.DaysAfter,
			Location:   cfg.Location,
		},
		accounts:    accounts,
		checker:     checker,
		schedule:    cfg.Schedule,
		pacing:      cfg.AccountPacing,
		cooldown:    cfg.FailureCooldown,
		callTimeout: cfg.ExternalCallTimeout,
		now:         time.Now,
		sleep:       SleepContext,
		logger:      logger,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the loop in the background until Stop is called.
func (s *PaymentScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
	s.logger.Info("Payment scheduler started")
}

// Stop interrupts the current sleep and waits for the running account check to finish.
func (s *PaymentScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	s.logger.Info("Stopping payment scheduler...")
	cancel()
	<-done
	s.logger.Info("Payment scheduler gracefully stopped.")
}

// State returns the phase the loop is currently in.
func (s *PaymentScheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *PaymentScheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.logger.WithField("state", state).Debug("Scheduler state changed")
}

// Run executes cycles until ctx is cancelled. A failed cycle is followed by
// the cool-down instead of the regular interval; errors never end the loop.
func (s *PaymentScheduler) Run(ctx context.Context) {
	for {
		report, err := s.RunCycle(ctx)
		if ctx.Err() != nil {
			s.setState(StateIdle)
			return
		}

		wait := s.untilNextRun()
		if err != nil {
			s.setState(StateCooldown)
			wait = s.cooldown
			s.logger.WithError(err).WithFields(logrus.Fields{
				"failure_category": FailureInternal,
				"cooldown":         wait.String(),
			}).Error("Payment check cycle failed, cooling down")
		} else if report.Occurrence != nil {
			s.logger.WithFields(logrus.Fields{
				"occurrence": report.Occurrence.Key(),
				"accounts":   report.Accounts,
				"notified":   report.Notified(),
				"failed":     report.Failed,
				"next_run":   wait.String(),
			}).Info("Payment check cycle finished")
		}

		if err := s.sleep(ctx, wait); err != nil {
			s.setState(StateIdle)
			return
		}
	}
}

func (s *PaymentScheduler) untilNextRun() time.Duration {
	now := s.now()
	if s.resolver.Location != nil {
		now = now.In(s.resolver.Location)
	}
	wait := s.schedule.Next(now).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// RunCycle resolves the active occurrence and checks every account once.
// Per-account failures are contained; the returned error reports a failure
// of the cycle itself, such as the registry being unreachable.
func (s *PaymentScheduler) RunCycle(ctx context.Context) (report CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w in payment cycle: %v\n%s", ErrPanic, r, debug.Stack())
		}
		s.setState(StateIdle)
	}()

	report = CycleReport{StartedAt: s.now(), Outcomes: make(map[app.Outcome]int)}

	s.setState(StateResolvingWindow)
	occ, ok := s.resolver.Resolve(report.StartedAt)
	if !ok {
		s.setState(StateNoWindow)
		s.logger.WithField("now", report.StartedAt.Format(time.RFC3339)).Debug("No active payment window")
		return report, nil
	}
	report.Occurrence = &occ
	log := s.logger.WithField("occurrence", occ.Key())

	s.setState(StateScanningAccounts)
	accounts, err := s.listAccounts(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list accounts: %w", err)
	}
	report.Accounts = len(accounts)
	log.WithField("accounts", len(accounts)).Info("Checking payments for active occurrence")

	for i, acc := range accounts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if i > 0 && s.pacing > 0 {
			if err := s.sleep(ctx, s.pacing); err != nil {
				return report, err
			}
		}

		outcome, err := s.checkAccount(ctx, acc, occ)
		report.Outcomes[outcome]++
		if err != nil {
			report.Failed++
			category := FailureTransient
			if errors.Is(err, ErrPanic) {
				category = FailureInternal
			}
			log.WithError(err).WithFields(logrus.Fields{
				"chat_id":          acc.ChatID,
				"failure_category": category,
			}).Error("Payment check failed for account")
			continue
		}
		if outcome == app.OutcomeRaceLost {
			log.WithFields(logrus.Fields{
				"chat_id":          acc.ChatID,
				"failure_category": FailureIdempotencyRace,
			}).Info("Notification short-circuited by idempotency gate")
		}
	}
	return report, nil
}

func (s *PaymentScheduler) listAccounts(ctx context.Context) ([]*account.Account, error) {
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}
	return s.accounts.ListAll(ctx)
}

func (s *PaymentScheduler) checkAccount(ctx context.Context, acc *account.Account, occ payment.Occurrence) (outcome app.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = app.OutcomeFailed
			err = fmt.Errorf("%w while checking account: %v", ErrPanic, r)
		}
	}()
	return s.checker.CheckAccount(ctx, acc, occ)
}

// SleepContext waits for d unless ctx is cancelled first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
