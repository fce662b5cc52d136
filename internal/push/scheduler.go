package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"MockMate/internal/domain"
	"MockMate/internal/ports"
)

// State names the scheduler's position in its per-user lifecycle.
type State string

const (
	StateInactive      State = "inactive"
	StateArmed         State = "armed"
	StatePushed        State = "pushed"
	StateReminderArmed State = "reminder_armed"
)

// QuestionFeed supplies ranked candidate questions for a user. Implementations
// typically query the trending-question API with the user's preferences.
type QuestionFeed interface {
	Questions(ctx context.Context, prefs domain.UserPreferences) ([]domain.TrendingQuestion, error)
}

// PreferenceSource looks up a user's stored preferences.
type PreferenceSource interface {
	UserPreferences(ctx context.Context, userID int64) (domain.UserPreferences, error)
}

// SessionGate reports whether the user is in an active interview session.
// Starting the scheduler is a no-op while a session runs.
type SessionGate interface {
	InSession(userID int64) bool
}

// Callbacks surface scheduler events to the hosting UI. They are invoked with
// the scheduler's internal lock held and must not call back into it.
type Callbacks struct {
	OnPush     func(q domain.TrendingQuestion)
	OnReminder func(q domain.TrendingQuestion)
}

// Options tune a scheduler instance. Zero values fall back to defaults.
type Options struct {
	Interval      time.Duration
	ReminderDelay time.Duration
	Clock         Clock
	Logger        *slog.Logger
}

const (
	defaultInterval      = 24 * time.Hour
	defaultReminderDelay = time.Hour
)

// Scheduler decides when a trending question is surfaced to one user. All
// record mutations for the user go through this instance, which serializes
// them under a single lock; no timer callback runs concurrently with another
// operation.
type Scheduler struct {
	userID    int64
	records   RecordStore
	feed      QuestionFeed
	prefs     PreferenceSource
	notifier  ports.Notifier
	gate      SessionGate
	callbacks Callbacks

	interval      time.Duration
	reminderDelay time.Duration
	clock         Clock
	logger        *slog.Logger

	mu        sync.Mutex
	state     State
	epoch     int
	boundary  Timer
	reminders map[string]Timer
	current   domain.TrendingQuestion
	recordID  string
}

// NewScheduler builds a scheduler for one user. It starts inactive.
func NewScheduler(userID int64, records RecordStore, feed QuestionFeed, prefs PreferenceSource, notifier ports.Notifier, gate SessionGate, callbacks Callbacks, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.ReminderDelay <= 0 {
		opts.ReminderDelay = defaultReminderDelay
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}

	return &Scheduler{
		userID:        userID,
		records:       records,
		feed:          feed,
		prefs:         prefs,
		notifier:      notifier,
		gate:          gate,
		callbacks:     callbacks,
		interval:      opts.Interval,
		reminderDelay: opts.ReminderDelay,
		clock:         opts.Clock,
		logger:        opts.Logger,
		state:         StateInactive,
		reminders:     map[string]Timer{},
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start arms the scheduler. If the user is in an active session the call is a
// no-op and the scheduler stays inactive. When no push happened within the
// interval the first push is attempted immediately; otherwise a timer is set
// for the boundary computed from the persisted last-push timestamp. A clock
// that jumped backward therefore just delays the next push until that
// boundary passes again.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInactive {
		return nil
	}
	if s.gate != nil && s.gate.InSession(s.userID) {
		s.log("start deferred, session active", "user", s.userID)
		return nil
	}

	s.state = StateArmed

	last, ok, err := s.records.LastPushAt(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("load last push: %w", err)
	}

	now := s.clock.Now()
	if !ok || now.Sub(last) >= s.interval {
		s.attemptPush(ctx)
		s.armBoundary(s.interval)
		return nil
	}

	s.armBoundary(last.Add(s.interval).Sub(now))
	return nil
}

// Stop cancels the boundary timer and every live reminder. Nothing fires
// after Stop returns; answering or dismissing afterwards is an error.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	if s.boundary != nil {
		s.boundary.Stop()
		s.boundary = nil
	}
	for id, timer := range s.reminders {
		timer.Stop()
		delete(s.reminders, id)
	}
	s.state = StateInactive
	s.recordID = ""
}

// TriggerPush attempts a push outside the periodic schedule. It consults and
// updates the same record history, so the periodic path never double-counts a
// question surfaced manually. While a surfaced question is still open the
// trigger is rejected; pushing over it would orphan its pending record.
func (s *Scheduler) TriggerPush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateInactive:
		return errors.New("push scheduler is not running")
	case StateArmed:
		s.attemptPush(ctx)
		return nil
	default:
		return fmt.Errorf("question still open in state %s", s.state)
	}
}

// Answered records that the user answered the surfaced question. No reminder
// is scheduled; the scheduler waits for the next boundary.
func (s *Scheduler) Answered(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePushed {
		return fmt.Errorf("no question pending in state %s", s.state)
	}
	if err := s.records.UpdateStatus(ctx, s.recordID, domain.PushAnswered, s.clock.Now()); err != nil {
		return fmt.Errorf("record answer: %w", err)
	}

	s.state = StateArmed
	s.recordID = ""
	return nil
}

// Dismissed records the dismissal and arms a one-shot reminder that
// re-surfaces the same question after the reminder delay.
func (s *Scheduler) Dismissed(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePushed {
		return fmt.Errorf("no question pending in state %s", s.state)
	}
	if err := s.records.UpdateStatus(ctx, s.recordID, domain.PushDismissed, s.clock.Now()); err != nil {
		return fmt.Errorf("record dismissal: %w", err)
	}

	question := s.current
	if _, exists := s.reminders[question.ID]; !exists {
		epoch := s.epoch
		s.reminders[question.ID] = s.clock.AfterFunc(s.reminderDelay, func() {
			s.onReminder(epoch, question)
		})
	}

	s.state = StateReminderArmed
	s.recordID = ""
	return nil
}

func (s *Scheduler) armBoundary(delay time.Duration) {
	epoch := s.epoch
	s.boundary = s.clock.AfterFunc(delay, func() {
		s.onBoundary(epoch)
	})
}

func (s *Scheduler) onBoundary(epoch int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return
	}

	if s.state == StateArmed {
		s.attemptPush(context.Background())
	}
	s.armBoundary(s.interval)
}

// onReminder re-surfaces a dismissed question once. The dedup guard is
// bypassed on purpose; the dismissal record is already closed so a fresh
// pending record is opened.
func (s *Scheduler) onReminder(epoch int, question domain.TrendingQuestion) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return
	}
	delete(s.reminders, question.ID)

	if !s.openRecord(context.Background(), question) {
		return
	}
	s.state = StatePushed
	if s.callbacks.OnReminder != nil {
		s.callbacks.OnReminder(question)
	}
}

// attemptPush fetches candidates and surfaces the first one not pushed within
// the interval. Fetch failures are logged and leave the timer chain intact.
func (s *Scheduler) attemptPush(ctx context.Context) {
	prefs := domain.UserPreferences{UserID: s.userID}
	if s.prefs != nil {
		loaded, err := s.prefs.UserPreferences(ctx, s.userID)
		if err != nil {
			s.log("preference fetch failed", "user", s.userID, "error", err)
			return
		}
		prefs = loaded
	}

	questions, err := s.feed.Questions(ctx, prefs)
	if err != nil {
		s.log("question fetch failed", "user", s.userID, "error", err)
		return
	}

	since := s.clock.Now().Add(-s.interval)
	for _, question := range questions {
		pushed, err := s.records.PushedSince(ctx, s.userID, question.ID, since)
		if err != nil {
			s.log("history check failed", "user", s.userID, "error", err)
			return
		}
		if pushed {
			continue
		}

		if !s.openRecord(ctx, question) {
			return
		}
		s.state = StatePushed
		if s.callbacks.OnPush != nil {
			s.callbacks.OnPush(question)
		}
		return
	}
	// Zero eligible questions: stay armed, retry on the next boundary.
}

// openRecord appends a pending record and fires the platform notification.
// Permission denial is non-fatal: the record stands and callbacks still run.
func (s *Scheduler) openRecord(ctx context.Context, question domain.TrendingQuestion) bool {
	rec := domain.PushRecord{
		ID:         uuid.NewString(),
		UserID:     s.userID,
		QuestionID: question.ID,
		PushedAt:   s.clock.Now(),
		Status:     domain.PushPending,
	}
	if err := s.records.Append(ctx, rec); err != nil {
		s.log("append push record failed", "user", s.userID, "error", err)
		return false
	}

	s.current = question
	s.recordID = rec.ID

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, s.userID, question); err != nil {
			if errors.Is(err, ports.ErrPermissionDenied) {
				s.log("platform notification denied", "user", s.userID)
			} else {
				s.log("platform notification failed", "user", s.userID, "error", err)
			}
		}
	}
	return true
}

func (s *Scheduler) log(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
