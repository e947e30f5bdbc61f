// Package service implements the connection and progressive reveal use-cases.
//
// Every mutation goes through a conditional store write. After a commit the
// service publishes realtime events and emits notifications; failures in
// either are logged and never undo the write.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
	"github.com/louisbranch/unveil/internal/platform/id"
	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/identity"
	"github.com/louisbranch/unveil/internal/services/reveal/notify"
	"github.com/louisbranch/unveil/internal/services/reveal/presence"
	"github.com/louisbranch/unveil/internal/services/reveal/realtime"
	"github.com/louisbranch/unveil/internal/services/reveal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const tracerName = "github.com/louisbranch/unveil/internal/services/reveal/service"

// Defaults applied when Config leaves a field zero.
const (
	DefaultRequestQuota  = 20
	DefaultRequestWindow = 24 * time.Hour
	// MaxMessageRunes caps user message length.
	MaxMessageRunes = 2000
	// MaxRequestMessageRunes caps the note attached to a stranger request.
	MaxRequestMessageRunes = 500
)

// Config tunes request limits and code lifetime.
type Config struct {
	RequestQuota  int
	RequestWindow time.Duration
	CodeTTL       time.Duration
}

func (c Config) withDefaults() Config {
	if c.RequestQuota <= 0 {
		c.RequestQuota = DefaultRequestQuota
	}
	if c.RequestWindow <= 0 {
		c.RequestWindow = DefaultRequestWindow
	}
	if c.CodeTTL <= 0 {
		c.CodeTTL = domain.DefaultCodeTTL
	}
	return c
}

// Service runs reveal use-cases against a store.
type Service struct {
	store     storage.Store
	profiles  identity.Store
	publisher realtime.Publisher
	notifier  notify.Emitter
	typing    *presence.Tracker
	printer   *message.Printer
	tracer    trace.Tracer
	cfg       Config
	clock     func() time.Time
	newID     func() (string, error)
	random    io.Reader
	logf      func(string, ...any)
}

// Option customizes a Service.
type Option func(*Service)

// WithConfig sets request limits and code lifetime.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg.withDefaults() }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides connection and message ID generation.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithRandom overrides the code entropy source.
func WithRandom(random io.Reader) Option {
	return func(s *Service) {
		if random != nil {
			s.random = random
		}
	}
}

// WithProfiles sets the identity store used for visible profiles.
func WithProfiles(profiles identity.Store) Option {
	return func(s *Service) { s.profiles = profiles }
}

// WithPublisher sets the realtime publisher.
func WithPublisher(publisher realtime.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithNotifier sets the notification emitter.
func WithNotifier(notifier notify.Emitter) Option {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithTracker sets the typing tracker.
func WithTracker(tracker *presence.Tracker) Option {
	return func(s *Service) {
		if tracker != nil {
			s.typing = tracker
		}
	}
}

// WithLocale selects the language of system announcements.
func WithLocale(tag language.Tag) Option {
	return func(s *Service) { s.printer = message.NewPrinter(tag) }
}

// WithLogger overrides the log function.
func WithLogger(logf func(string, ...any)) Option {
	return func(s *Service) { s.logf = logf }
}

// New builds a Service backed by store.
func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notify.Nop{},
		typing:   presence.NewTracker(nil),
		printer:  message.NewPrinter(language.English),
		tracer:   otel.Tracer(tracerName),
		cfg:      Config{}.withDefaults(),
		clock:    time.Now,
		newID:    id.NewID,
		random:   rand.Reader,
		logf:     log.Printf,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Typing exposes the tracker so the server can run its sweep.
func (s *Service) Typing() *presence.Tracker {
	return s.typing
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.store == nil {
		return apperrors.New(apperrors.CodeUnknown, "reveal store is not configured")
	}
	return nil
}

func (s *Service) log(format string, args ...any) {
	if s.logf != nil {
		s.logf(format, args...)
	}
}

// loadConnection reads a connection and requires userID to be a member.
func (s *Service) loadConnection(ctx context.Context, connectionID string, userID string) (domain.Connection, error) {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidArgument, "connection id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	connection, err := s.store.GetConnection(ctx, connectionID)
	if err != nil {
		return domain.Connection{}, storeError("load connection", err)
	}
	if !connection.IsMember(userID) {
		return domain.Connection{}, apperrors.New(apperrors.CodeForbidden, "user is not a member of this connection")
	}
	return connection, nil
}

// storeError converts storage sentinels into coded errors.
func storeError(op string, err error) error {
	var coded *apperrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &coded):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, op+": not found", err)
	case errors.Is(err, storage.ErrConflict):
		return apperrors.Wrap(apperrors.CodeConflict, op+": already handled", err)
	case errors.Is(err, storage.ErrDuplicate):
		return apperrors.Wrap(apperrors.CodeDuplicateConnection, op+": already exists", err)
	case errors.Is(err, storage.ErrForbidden):
		return apperrors.Wrap(apperrors.CodeForbidden, op+": not permitted", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperrors.Wrap(apperrors.CodeUnknown, op+": "+err.Error(), err)
	}
}

// viewFor returns the record as userID may see it. Only the requester sees
// the verification code.
func viewFor(connection domain.Connection, userID string) domain.Connection {
	if connection.PartyOf(userID) == domain.PartyRequester {
		return connection
	}
	return connection.Redacted()
}

func viewsFor(connections []domain.Connection, userID string) []domain.Connection {
	out := make([]domain.Connection, 0, len(connections))
	for _, connection := range connections {
		out = append(out, viewFor(connection, userID))
	}
	return out
}
