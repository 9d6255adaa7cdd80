package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRecoveryInterval is how long a failed primary is bypassed before it is retried.
const DefaultRecoveryInterval = time.Minute

// FailoverStore uses a primary store and switches to the fallback while the primary is down.
// Sessions written to the fallback during an outage are moved back once the primary answers again.
type FailoverStore struct {
	primary  Store
	fallback Store
	logger   *zerolog.Logger

	isDown    atomic.Bool
	degraded  atomic.Bool // fallback may hold sessions newer than the primary
	mu        sync.Mutex
	lastCheck time.Time
	recovery  time.Duration
}

// NewFailoverStore creates a store that degrades from primary to fallback.
func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		recovery: DefaultRecoveryInterval,
	}
}

// WithRecoveryInterval sets how long a failed primary is bypassed.
func (f *FailoverStore) WithRecoveryInterval(d time.Duration) *FailoverStore {
	if d > 0 {
		f.recovery = d
	}
	return f
}

// usePrimary reports whether the primary should be tried for this call.
func (f *FailoverStore) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) > f.recovery {
		f.lastCheck = time.Now()
		return true
	}
	return false
}

func (f *FailoverStore) markDown(op string, err error) {
	if !f.isDown.Swap(true) {
		f.logger.Warn().Err(err).Str("op", op).Msg("primary session store failed, switching to fallback")
	}
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverStore) markUp() {
	if f.isDown.Swap(false) {
		f.logger.Info().Msg("primary session store recovered")
	}
}

// Get reads from the primary, falling back on infrastructure errors. After an
// outage the newer of the two copies wins and is written back to the primary.
func (f *FailoverStore) Get(ctx context.Context, id string) (*Session, error) {
	if !f.usePrimary() {
		return f.fallback.Get(ctx, id)
	}

	s, err := f.primary.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		f.markDown("get", err)
		return f.fallback.Get(ctx, id)
	}
	f.markUp()

	if err == nil && !f.degraded.Load() {
		return s, nil
	}

	fs, ferr := f.fallback.Get(ctx, id)
	if ferr != nil {
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	if s != nil && !fs.UpdatedAt.After(s.UpdatedAt) {
		return s, nil
	}

	f.promote(ctx, fs)
	return fs, nil
}

// promote copies a session saved during an outage back to the primary.
func (f *FailoverStore) promote(ctx context.Context, s *Session) {
	if err := f.primary.Save(ctx, s); err != nil {
		f.markDown("promote", err)
		return
	}
	if err := f.fallback.Delete(ctx, s.ID); err != nil {
		f.logger.Warn().Err(err).Str("session", s.ID).Msg("failed to drop promoted session from fallback")
	}
	f.logger.Info().Str("session", s.ID).Msg("session restored to primary store")
}

// Save writes to the primary, falling back on error.
func (f *FailoverStore) Save(ctx context.Context, s *Session) error {
	if f.usePrimary() {
		err := f.primary.Save(ctx, s)
		if err == nil {
			f.markUp()
			if f.degraded.Load() {
				_ = f.fallback.Delete(ctx, s.ID)
			}
			return nil
		}
		f.markDown("save", err)
	}
	if err := f.fallback.Save(ctx, s); err != nil {
		return err
	}
	f.degraded.Store(true)
	return nil
}

// Delete removes the session from both stores.
func (f *FailoverStore) Delete(ctx context.Context, id string) error {
	ferr := f.fallback.Delete(ctx, id)
	if f.usePrimary() {
		if err := f.primary.Delete(ctx, id); err != nil {
			f.markDown("delete", err)
		} else {
			f.markUp()
		}
	}
	return ferr
}
