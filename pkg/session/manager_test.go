package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/lendflow/pkg/adapters/memory"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/aretw0/lendflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s *SlowStore) Save(ctx context.Context, id string, sess *domain.Session) error {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Save(ctx, id, sess)
}

func (s *SlowStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Load(ctx, id)
}

func TestManager_UpdateSerializes(t *testing.T) {
	manager := session.NewManager(&SlowStore{memory.NewStore()})
	ctx := context.Background()
	id := "race-test"
	writers := 20

	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			_, err := manager.Update(ctx, id, func(_ context.Context, s *domain.Session) error {
				s.Append(domain.Message{Role: domain.RoleUser, Content: fmt.Sprintf("msg %d", i)})
				return nil
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	s, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, s.History, writers, "Every read-modify-write must survive")
	assert.Zero(t, manager.ActiveLocks())
}

func TestManager_LoadOrStart(t *testing.T) {
	store := &SlowStore{memory.NewStore()}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "atomic-init"

	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			s, err := manager.LoadOrStart(ctx, id)
			if err != nil {
				return err
			}
			if s.Stage != domain.StageEngagement {
				return fmt.Errorf("unexpected stage %s", s.Stage)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	ids, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func TestManager_UpdateFailureDoesNotSave(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	_, err := manager.Update(ctx, "c1", func(_ context.Context, s *domain.Session) error {
		s.Stage = domain.StageSanction
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = manager.Update(ctx, "c1", func(_ context.Context, s *domain.Session) error {
		s.Stage = domain.StageClosure
		return boom
	})
	assert.ErrorIs(t, err, boom)

	s, err := manager.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageSanction, s.Stage)
}

func TestManager_LoadMissing(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	_, err := manager.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_LockLifecycle(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		sid := fmt.Sprintf("session-%d", i)
		require.NoError(t, manager.Save(ctx, sid, domain.NewSession(sid)))
		require.NoError(t, manager.Delete(ctx, sid))
	}
	assert.Zero(t, manager.ActiveLocks(), "locks must be released after use")
}

type recordingLocker struct {
	mu       sync.Mutex
	locked   []string
	ttl      time.Duration
	unlocked int
	fail     error
	unlockFn func(context.Context) error
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	l.locked = append(l.locked, key)
	l.ttl = ttl
	return func(ctx context.Context) error {
		l.mu.Lock()
		l.unlocked++
		l.mu.Unlock()
		if l.unlockFn != nil {
			return l.unlockFn(ctx)
		}
		return nil
	}, nil
}

func TestManager_DistributedLock(t *testing.T) {
	ctx := context.Background()

	t.Run("Acquired and released", func(t *testing.T) {
		locker := &recordingLocker{}
		manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Minute))

		_, err := manager.LoadOrStart(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, locker.locked)
		assert.Equal(t, 1, locker.unlocked)
		assert.Equal(t, time.Minute, locker.ttl)
	})

	t.Run("Lock failure aborts", func(t *testing.T) {
		locker := &recordingLocker{fail: errors.New("redis down")}
		manager := session.NewManager(memory.NewStore(), session.WithLocker(locker))

		called := false
		err := manager.WithLock(ctx, "c1", func(context.Context) error {
			called = true
			return nil
		})
		assert.ErrorContains(t, err, "distributed lock")
		assert.False(t, called)
	})

	t.Run("Unlock failure is not fatal", func(t *testing.T) {
		locker := &recordingLocker{unlockFn: func(context.Context) error { return errors.New("gone") }}
		manager := session.NewManager(memory.NewStore(), session.WithLocker(locker))
		assert.NoError(t, manager.WithLock(ctx, "c1", func(context.Context) error { return nil }))
	})

	t.Run("Canceled context", func(t *testing.T) {
		manager := session.NewManager(memory.NewStore())
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := manager.WithLock(cctx, "c1", func(context.Context) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
