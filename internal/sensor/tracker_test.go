package sensor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTokenStore struct {
	token   string
	failSet bool
}

func (s *fakeTokenStore) LastToken(ctx context.Context) (string, error) {
	return s.token, nil
}

func (s *fakeTokenStore) SetLastToken(ctx context.Context, token string) error {
	if s.failSet {
		return errors.New("store down")
	}
	s.token = token
	return nil
}

func TestTrackerClassification(t *testing.T) {
	tr := NewTracker(&fakeTokenStore{})

	// Пустой токен всегда DUPLICATE: битый payload не должен попасть
	// в дневную статистику
	require.False(t, tr.IsNew(""))

	require.True(t, tr.IsNew("a1"))
	require.NoError(t, tr.Advance(context.Background(), "a1"))

	require.False(t, tr.IsNew("a1"))
	require.True(t, tr.IsNew("a2"))
}

func TestTrackerHydrateSurvivesRestart(t *testing.T) {
	store := &fakeTokenStore{token: "a7"}

	tr := NewTracker(store)
	require.NoError(t, tr.Hydrate(context.Background()))

	require.False(t, tr.IsNew("a7"))
	require.True(t, tr.IsNew("a8"))
}

func TestTrackerAdvancePersistsBeforeMemory(t *testing.T) {
	store := &fakeTokenStore{failSet: true}
	tr := NewTracker(store)

	require.True(t, tr.IsNew("a1"))
	require.Error(t, tr.Advance(context.Background(), "a1"))

	// Запись упала — токен в памяти не сдвинулся, следующий цикл
	// повторит тот же снапшот
	require.True(t, tr.IsNew("a1"))
}
