package sensor

import (
	"context"
	"fmt"
	"sync"
)

// TokenStore персистентная запись последнего обработанного id
type TokenStore interface {
	LastToken(ctx context.Context) (string, error)
	SetLastToken(ctx context.Context, token string) error
}

// Tracker детектор смены показаний: сравнивает identity token снапшота
// с последним обработанным. Последний токен хранится и в памяти, и в
// хранилище, чтобы рестарт процесса не приводил к повторной обработке.
type Tracker struct {
	store TokenStore

	mu   sync.Mutex
	last string
}

// NewTracker создает детектор поверх персистентной записи токена
func NewTracker(store TokenStore) *Tracker {
	return &Tracker{store: store}
}

// Hydrate читает последний токен из хранилища при старте процесса
func (t *Tracker) Hydrate(ctx context.Context) error {
	token, err := t.store.LastToken(ctx)
	if err != nil {
		return fmt.Errorf("hydrate last token: %w", err)
	}

	t.mu.Lock()
	t.last = token
	t.mu.Unlock()
	return nil
}

// IsNew классифицирует снапшот. NEW — токен непустой и отличается от
// запомненного; пустой токен означает битый payload и всегда DUPLICATE,
// чтобы не портить дневную статистику.
func (t *Tracker) IsNew(token string) bool {
	if token == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return token != t.last
}

// Advance фиксирует токен как обработанный. Вызывается только после
// успешной записи бакета: если запись упала, токен остается прежним и
// следующий цикл повторит тот же снапшот (at-least-once).
func (t *Tracker) Advance(ctx context.Context, token string) error {
	if err := t.store.SetLastToken(ctx, token); err != nil {
		return fmt.Errorf("persist last token: %w", err)
	}

	t.mu.Lock()
	t.last = token
	t.mu.Unlock()
	return nil
}
