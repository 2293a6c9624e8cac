package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
)

type memAuditRepo struct {
	mu     sync.Mutex
	events []domain.AuthEvent
	err    error
	block  chan struct{}
}

func (r *memAuditRepo) InsertAuthEvent(_ context.Context, e domain.AuthEvent) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *memAuditRepo) snapshot() []domain.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuthEvent(nil), r.events...)
}

func TestDispatcher_PersistsInOrderPerUser(t *testing.T) {
	repo := &memAuditRepo{}
	d := NewDispatcher(4, repo, zerolog.Nop())
	d.Start(context.Background())

	kinds := []domain.AuthEventKind{domain.EventLoginFailed, domain.EventLoginFailed, domain.EventLoginSucceeded}
	for _, k := range kinds {
		d.Record(domain.AuthEvent{Kind: k, Username: "alice", At: time.Now()})
	}
	d.Record(domain.AuthEvent{Kind: domain.EventRegistered, Username: "bob", At: time.Now()})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var alice []domain.AuthEventKind
	total := 0
	for _, e := range repo.snapshot() {
		total++
		if e.Username == "alice" {
			alice = append(alice, e.Kind)
		}
	}
	if total != 4 {
		t.Fatalf("expected 4 persisted events, got %d", total)
	}
	for i := range kinds {
		if alice[i] != kinds[i] {
			t.Fatalf("alice events out of order: %v", alice)
		}
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	repo := &memAuditRepo{block: make(chan struct{})}
	d := NewDispatcher(1, repo, zerolog.Nop())
	d.Start(context.Background())

	done := make(chan struct{})
	go func() {
		// One event is held by the blocked worker, channelBuffer fill the
		// queue, and the rest must be dropped without blocking.
		for i := 0; i < channelBuffer+10; i++ {
			d.Record(domain.AuthEvent{Kind: domain.EventLoginFailed, Username: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Record blocked on a full queue")
	}
	close(repo.block)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := len(repo.snapshot()); n > channelBuffer+1 || n == 0 {
		t.Fatalf("unexpected persisted count %d", n)
	}
}

func TestDispatcher_WriteFailureIsContained(t *testing.T) {
	repo := &memAuditRepo{err: errors.New("mongo down")}
	d := NewDispatcher(2, repo, zerolog.Nop())
	d.Start(context.Background())

	d.Record(domain.AuthEvent{Kind: domain.EventLoginFailed, Username: "x"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Recording after Close is a no-op, not a panic.
	d.Record(domain.AuthEvent{Kind: domain.EventLoginFailed, Username: "x"})
}

func TestDispatcher_ShardIndexStable(t *testing.T) {
	d := NewDispatcher(8, &memAuditRepo{}, zerolog.Nop())
	first := d.shardIndex("alice")
	for i := 0; i < 10; i++ {
		if d.shardIndex("alice") != first {
			t.Fatalf("shard index not deterministic")
		}
	}
	if first < 0 || first >= 8 {
		t.Fatalf("shard index out of range: %d", first)
	}
}
