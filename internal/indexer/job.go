package indexer

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Kind distinguishes an incremental catch-up from a full rebuild.
type Kind int

const (
	// Incremental indexes strictly after each channel's stored cursor.
	Incremental Kind = iota
	// FullReindex wipes the guild's index first and starts from the
	// beginning of history.
	FullReindex
)

func (k Kind) String() string {
	if k == FullReindex {
		return "full-reindex"
	}
	return "incremental"
}

// Job is one in-flight indexing run for a guild. Concurrent requests for the
// same guild join the existing job instead of starting a duplicate.
type Job struct {
	ID      string
	GuildID int64
	Kind    Kind

	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	eventsAdded int
	err         error
}

func newJob(guildID int64, kind Kind, cancel context.CancelFunc) *Job {
	return &Job{
		ID:      uuid.NewString(),
		GuildID: guildID,
		Kind:    kind,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Cancel requests cooperative cancellation. The job stops at the next batch
// boundary; already-committed batches are never rolled back.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait blocks until the job finishes or ctx expires, returning the job's
// error in the former case.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-j.done:
		return j.Err()
	}
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// EventsAdded returns the number of events committed so far.
func (j *Job) EventsAdded() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.eventsAdded
}

// Err returns the job's terminal error, nil while running or on success.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) addEvents(n int) {
	j.mu.Lock()
	j.eventsAdded += n
	j.mu.Unlock()
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
	close(j.done)
}
