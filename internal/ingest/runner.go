package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"musicstore/internal/store"
)

// JobStore is the status persistence surface the runner writes through.
type JobStore interface {
	CreateJob(ctx context.Context, id string) error
	UpdateJobProgress(ctx context.Context, id string, status store.JobStatus, message string) error
	FinishJob(ctx context.Context, id string, status store.JobStatus, message string, albumsAdded, tracksAdded int) error
	JobByID(ctx context.Context, id string) (store.Job, error)
}

const queueDepth = 16

// ErrRunnerClosed is returned by Submit once Close has been called.
var ErrRunnerClosed = errors.New("runner is closed")

type submission struct {
	id   string
	data []byte
}

// Runner executes archive ingestion asynchronously. Submitted archives
// queue as PENDING jobs and a fixed pool of workers drains them; each job
// has a single status writer for its whole lifetime.
type Runner struct {
	jobs     JobStore
	unpacker *Unpacker
	log      zerolog.Logger
	queue    chan submission
	group    *errgroup.Group

	mu     sync.Mutex
	closed bool
}

// NewRunner starts the worker pool. The context bounds the workers'
// lifetime: cancelling it fails in-flight jobs and stops the pool.
func NewRunner(ctx context.Context, jobs JobStore, unpacker *Unpacker, log zerolog.Logger, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}

	r := &Runner{
		jobs:     jobs,
		unpacker: unpacker,
		log:      log,
		queue:    make(chan submission, queueDepth),
	}

	group, ctx := errgroup.WithContext(ctx)
	r.group = group
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			r.work(ctx)
			return nil
		})
	}

	return r
}

// Submit records a new pending job for the archive bytes and returns its id
// without waiting for processing. Blocks only when the queue is full.
// Returns ErrRunnerClosed after Close.
func (r *Runner) Submit(ctx context.Context, data []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrRunnerClosed
	}

	id := uuid.NewString()

	if err := r.jobs.CreateJob(ctx, id); err != nil {
		return "", err
	}

	select {
	case r.queue <- submission{id: id, data: data}:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Poll returns the job's current status, or store.ErrJobNotFound.
func (r *Runner) Poll(ctx context.Context, id string) (store.Job, error) {
	return r.jobs.JobByID(ctx, id)
}

// Close stops accepting submissions and waits for queued jobs to finish.
// It is safe to call more than once.
func (r *Runner) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	return r.group.Wait()
}

func (r *Runner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sub, ok := <-r.queue:
			if !ok {
				return
			}
			r.run(ctx, sub)
		}
	}
}

func (r *Runner) run(ctx context.Context, sub submission) {
	log := r.log.With().Str("job_id", sub.id).Logger()

	archive, err := OpenZip(sub.data)
	if err != nil {
		r.finish(sub.id, store.JobFailed, err.Error(), Summary{})
		log.Warn().Err(err).Msg("archive rejected")
		return
	}

	r.setProgress(sub.id, "unpacking archive")

	summary, err := r.unpacker.Unpack(ctx, archive, func(processed, total int, name string) {
		r.setProgress(sub.id, fmt.Sprintf("processing entry %d/%d: %s", processed, total, name))
	})
	if err != nil {
		// Earlier entries stay; the counts report the partial progress.
		r.finish(sub.id, store.JobFailed, err.Error(), summary)
		log.Warn().Err(err).Int("tracks_added", summary.TracksAdded).Msg("ingestion failed")
		return
	}

	message := fmt.Sprintf("added %d albums and %d tracks", summary.AlbumsAdded, summary.TracksAdded)
	r.finish(sub.id, store.JobSucceeded, message, summary)
	log.Info().Int("albums_added", summary.AlbumsAdded).Int("tracks_added", summary.TracksAdded).Msg("ingestion succeeded")
}

func (r *Runner) setProgress(id, message string) {
	// Status writes use a fresh context so a cancelled job still records
	// its terminal state instead of silently staying UNPACKING.
	if err := r.jobs.UpdateJobProgress(context.Background(), id, store.JobUnpacking, message); err != nil {
		r.log.Error().Err(err).Str("job_id", id).Msg("job progress update failed")
	}
}

func (r *Runner) finish(id string, status store.JobStatus, message string, summary Summary) {
	if err := r.jobs.FinishJob(context.Background(), id, status, message, summary.AlbumsAdded, summary.TracksAdded); err != nil {
		r.log.Error().Err(err).Str("job_id", id).Msg("job finish update failed")
	}
}
