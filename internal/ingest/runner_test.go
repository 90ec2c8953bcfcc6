package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"musicstore/internal/store"
)

type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]store.Job
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: map[string]store.Job{}}
}

func (m *memJobStore) CreateJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id] = store.Job{ID: id, Status: store.JobPending}
	return nil
}

func (m *memJobStore) UpdateJobProgress(_ context.Context, id string, status store.JobStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status.Terminal() {
		return store.ErrJobNotFound
	}
	j.Status = status
	j.Message = message
	m.jobs[id] = j
	return nil
}

func (m *memJobStore) FinishJob(_ context.Context, id string, status store.JobStatus, message string, albumsAdded, tracksAdded int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status.Terminal() {
		return store.ErrJobNotFound
	}
	j.Status = status
	j.Message = message
	j.AlbumsAdded = albumsAdded
	j.TracksAdded = tracksAdded
	m.jobs[id] = j
	return nil
}

func (m *memJobStore) JobByID(_ context.Context, id string) (store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return store.Job{}, store.ErrJobNotFound
	}
	return j, nil
}

func newTestRunner(t *testing.T, jobs JobStore, catalog Catalog, workers int) *Runner {
	t.Helper()
	unpacker := NewUnpacker(catalog, Config{DefaultPriceCents: 99})
	return NewRunner(context.Background(), jobs, unpacker, zerolog.Nop(), workers)
}

func TestRunnerLifecycle(t *testing.T) {
	data := buildZip(t, map[string]string{
		"Artist - Album/Song": "audio",
		"Solo":                "more audio",
	}, "Artist - Album/Song", "Solo")

	jobs := newMemJobStore()
	runner := newTestRunner(t, jobs, newFakeCatalog(), 1)

	id, err := runner.Submit(context.Background(), data)
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	// Immediately after submission the job is pending or already picked up.
	job, err := runner.Poll(context.Background(), id)
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if job.Status.Terminal() && job.Status != store.JobSucceeded {
		t.Fatalf("unexpected early terminal status %q", job.Status)
	}

	if err := runner.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	job, err = runner.Poll(context.Background(), id)
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if job.Status != store.JobSucceeded {
		t.Fatalf("expected succeeded, got %q (%s)", job.Status, job.Message)
	}
	if job.AlbumsAdded != 1 || job.TracksAdded != 2 {
		t.Fatalf("unexpected counts: %+v", job)
	}

	// Terminal results are stable across repeated polls.
	again, err := runner.Poll(context.Background(), id)
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if again != job {
		t.Fatalf("terminal poll changed: %+v vs %+v", again, job)
	}
}

func TestRunnerFailsOnMalformedArchive(t *testing.T) {
	jobs := newMemJobStore()
	runner := newTestRunner(t, jobs, newFakeCatalog(), 1)

	id, err := runner.Submit(context.Background(), []byte("not an archive"))
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if err := runner.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	job, err := runner.Poll(context.Background(), id)
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if job.Status != store.JobFailed {
		t.Fatalf("expected failed, got %q", job.Status)
	}
	if !strings.Contains(job.Message, "not a zip") {
		t.Fatalf("failure message should name the cause, got %q", job.Message)
	}
}

func TestRunnerFailsOnNestedDirectories(t *testing.T) {
	data := buildZip(t, map[string]string{
		"a/b/deep": "x",
	}, "a/b/deep")

	jobs := newMemJobStore()
	catalog := newFakeCatalog()
	runner := newTestRunner(t, jobs, catalog, 1)

	id, err := runner.Submit(context.Background(), data)
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if err := runner.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	job, err := runner.Poll(context.Background(), id)
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if job.Status != store.JobFailed {
		t.Fatalf("expected failed, got %q", job.Status)
	}
	if len(catalog.tracks) != 0 {
		t.Fatalf("rejected archive must not write to the catalog")
	}
}

func TestRunnerPollUnknownJob(t *testing.T) {
	runner := newTestRunner(t, newMemJobStore(), newFakeCatalog(), 1)
	defer runner.Close()

	if _, err := runner.Poll(context.Background(), "no-such-job"); !errors.Is(err, store.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestRunnerProcessesConcurrentArchives(t *testing.T) {
	first := buildZip(t, map[string]string{"One": "1"}, "One")
	second := buildZip(t, map[string]string{"Two": "2"}, "Two")

	jobs := newMemJobStore()
	runner := newTestRunner(t, jobs, newFakeCatalog(), 2)

	firstID, err := runner.Submit(context.Background(), first)
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	secondID, err := runner.Submit(context.Background(), second)
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if err := runner.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	for _, id := range []string{firstID, secondID} {
		job, err := runner.Poll(context.Background(), id)
		if err != nil {
			t.Fatalf("Poll error: %v", err)
		}
		if job.Status != store.JobSucceeded {
			t.Fatalf("job %s: expected succeeded, got %q (%s)", id, job.Status, job.Message)
		}
	}
}

func TestRunnerRejectsSubmitAfterClose(t *testing.T) {
	jobs := newMemJobStore()
	runner := newTestRunner(t, jobs, newFakeCatalog(), 1)

	if err := runner.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := runner.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}

	data := buildZip(t, map[string]string{"Solo": "audio"}, "Solo")
	if _, err := runner.Submit(context.Background(), data); !errors.Is(err, ErrRunnerClosed) {
		t.Fatalf("expected ErrRunnerClosed, got %v", err)
	}
}
