/*
Package jobqueue provides a River-based job queue that recomputes thread snapshots
after a conversation changes.

For configuration options and retry policies, see queue_config.go.
*/
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog/log"

	"github.com/chatthread/internal/store"
	"github.com/chatthread/pkg/chattree"
)

// SnapshotJobArgs represents the arguments for a thread snapshot job
type SnapshotJobArgs struct {
	ConversationID string `json:"conversation_id"`
}

// Kind returns the job kind for River
func (SnapshotJobArgs) Kind() string {
	return "thread_snapshot"
}

// SnapshotStore is the part of the store the worker needs.
type SnapshotStore interface {
	ListMessages(ctx context.Context, conversationID string) ([]chattree.Message, error)
	SaveSnapshot(ctx context.Context, snap *store.Snapshot) error
}

// SnapshotWorker handles thread snapshot jobs
type SnapshotWorker struct {
	river.WorkerDefaults[SnapshotJobArgs]
	store  SnapshotStore
	config *QueueConfig
	now    func() time.Time
}

// ComputeSnapshot builds the forest, extracts the latest thread and finds its last
// valid answer.
func ComputeSnapshot(conversationID string, msgs []chattree.Message, at time.Time) *store.Snapshot {
	thread := chattree.ThreadMessages(chattree.BuildChatItemTree(msgs), "")
	snap := &store.Snapshot{
		ConversationID: conversationID,
		Thread:         thread,
		MessageCount:   len(msgs),
		ComputedAt:     at,
	}
	if last, ok := chattree.LastAnswer(thread); ok {
		snap.LastAnswerID = last.ID
	}
	return snap
}

// Work implements river.Worker
func (w *SnapshotWorker) Work(ctx context.Context, job *river.Job[SnapshotJobArgs]) error {
	id := job.Args.ConversationID
	log.Debug().Str("conversation_id", id).Int("attempt", job.Attempt).Msg("Computing thread snapshot")

	msgs, err := w.store.ListMessages(ctx, id)
	if errors.Is(err, store.ErrConversationNotFound) {
		// Deleted before the job ran; retrying cannot help.
		return river.JobCancel(err)
	}
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	snap := ComputeSnapshot(id, msgs, w.now())
	if err := w.store.SaveSnapshot(ctx, snap); err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			return river.JobCancel(err)
		}
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	log.Info().
		Str("conversation_id", id).
		Int("messages", snap.MessageCount).
		Int("thread_length", len(snap.Thread)).
		Str("last_answer_id", snap.LastAnswerID).
		Msg("Thread snapshot updated")
	return nil
}

// Timeout bounds a single snapshot computation.
func (w *SnapshotWorker) Timeout(*river.Job[SnapshotJobArgs]) time.Duration {
	return w.config.JobTimeout
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config *QueueConfig
}

// NewJobQueue connects a pgx pool, applies River's migrations and creates the client.
func NewJobQueue(ctx context.Context, databaseURL string, config *QueueConfig, snapshots SnapshotStore) (*JobQueue, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	driver := riverpgxv5.New(pool)
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate River schema: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &SnapshotWorker{store: snapshots, config: config, now: time.Now})

	client, err := river.NewClient(driver, &river.Config{
		Queues:      config.RiverQueueConfig(),
		Workers:     workers,
		MaxAttempts: config.MaxRetries + 1,
		RetryPolicy: config.RetryPolicy,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{
		client: client,
		pool:   pool,
		config: config,
	}, nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers and closes the pool.
func (jq *JobQueue) Stop(ctx context.Context) error {
	defer jq.pool.Close()
	return jq.client.Stop(ctx)
}

// EnqueueSnapshot queues a snapshot recomputation. Snapshot jobs are idempotent,
// so duplicates only cost a recomputation.
func (jq *JobQueue) EnqueueSnapshot(ctx context.Context, conversationID string) error {
	_, err := jq.client.Insert(ctx, SnapshotJobArgs{ConversationID: conversationID}, nil)
	if err != nil {
		return fmt.Errorf("failed to queue snapshot job: %w", err)
	}
	return nil
}
