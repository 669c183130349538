// Package indexer drives incremental, idempotent catch-up of snitch channels
// from the chat platform's message history. One job runs per guild at a time;
// distinct guilds index in parallel with no shared locking.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/tybug/snitchvisbot/internal/config"
	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/parser"
	"github.com/tybug/snitchvisbot/internal/platform"
	"github.com/tybug/snitchvisbot/internal/repository"
)

// Indexer feeds the registry and event store from channel history.
type Indexer struct {
	repo   repository.Repository
	chat   platform.Client
	parser *parser.Parser
	cfg    config.IndexerConfig
	log    *zap.Logger

	mu   sync.Mutex
	jobs map[int64]*Job
}

// New creates an indexer.
func New(repo repository.Repository, chat platform.Client, cfg config.IndexerConfig, log *zap.Logger) *Indexer {
	return &Indexer{
		repo:   repo,
		chat:   chat,
		parser: parser.New(),
		cfg:    cfg,
		log:    log,
		jobs:   make(map[int64]*Job),
	}
}

// Index starts an incremental catch-up for the guild, or joins the job
// already in flight. The returned job runs detached; use Job.Wait to block
// on it.
func (ix *Indexer) Index(ctx context.Context, guildID int64) (*Job, error) {
	ix.mu.Lock()
	if job, ok := ix.jobs[guildID]; ok {
		ix.mu.Unlock()
		return job, nil
	}
	job := ix.startLocked(guildID, Incremental)
	ix.mu.Unlock()
	return job, nil
}

// FullReindex wipes the guild's index and rebuilds it from the start of
// history. It fails closed without the confirmation flag. An incremental job
// already running for the guild is cancelled at its next batch boundary
// before the reindex starts; a full reindex already running is joined.
func (ix *Indexer) FullReindex(ctx context.Context, guildID int64, confirm bool) (*Job, error) {
	if !confirm {
		return nil, domain.ErrConfirmationRequired
	}

	for {
		ix.mu.Lock()
		existing, ok := ix.jobs[guildID]
		if !ok {
			job := ix.startLocked(guildID, FullReindex)
			ix.mu.Unlock()
			return job, nil
		}
		if existing.Kind == FullReindex {
			ix.mu.Unlock()
			return existing, nil
		}
		ix.mu.Unlock()

		ix.log.Info("Cancelling incremental job for full reindex",
			zap.Int64("guild_id", guildID), zap.String("job_id", existing.ID))
		existing.Cancel()
		select {
		case <-existing.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// startLocked registers and launches a job. Caller holds ix.mu.
func (ix *Indexer) startLocked(guildID int64, kind Kind) *Job {
	jobCtx, cancel := context.WithCancel(context.Background())
	job := newJob(guildID, kind, cancel)
	ix.jobs[guildID] = job

	go func() {
		err := ix.run(jobCtx, job)
		ix.mu.Lock()
		delete(ix.jobs, guildID)
		ix.mu.Unlock()
		job.finish(err)

		if err != nil && !errors.Is(err, context.Canceled) {
			ix.log.Error("Indexing job failed",
				zap.Int64("guild_id", guildID),
				zap.String("job_id", job.ID),
				zap.Error(err))
		}
	}()

	return job
}

func (ix *Indexer) run(ctx context.Context, job *Job) error {
	ix.log.Info("Indexing job starting",
		zap.Int64("guild_id", job.GuildID),
		zap.String("job_id", job.ID),
		zap.String("kind", job.Kind.String()))

	if job.Kind == FullReindex {
		if err := ix.repo.WipeGuild(ctx, job.GuildID); err != nil {
			return fmt.Errorf("failed to wipe guild before reindex: %w", err)
		}
	}

	channels, err := ix.repo.ListChannels(ctx, job.GuildID)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	tmpl, err := ix.guildTemplate(ctx, job.GuildID)
	if err != nil {
		return err
	}

	for _, ch := range channels {
		if err := ix.indexChannel(ctx, job, ch, tmpl); err != nil {
			return err
		}
	}

	ix.log.Info("Indexing job finished",
		zap.Int64("guild_id", job.GuildID),
		zap.String("job_id", job.ID),
		zap.Int("events_added", job.EventsAdded()))
	return nil
}

func (ix *Indexer) indexChannel(ctx context.Context, job *Job, ch domain.Channel, tmpl *domain.Template) error {
	cursor := int64(0)
	if job.Kind == Incremental && ch.LastIndexedID != nil {
		cursor = *ch.LastIndexedID
	}

	ref := platform.ChannelRef{GuildID: ch.GuildID, ChannelID: ch.ID}

	for {
		// cancellation is cooperative, checked only at batch boundaries so
		// a cancel never leaves a half-written batch
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := ix.fetchWithRetry(ctx, ref, cursor)
		if err != nil {
			return fmt.Errorf("failed to fetch history for channel %d: %w", ch.ID, err)
		}
		if len(messages) == 0 {
			return nil
		}

		batch := repository.IndexBatch{
			GuildID:   ch.GuildID,
			ChannelID: ch.ID,
			Cursor:    messages[len(messages)-1].ID,
		}
		for _, msg := range messages {
			if ev := ix.parser.Parse(msg, tmpl); ev != nil {
				batch.Events = append(batch.Events, ev)
			}
		}

		inserted, err := ix.repo.CommitBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to commit batch for channel %d: %w", ch.ID, err)
		}
		job.addEvents(inserted)
		cursor = batch.Cursor
	}
}

// fetchWithRetry wraps the platform fetch in capped exponential backoff.
// The retry budget exhausting surfaces the fetch error; the cursor has not
// advanced, so a later run resumes exactly where this one stopped.
func (ix *Indexer) fetchWithRetry(ctx context.Context, ref platform.ChannelRef, after int64) ([]platform.Message, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ix.cfg.InitialBackoff
	b.MaxInterval = ix.cfg.MaxBackoff

	var messages []platform.Message
	operation := func() error {
		var err error
		messages, err = ix.chat.FetchHistory(ctx, ref, after, ix.cfg.BatchSize)
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, ix.cfg.MaxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// IndexMessage indexes a single just-arrived message. Only messages in
// registered channels that have already been fully indexed are taken;
// otherwise the message is left for the next catch-up run so the cursor
// never jumps past unindexed history.
func (ix *Indexer) IndexMessage(ctx context.Context, msg platform.Message) error {
	ch, err := ix.repo.GetChannel(ctx, msg.ChannelID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up channel: %w", err)
	}
	if ch.LastIndexedID == nil || msg.ID <= *ch.LastIndexedID {
		return nil
	}

	tmpl, err := ix.guildTemplate(ctx, msg.GuildID)
	if err != nil {
		return err
	}

	ev := ix.parser.Parse(msg, tmpl)
	if ev == nil {
		return nil
	}

	_, err = ix.repo.CommitBatch(ctx, repository.IndexBatch{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		Events:    []*parser.ParsedEvent{ev},
		Cursor:    msg.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to commit live message: %w", err)
	}
	return nil
}

// DetectChannels probes the given candidate channels' recent messages and
// returns those that look like snitch channels.
func (ix *Indexer) DetectChannels(ctx context.Context, guildID int64, candidates []int64) ([]int64, error) {
	tmpl, err := ix.guildTemplate(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var detected []int64
	for _, channelID := range candidates {
		ref := platform.ChannelRef{GuildID: guildID, ChannelID: channelID}
		messages, err := ix.chat.FetchRecent(ctx, ref, ix.cfg.DetectProbeDepth)
		if err != nil {
			// a channel we cannot read is simply not a candidate
			ix.log.Warn("Failed to probe channel",
				zap.Int64("channel_id", channelID), zap.Error(err))
			continue
		}
		for _, msg := range messages {
			if ix.parser.Parse(msg, tmpl) != nil {
				detected = append(detected, channelID)
				break
			}
		}
	}
	return detected, nil
}

func (ix *Indexer) guildTemplate(ctx context.Context, guildID int64) (*domain.Template, error) {
	tmpl, err := ix.repo.GetTemplate(ctx, guildID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load guild template: %w", err)
	}
	return tmpl, nil
}

// Running reports the job currently in flight for the guild, if any.
func (ix *Indexer) Running(guildID int64) (*Job, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	job, ok := ix.jobs[guildID]
	return job, ok
}
