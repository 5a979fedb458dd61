package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	emaildomain "clustermail-backend/internal/email/domain"
	"clustermail-backend/internal/email/repository"
)

// WindowFetcher is the bulk fetch path: list, fetch and normalize every
// message inside the lookback window.
type WindowFetcher interface {
	FetchWindow(ctx context.Context, accessToken string, lookbackDays int) ([]*emaildomain.Email, error)
}

type SyncUsecase interface {
	// RefreshEmails pulls the user's recent messages into the local store.
	// With replace set, already-stored rows are overwritten with the fresh
	// provider content; otherwise existing rows are kept untouched. Returns
	// the number of messages fetched.
	RefreshEmails(ctx context.Context, userEmail, accessToken string, lookbackDays int, replace bool) (int, error)
}

type syncUsecase struct {
	emailRepo repository.EmailRepository
	fetcher   WindowFetcher
	summaries *SummaryWorker
	logger    *zap.Logger
}

// NewSyncUsecase wires the sync path. summaries may be nil when summary
// enrichment is disabled.
func NewSyncUsecase(emailRepo repository.EmailRepository, fetcher WindowFetcher, summaries *SummaryWorker, logger *zap.Logger) SyncUsecase {
	return &syncUsecase{
		emailRepo: emailRepo,
		fetcher:   fetcher,
		summaries: summaries,
		logger:    logger,
	}
}

func (u *syncUsecase) RefreshEmails(ctx context.Context, userEmail, accessToken string, lookbackDays int, replace bool) (int, error) {
	emails, err := u.fetcher.FetchWindow(ctx, accessToken, lookbackDays)
	if err != nil {
		return 0, fmt.Errorf("fetching mailbox window: %w", err)
	}

	mode := repository.KeepExisting
	if replace {
		mode = repository.Replace
	}
	if err := u.emailRepo.UpsertBatch(ctx, userEmail, emails, mode); err != nil {
		return 0, fmt.Errorf("storing fetched messages: %w", err)
	}

	if u.summaries != nil {
		queued := u.summaries.QueueEmails(userEmail, emails)
		u.logger.Info("queued summaries",
			zap.String("user", userEmail), zap.Int("queued", queued))
	}

	u.logger.Info("mailbox sync complete",
		zap.String("user", userEmail),
		zap.Int("fetched", len(emails)),
		zap.Int("lookback_days", lookbackDays))

	return len(emails), nil
}
