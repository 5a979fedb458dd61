package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	emaildomain "clustermail-backend/internal/email/domain"
	"clustermail-backend/internal/email/repository"
)

// SummaryJob is one pending summarization for a stored message.
type SummaryJob struct {
	UserEmail string
	EmailID   string
	Subject   string
	Body      string
}

// Summarizer produces a short semantic summary for one message.
type Summarizer interface {
	Summarize(ctx context.Context, subject, body string) (string, error)
}

// SummaryWorker generates summaries in the background. The cache check runs
// per job so a message is summarized at most once; the external model is
// billed per call.
type SummaryWorker struct {
	emailRepo   repository.EmailRepository
	summarizer  Summarizer
	jobQueue    chan SummaryJob
	workerCount int
	workerWg    sync.WaitGroup
	started     bool
	mu          sync.Mutex
	logger      *zap.Logger
}

func NewSummaryWorker(emailRepo repository.EmailRepository, summarizer Summarizer, workerCount int, logger *zap.Logger) *SummaryWorker {
	if workerCount <= 0 {
		workerCount = 3
	}
	return &SummaryWorker{
		emailRepo:   emailRepo,
		summarizer:  summarizer,
		jobQueue:    make(chan SummaryJob, 500),
		workerCount: workerCount,
		logger:      logger,
	}
}

func (w *SummaryWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}
	for i := 0; i < w.workerCount; i++ {
		w.workerWg.Add(1)
		go w.worker()
	}
	w.started = true
	w.logger.Info("summary workers started", zap.Int("count", w.workerCount))
}

func (w *SummaryWorker) Stop() {
	close(w.jobQueue)
	w.workerWg.Wait()
	w.logger.Info("summary workers stopped")
}

func (w *SummaryWorker) worker() {
	defer w.workerWg.Done()
	for job := range w.jobQueue {
		w.processJob(job)
	}
}

func (w *SummaryWorker) processJob(job SummaryJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Cache first: never pay for the same message twice.
	existing, err := w.emailRepo.GetSummary(ctx, job.UserEmail, job.EmailID)
	if err != nil {
		w.logger.Warn("summary cache check failed",
			zap.String("email_id", job.EmailID), zap.Error(err))
		return
	}
	if existing != nil {
		return
	}

	summary, err := w.summarizer.Summarize(ctx, job.Subject, job.Body)
	if err != nil {
		w.logger.Warn("summarization failed",
			zap.String("email_id", job.EmailID), zap.Error(err))
		return
	}

	if err := w.emailRepo.SaveSummary(ctx, job.UserEmail, job.EmailID, summary); err != nil {
		w.logger.Warn("could not persist summary",
			zap.String("email_id", job.EmailID), zap.Error(err))
	}
}

// QueueJob enqueues one job without blocking; returns false if the queue is
// full.
func (w *SummaryWorker) QueueJob(job SummaryJob) bool {
	select {
	case w.jobQueue <- job:
		return true
	default:
		return false
	}
}

// QueueEmails enqueues summarization for messages that do not carry a
// summary yet. Returns how many jobs were queued.
func (w *SummaryWorker) QueueEmails(userEmail string, emails []*emaildomain.Email) int {
	queued := 0
	for _, email := range emails {
		if email.Summary != nil {
			continue
		}
		job := SummaryJob{
			UserEmail: userEmail,
			EmailID:   email.ID,
			Subject:   email.Subject,
			Body:      email.Body,
		}
		if w.QueueJob(job) {
			queued++
		}
	}
	return queued
}
