package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	emaildomain "clustermail-backend/internal/email/domain"
)

// ConflictMode selects what an upsert does when the message ID is already
// stored. The two semantics are deliberately distinct: ingest paths keep the
// existing row, user-initiated refresh replaces it.
type ConflictMode int

const (
	KeepExisting ConflictMode = iota
	Replace
)

// EmailRepository is the persistence gateway for canonical messages. Message
// rows are upsert-only; the pipeline never deletes them.
type EmailRepository interface {
	// Upsert inserts the message, resolving an ID conflict per mode.
	Upsert(ctx context.Context, userEmail string, email *emaildomain.Email, mode ConflictMode) error
	// UpsertBatch upserts a batch of messages with a single conflict mode.
	UpsertBatch(ctx context.Context, userEmail string, emails []*emaildomain.Email, mode ConflictMode) error
	// GetByID returns the stored message, or nil if absent.
	GetByID(ctx context.Context, userEmail, emailID string) (*emaildomain.Email, error)
	// SaveSummary writes the cached summary onto the message row.
	SaveSummary(ctx context.Context, userEmail, emailID, summary string) error
	// GetSummary returns the cached summary, or nil if none is stored.
	GetSummary(ctx context.Context, userEmail, emailID string) (*string, error)
}

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{db: db}
}

// replaceColumns is what a Replace-mode upsert overwrites. Summary is
// excluded: a refresh of the raw message must not discard a cached summary.
var replaceColumns = []string{"sender_email", "receiver_emails", "subject", "body", "date_sent", "updated_at"}

func (r *emailRepository) Upsert(ctx context.Context, userEmail string, email *emaildomain.Email, mode ConflictMode) error {
	row := *email
	row.UserEmail = userEmail
	return r.db.WithContext(ctx).Clauses(conflictClause(mode)).Create(&row).Error
}

func (r *emailRepository) UpsertBatch(ctx context.Context, userEmail string, emails []*emaildomain.Email, mode ConflictMode) error {
	if len(emails) == 0 {
		return nil
	}

	rows := make([]emaildomain.Email, len(emails))
	for i, email := range emails {
		rows[i] = *email
		rows[i].UserEmail = userEmail
	}
	return r.db.WithContext(ctx).Clauses(conflictClause(mode)).Create(&rows).Error
}

func conflictClause(mode ConflictMode) clause.OnConflict {
	conflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "user_email"}, {Name: "id"}},
	}
	if mode == Replace {
		conflict.DoUpdates = clause.AssignmentColumns(replaceColumns)
	} else {
		conflict.DoNothing = true
	}
	return conflict
}

func (r *emailRepository) GetByID(ctx context.Context, userEmail, emailID string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.WithContext(ctx).
		Where("user_email = ? AND id = ?", userEmail, emailID).
		First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) SaveSummary(ctx context.Context, userEmail, emailID, summary string) error {
	return r.db.WithContext(ctx).
		Model(&emaildomain.Email{}).
		Where("user_email = ? AND id = ?", userEmail, emailID).
		Update("summary", summary).Error
}

func (r *emailRepository) GetSummary(ctx context.Context, userEmail, emailID string) (*string, error) {
	email, err := r.GetByID(ctx, userEmail, emailID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, nil
	}
	return email.Summary, nil
}
