package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	groupdomain "clustermail-backend/internal/group/domain"
)

// ErrGroupNotFound is returned when a rename targets a group that does not
// exist for the user.
var ErrGroupNotFound = errors.New("group not found")

type GroupRepository interface {
	// HasGroups reports whether clustering has ever produced groups for the
	// user.
	HasGroups(ctx context.Context, userEmail string) (bool, error)
	// ListMemberships returns every (group, message) pair for the user,
	// ordered by group then message ID.
	ListMemberships(ctx context.Context, userEmail string) ([]groupdomain.Membership, error)
	// RenameGroup updates one group's name.
	RenameGroup(ctx context.Context, userEmail string, groupID int, newName string) error
	// AddMembership inserts a membership; adding an existing one is a no-op.
	AddMembership(ctx context.Context, userEmail string, groupID int, emailID string) error
	// EnsureClusterTriggered atomically records that the clustering job was
	// triggered for the user. Returns whether a marker already existed.
	EnsureClusterTriggered(ctx context.Context, userEmail string) (bool, error)
	// ClearClusterMarker removes the trigger marker so a failed trigger can
	// be retried by a later request.
	ClearClusterMarker(ctx context.Context, userEmail string) error
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) HasGroups(ctx context.Context, userEmail string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&groupdomain.Group{}).
		Where("user_email = ?", userEmail).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *groupRepository) ListMemberships(ctx context.Context, userEmail string) ([]groupdomain.Membership, error) {
	var memberships []groupdomain.Membership
	err := r.db.WithContext(ctx).
		Table("groups").
		Select("groups.group_id, groups.name, group_emails.email_id").
		Joins("JOIN group_emails ON group_emails.group_id = groups.group_id AND group_emails.user_email = groups.user_email").
		Where("groups.user_email = ?", userEmail).
		Order("groups.group_id, group_emails.email_id").
		Scan(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *groupRepository) RenameGroup(ctx context.Context, userEmail string, groupID int, newName string) error {
	result := r.db.WithContext(ctx).
		Model(&groupdomain.Group{}).
		Where("user_email = ? AND group_id = ?", userEmail, groupID).
		Update("name", newName)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *groupRepository) AddMembership(ctx context.Context, userEmail string, groupID int, emailID string) error {
	membership := groupdomain.GroupEmail{
		UserEmail: userEmail,
		GroupID:   groupID,
		EmailID:   emailID,
		CreatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&membership).Error
}

func (r *groupRepository) EnsureClusterTriggered(ctx context.Context, userEmail string) (bool, error) {
	now := time.Now()
	var job groupdomain.ClusterJob

	result := r.db.WithContext(ctx).
		Where("user_email = ?", userEmail).
		Attrs(groupdomain.ClusterJob{
			ID:          uuid.New().String(),
			UserEmail:   userEmail,
			Status:      groupdomain.ClusterJobTriggered,
			TriggeredAt: now,
			CreatedAt:   now,
		}).
		FirstOrCreate(&job)
	if result.Error != nil {
		return false, result.Error
	}

	// RowsAffected == 0 means the marker already existed.
	return result.RowsAffected == 0, nil
}

func (r *groupRepository) ClearClusterMarker(ctx context.Context, userEmail string) error {
	return r.db.WithContext(ctx).
		Where("user_email = ?", userEmail).
		Delete(&groupdomain.ClusterJob{}).Error
}
