package domain

import (
	"time"

	emaildomain "clustermail-backend/internal/email/domain"
)

// Group is a named cluster of messages for one user. Group rows are written
// both by this service and by the external clustering job; the schema is the
// shared boundary between the two writers.
type Group struct {
	GroupID   int       `json:"group_id" gorm:"primaryKey;column:group_id"`
	UserEmail string    `json:"user_email" gorm:"primaryKey;column:user_email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Group) TableName() string {
	return "groups"
}

// GroupEmail is one membership row. The full key makes membership a set:
// inserting an existing membership is a no-op, never an error.
type GroupEmail struct {
	UserEmail string    `json:"user_email" gorm:"primaryKey;column:user_email"`
	GroupID   int       `json:"group_id" gorm:"primaryKey;column:group_id"`
	EmailID   string    `json:"email_id" gorm:"primaryKey;column:email_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (GroupEmail) TableName() string {
	return "group_emails"
}

// ClusterJob is the idempotency marker for the external clustering trigger.
// The unique user_email constraint turns "check then trigger" into an atomic
// insert-if-absent, closing the double-trigger race between concurrent
// requests.
type ClusterJob struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	UserEmail   string    `json:"user_email" gorm:"uniqueIndex;not null"`
	Status      string    `json:"status"`
	TriggeredAt time.Time `json:"triggered_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ClusterJob) TableName() string {
	return "cluster_jobs"
}

const ClusterJobTriggered = "triggered"

// Membership is one (group, message) pair as read back from the store.
type Membership struct {
	GroupID   int    `gorm:"column:group_id"`
	GroupName string `gorm:"column:name"`
	EmailID   string `gorm:"column:email_id"`
}

// ClusterState distinguishes "clustering has not produced groups yet" from a
// populated result, so an empty group list is not mistaken for an error.
type ClusterState string

const (
	ClusterStatePending ClusterState = "pending"
	ClusterStateReady   ClusterState = "ready"
)

// GroupView is an assembled group with its resolved member messages.
type GroupView struct {
	GroupID int                  `json:"group_id"`
	Name    string               `json:"name"`
	Emails  []*emaildomain.Email `json:"emails"`
}

// GroupsResult is the orchestrator's answer to a group listing request.
type GroupsResult struct {
	State  ClusterState `json:"cluster_state"`
	Groups []*GroupView `json:"groups"`
}
