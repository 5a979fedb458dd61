package domain

import "time"

// Email is the canonical normalized record for one mail item. The provider
// message ID is the dedupe key: re-ingesting the same ID must never create a
// second row for the same user.
type Email struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	UserEmail string     `json:"user_email" gorm:"primaryKey;column:user_email"`
	From      string     `json:"from" gorm:"column:sender_email"`
	To        string     `json:"to" gorm:"column:receiver_emails"`
	Subject   string     `json:"subject"`
	DateSent  *time.Time `json:"date_sent"`
	Body      string     `json:"body" gorm:"type:text"`
	Summary   *string    `json:"summary,omitempty" gorm:"type:text"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Email) TableName() string {
	return "emails"
}
