package domain

import (
	"time"

	"gorm.io/datatypes"
)

// UserWord is a user's membership of a global Word in their personal
// network. Deleting it cascades to its UserSenses and, via the
// coordinator, to the graph edges of those senses.
type UserWord struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;uniqueIndex:uq_user_word_membership;column:user_id" json:"user_id"`
	WordID int64 `gorm:"not null;uniqueIndex:uq_user_word_membership;column:word_id" json:"word_id"`

	// Tags holds a JSON array of short strings, validated before write.
	Tags datatypes.JSON `gorm:"column:tags" json:"tags"`
	Note *string        `gorm:"column:note" json:"note,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserWord) TableName() string { return "user_word" }
