package domain

import (
	"time"
)

// Word is the global anchor row for a canonical key. Words are created
// lazily on the first normalization miss and never deleted by a single
// user's action.
type Word struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Text         string    `gorm:"not null;column:text" json:"text"`
	CanonicalKey string    `gorm:"uniqueIndex:uq_word_canonical_key;not null;column:canonical_key" json:"canonical_key"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Word) TableName() string { return "word" }
