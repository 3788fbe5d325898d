package domain

import (
	"time"
)

// UserSense is a user's private definition attached to a membership.
// At most one sense per membership may be primary; the partial unique
// index enforcing that is created in db.AutoMigrateAll.
type UserSense struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserWordID int64     `gorm:"not null;uniqueIndex:uq_user_sense_text;column:user_word_id" json:"user_word_id"`
	Text       string    `gorm:"not null;uniqueIndex:uq_user_sense_text;column:text" json:"text"`
	IsPrimary  bool      `gorm:"not null;default:false;column:is_primary" json:"is_primary"`
	SortOrder  int       `gorm:"not null;default:0;column:sort_order" json:"sort_order"`
	Note       *string   `gorm:"column:note" json:"note,omitempty"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (UserSense) TableName() string { return "user_sense" }

// RemovedSense carries the identifiers the coordinator needs to trigger
// graph cleanup after a relational sense delete.
type RemovedSense struct {
	SenseID    int64
	UserWordID int64
}

// SenseUpdate is a partial update; nil fields are left unchanged. Note
// uses a double pointer so callers can distinguish "leave as is" from
// "clear the note".
type SenseUpdate struct {
	Text      *string
	IsPrimary *bool
	SortOrder *int
	Note      **string
}

// UserWordAggregate is the read model returned by membership lookups
// and search: the global word, the membership row and its senses in
// sort order.
type UserWordAggregate struct {
	Word     *Word
	UserWord *UserWord
	Senses   []*UserSense
}

// SearchScope selects which text columns a search query matches.
type SearchScope string

const (
	SearchScopeWord  SearchScope = "word"
	SearchScopeSense SearchScope = "sense"
	SearchScopeBoth  SearchScope = "both"
)

func (s SearchScope) Valid() bool {
	switch s {
	case SearchScopeWord, SearchScopeSense, SearchScopeBoth:
		return true
	}
	return false
}

// SearchParams are the bounds-checked inputs for SearchRepo.Search.
type SearchParams struct {
	UserID int64
	Query  string
	Scope  SearchScope
	Limit  int
	Offset int
}
