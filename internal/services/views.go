package services

import (
	"encoding/json"
	"time"

	"github.com/wordmesh/wordmesh-backend/internal/domain"
)

// WordRef is the minimal projection of a global word used in views.
type WordRef struct {
	ID           int64  `json:"id"`
	Text         string `json:"text"`
	CanonicalKey string `json:"canonical_key"`
}

type SenseView struct {
	ID         int64     `json:"id"`
	UserWordID int64     `json:"user_word_id"`
	Text       string    `json:"text"`
	IsPrimary  bool      `json:"is_primary"`
	SortOrder  int       `json:"sort_order"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserWordView is the caller-facing shape of a membership. AlreadyExists
// reports that an add resolved to a pre-existing membership, which the
// caller usually treats as success.
type UserWordView struct {
	UserWordID    int64       `json:"user_word_id"`
	Word          WordRef     `json:"word"`
	Tags          []string    `json:"tags"`
	Note          *string     `json:"note,omitempty"`
	AlreadyExists bool        `json:"already_exists,omitempty"`
	Senses        []SenseView `json:"senses"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type SearchPage struct {
	Items  []*UserWordView `json:"items"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type WordLinkView struct {
	WordA     WordRef   `json:"word_a"`
	WordB     WordRef   `json:"word_b"`
	Kind      string    `json:"kind"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type WordLinkPage struct {
	Items  []*WordLinkView `json:"items"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type SenseLinkView struct {
	SenseID    int64     `json:"sense_id"`
	SourceWord WordRef   `json:"source_word"`
	TargetWord WordRef   `json:"target_word"`
	Kind       string    `json:"kind"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type SenseLinkPage struct {
	Items  []*SenseLinkView `json:"items"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func wordRef(w *domain.Word) WordRef {
	if w == nil {
		return WordRef{}
	}
	return WordRef{ID: w.ID, Text: w.Text, CanonicalKey: w.CanonicalKey}
}

func newSenseView(s *domain.UserSense) SenseView {
	return SenseView{
		ID:         s.ID,
		UserWordID: s.UserWordID,
		Text:       s.Text,
		IsPrimary:  s.IsPrimary,
		SortOrder:  s.SortOrder,
		Note:       s.Note,
		CreatedAt:  s.CreatedAt,
	}
}

func newUserWordView(agg *domain.UserWordAggregate, alreadyExists bool) *UserWordView {
	senses := make([]SenseView, 0, len(agg.Senses))
	for _, s := range agg.Senses {
		senses = append(senses, newSenseView(s))
	}
	return &UserWordView{
		UserWordID:    agg.UserWord.ID,
		Word:          wordRef(agg.Word),
		Tags:          decodeTags(agg.UserWord.Tags),
		Note:          agg.UserWord.Note,
		AlreadyExists: alreadyExists,
		Senses:        senses,
		CreatedAt:     agg.UserWord.CreatedAt,
		UpdatedAt:     agg.UserWord.UpdatedAt,
	}
}

func decodeTags(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return []string{}
	}
	return tags
}
