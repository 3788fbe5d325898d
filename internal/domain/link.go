package domain

import (
	"time"
)

// WordLinkKind tags a symmetric word-to-word edge.
type WordLinkKind string

const (
	WordLinkSimilarForm WordLinkKind = "similar_form"
	WordLinkRootAffix   WordLinkKind = "root_affix"
)

func (k WordLinkKind) Valid() bool {
	switch k {
	case WordLinkSimilarForm, WordLinkRootAffix:
		return true
	}
	return false
}

func WordLinkKinds() []WordLinkKind {
	return []WordLinkKind{WordLinkSimilarForm, WordLinkRootAffix}
}

// SenseLinkKind tags a directed sense-to-word edge.
type SenseLinkKind string

const (
	SenseLinkSynonym SenseLinkKind = "synonym"
	SenseLinkAntonym SenseLinkKind = "antonym"
	SenseLinkRelated SenseLinkKind = "related"
)

func (k SenseLinkKind) Valid() bool {
	switch k {
	case SenseLinkSynonym, SenseLinkAntonym, SenseLinkRelated:
		return true
	}
	return false
}

func SenseLinkKinds() []SenseLinkKind {
	return []SenseLinkKind{SenseLinkSynonym, SenseLinkAntonym, SenseLinkRelated}
}

// WordLink is a symmetric, user-owned edge between two global words.
// Endpoints are stored in canonical (min, max) order so the same
// unordered pair, kind and user never yields two edges. The graph store
// references word ids by value only; there is no cross-store foreign key.
type WordLink struct {
	WordAID   int64        `json:"word_a_id"`
	WordBID   int64        `json:"word_b_id"`
	Kind      WordLinkKind `json:"kind"`
	UserID    int64        `json:"user_id"`
	Note      *string      `json:"note,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// SenseWordLink is a directed, user-owned edge from a private sense to a
// global word. The target word must differ from the word the sense is
// attached to.
type SenseWordLink struct {
	SenseID      int64         `json:"sense_id"`
	SourceWordID int64         `json:"source_word_id"`
	TargetWordID int64         `json:"target_word_id"`
	Kind         SenseLinkKind `json:"kind"`
	UserID       int64         `json:"user_id"`
	Note         *string       `json:"note,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
