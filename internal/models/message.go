package models

import "time"

// MessageType distinguishes the two halves of a conversation turn.
type MessageType string

const (
	MessageTypeQuestion MessageType = "question"
	MessageTypeAnswer   MessageType = "answer"
)

// FollowUpMode records which path of the fallback chain produced an answer.
type FollowUpMode string

const (
	ModeSavedData FollowUpMode = "saved_data"
	ModeFDASearch FollowUpMode = "fda_search"
	ModeWebSearch FollowUpMode = "web_search"
)

// Message is one turn in the follow-up conversation attached to an
// OriginalQuery. Messages are append-only; creation time is the canonical
// conversation order.
type Message struct {
	ID               string       `json:"id"`
	QueryID          string       `json:"queryId"`
	UserID           string       `json:"userId"`
	Type             MessageType  `json:"messageType"`
	Content          string       `json:"content"`
	Mode             FollowUpMode `json:"followUpMode,omitempty"`
	Citations        []Citation   `json:"citations,omitempty"`
	WebsearchEnabled bool         `json:"websearchEnabled"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// Citation is a structured pointer to a source backing part of an answer.
// Citations are only ever attached to answer messages.
type Citation struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet"`
	DisplayURL string `json:"display_url"`
	Position   int    `json:"position"`
}
