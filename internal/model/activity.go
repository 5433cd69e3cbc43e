package model

import "time"

// RawSubmission is a submission as yielded by the retrieval client
type RawSubmission struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`           // Markdown self-text, empty for link posts
	HTML      string    `json:"html,omitempty"` // Rendered self-text, if the API returned it
	Community string    `json:"community"`
	CreatedAt time.Time `json:"created_at"`
	Permalink string    `json:"permalink,omitempty"`
}

// RawComment is a comment as yielded by the retrieval client
type RawComment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	HTML      string    `json:"html,omitempty"`
	Community string    `json:"community"`
	CreatedAt time.Time `json:"created_at"`
	Permalink string    `json:"permalink,omitempty"`
}

// Activity is everything retrieved for one identity
type Activity struct {
	Identity         string          `json:"identity"`
	Submissions      []RawSubmission `json:"submissions"`
	Comments         []RawComment    `json:"comments"`
	AccountCreatedAt time.Time       `json:"account_created_at"`
}
