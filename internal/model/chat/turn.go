package chat

import "time"

// Turn is one message in a conversation. Turns are handed out by value and
// never modified after they are appended.
type Turn struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Content       string    `json:"content"`
	SequenceIndex int       `json:"sequenceIndex"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Stats summarizes a transcript for display counters.
type Stats struct {
	Total     int `json:"total"`
	User      int `json:"user"`
	Assistant int `json:"assistant"`
}
