package generator

import "time"

// Turn is one user request and the assistant's answer within a session.
type Turn struct {
	Desc      string
	Prompt    string
	Response  string
	Polls     int
	CreatedAt time.Time
}

// Result is what one generation produced.
type Result struct {
	Post        string
	ImagePrompt string
	ImagePath   string
	History     []Turn
}
