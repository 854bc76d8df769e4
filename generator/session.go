package generator

import (
	"context"
	"fmt"
	"time"
)

// Session is one conversation thread with the assistant. It lives only for
// a single generation; nothing about it is persisted.
type Session struct {
	ThreadID string
	History  []Turn
	jobs     *JobClient
	pending  string
}

// NewSession opens a thread whose first user turn is prompt. The turn is
// answered by the next call to Reply.
func (j *JobClient) NewSession(ctx context.Context, prompt string) (*Session, error) {
	threadID, err := j.api.CreateThread(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}
	j.infof("thread %s created", threadID)
	return &Session{ThreadID: threadID, jobs: j, pending: prompt}, nil
}

// Reply runs the assistant on the thread and returns its newest message.
func (s *Session) Reply(ctx context.Context, desc string) (string, error) {
	polls, err := s.jobs.RunAndWait(ctx, desc, s.ThreadID)
	if err != nil {
		return "", err
	}
	resp, err := s.jobs.Response(ctx, s.ThreadID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", desc, err)
	}
	s.History = append(s.History, Turn{
		Desc:      desc,
		Prompt:    s.pending,
		Response:  resp,
		Polls:     polls,
		CreatedAt: time.Now(),
	})
	s.pending = ""
	return resp, nil
}

// Ask appends a user turn and returns the assistant's answer to it.
func (s *Session) Ask(ctx context.Context, desc, content string) (string, error) {
	if err := s.jobs.api.AddMessage(ctx, s.ThreadID, content); err != nil {
		return "", fmt.Errorf("%s: adding message: %w", desc, err)
	}
	s.pending = content
	return s.Reply(ctx, desc)
}
