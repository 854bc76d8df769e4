package generator

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// fakeAssistant records calls and replays scripted run statuses and answers.
type fakeAssistant struct {
	mu sync.Mutex

	calls     []string
	statuses  [][]RunStatus // one entry per ListRuns call; completed once exhausted
	listCalls int
	responses []string
	respIdx   int

	instructions string
	model        string
	threadPrompt string
	messages     []string

	updateErr error
	runErr    error
	listErr   error
}

func (f *fakeAssistant) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAssistant) UpdateAssistant(_ context.Context, assistantID, instructions, model string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update:" + assistantID)
	f.instructions = instructions
	f.model = model
	return f.updateErr
}

func (f *fakeAssistant) CreateThread(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("thread")
	f.threadPrompt = prompt
	return "thread_1", nil
}

func (f *fakeAssistant) AddMessage(_ context.Context, threadID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("message:" + threadID)
	f.messages = append(f.messages, content)
	return nil
}

func (f *fakeAssistant) CreateRun(_ context.Context, threadID, assistantID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("run:" + threadID)
	if f.runErr != nil {
		return "", f.runErr
	}
	return fmt.Sprintf("run_%d", len(f.calls)), nil
}

func (f *fakeAssistant) ListRuns(_ context.Context, threadID string) ([]Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list:" + threadID)
	idx := f.listCalls
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if idx >= len(f.statuses) {
		return []Run{{ID: "run_x", Status: RunStatusCompleted}}, nil
	}
	var runs []Run
	for i, s := range f.statuses[idx] {
		runs = append(runs, Run{ID: fmt.Sprintf("run_%d", i), Status: s})
	}
	return runs, nil
}

func (f *fakeAssistant) LatestMessage(_ context.Context, threadID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("latest:" + threadID)
	if f.respIdx >= len(f.responses) {
		return "", nil
	}
	r := f.responses[f.respIdx]
	f.respIdx++
	return r, nil
}

func (f *fakeAssistant) callsWithPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type fakeImages struct {
	prompts []string
	data    []byte
	err     error
}

func (f *fakeImages) Render(_ context.Context, prompt string) ([]byte, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

// recordingSleep returns a SleepFunc that never blocks and the durations it saw.
func recordingSleep() (SleepFunc, *[]time.Duration) {
	var seen []time.Duration
	return func(_ context.Context, d time.Duration) error {
		seen = append(seen, d)
		return nil
	}, &seen
}

func testLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.New(&buf, "", 0), &buf
}
