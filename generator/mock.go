package generator

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
)

// MockAssistant is an offline AssistantAPI for local runs. Every run
// completes immediately and answers with a canned diary entry or, for later
// turns, an image prompt built from the request.
type MockAssistant struct {
	mu      sync.Mutex
	threads map[string]*mockThread
}

type mockThread struct {
	messages []string // newest last
	runs     []Run
}

func NewMockAssistant() *MockAssistant {
	return &MockAssistant{threads: make(map[string]*mockThread)}
}

func (m *MockAssistant) UpdateAssistant(context.Context, string, string, string) error {
	return nil
}

func (m *MockAssistant) CreateThread(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("thread_mock_%d", len(m.threads)+1)
	m.threads[id] = &mockThread{messages: []string{prompt}}
	return id, nil
}

func (m *MockAssistant) AddMessage(_ context.Context, threadID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		return fmt.Errorf("mock: unknown thread %s", threadID)
	}
	t.messages = append(t.messages, content)
	return nil
}

func (m *MockAssistant) CreateRun(_ context.Context, threadID, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		return "", fmt.Errorf("mock: unknown thread %s", threadID)
	}
	last := t.messages[len(t.messages)-1]
	var sb strings.Builder
	if len(t.runs) == 0 {
		sb.WriteString("Liebes Tagebuch,\n\n")
		sb.WriteString("heute war ein ruhiger Tag. ")
		sb.WriteString(last)
		sb.WriteString("\n\n#tagebuch #diary")
	} else {
		sb.WriteString("A photorealistic, softly lit scene: ")
		sb.WriteString(t.messages[0])
	}
	t.messages = append(t.messages, sb.String())
	id := fmt.Sprintf("run_mock_%d", len(t.runs)+1)
	t.runs = append(t.runs, Run{ID: id, Status: RunStatusCompleted})
	return id, nil
}

func (m *MockAssistant) ListRuns(_ context.Context, threadID string) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("mock: unknown thread %s", threadID)
	}
	return append([]Run(nil), t.runs...), nil
}

func (m *MockAssistant) LatestMessage(_ context.Context, threadID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		return "", fmt.Errorf("mock: unknown thread %s", threadID)
	}
	return t.messages[len(t.messages)-1], nil
}

// MockImages renders a flat square PNG whose color is derived from the prompt.
type MockImages struct {
	Size int
}

func (m MockImages) Render(_ context.Context, prompt string) ([]byte, error) {
	size := m.Size
	if size <= 0 {
		size = 1024
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	sum := h.Sum32()
	fill := color.RGBA{R: uint8(sum >> 16), G: uint8(sum >> 8), B: uint8(sum), A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
