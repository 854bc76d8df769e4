package generator

import "context"

// AssistantAPI abstracts the thread/run/message protocol of the assistant
// service so the generator can be driven by a fake or an offline mock.
type AssistantAPI interface {
	// UpdateAssistant replaces the behavior profile and model of the assistant.
	UpdateAssistant(ctx context.Context, assistantID, instructions, model string) error
	// CreateThread opens a conversation whose first user turn is prompt.
	CreateThread(ctx context.Context, prompt string) (string, error)
	// AddMessage appends a user turn to the thread.
	AddMessage(ctx context.Context, threadID, content string) error
	// CreateRun asks the assistant to answer the thread. It returns immediately.
	CreateRun(ctx context.Context, threadID, assistantID string) (string, error)
	// ListRuns returns every run of the thread with its current status.
	ListRuns(ctx context.Context, threadID string) ([]Run, error)
	// LatestMessage returns the text of the newest message in the thread.
	LatestMessage(ctx context.Context, threadID string) (string, error)
}

// RunStatus is the remote status of one assistant run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// Unsuccessful reports statuses that end a run without a usable answer. The
// wait loop still treats them as finished; they are only logged.
func (s RunStatus) Unsuccessful() bool {
	switch s {
	case RunStatusFailed, RunStatusCancelled, RunStatusExpired, RunStatusIncomplete, RunStatusRequiresAction:
		return true
	}
	return false
}

// Run is one assistant job on a thread.
type Run struct {
	ID     string
	Status RunStatus
}

// Settings configures a concrete assistant provider.
type Settings struct {
	Provider     string
	APIKey       string
	Organization string
	BaseURL      string
}
