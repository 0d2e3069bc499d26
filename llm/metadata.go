package llm

import "time"

// Stats holds provider-reported accounting for one completion.
type Stats struct {
	ID               string `json:"id,omitempty"`
	Model            string `json:"model,omitempty"`
	FinishReason     string `json:"finish_reason,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	TotalTokens      int    `json:"total_tokens,omitempty"`
}

// ChangeLog records one mutation of a message: when it happened and which
// fields were touched.
type ChangeLog struct {
	Time   time.Time `json:"time"`
	Fields []string  `json:"fields"`
}

// Metadata is per-message bookkeeping. CreatedAt is stamped once by the
// message constructors and never reassigned afterwards; later edits are
// recorded by calling RecordChange at the mutation site.
type Metadata struct {
	CreatedAt  time.Time   `json:"created_at"`
	Chunk      bool        `json:"chunk,omitempty"`
	ChangeLogs []ChangeLog `json:"change_logs,omitempty"`
}

// NewMetadata returns metadata stamped with the current time.
func NewMetadata() Metadata {
	return Metadata{CreatedAt: time.Now()}
}

// RecordChange appends a timestamped entry naming the fields that were just
// modified.
func (m *Metadata) RecordChange(fields ...string) {
	m.ChangeLogs = append(m.ChangeLogs, ChangeLog{
		Time:   time.Now(),
		Fields: fields,
	})
}
