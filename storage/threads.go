// Package storage persists conversation threads and maintains the message
// search index. The session core never touches storage; callers load a
// thread's history here and hand it to the controller on switch.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"convo/session"
)

// Message is the persisted form of one chat message.
type Message struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Status    string     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

// ToolCall is the persisted form of one tool invocation, with whatever
// result payload was last displayed (corrections included).
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
}

// Thread is one persisted conversation.
type Thread struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// ThreadMetadata is a lightweight version of Thread for listing.
type ThreadMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ThreadStorage handles thread persistence as one JSON file per thread.
type ThreadStorage struct {
	threadsDir string
	enc        *Encryptor // nil means plaintext files
}

// NewThreadStorage creates thread storage under dataDir. enc may be nil to
// store threads unencrypted.
func NewThreadStorage(dataDir string, enc *Encryptor) (*ThreadStorage, error) {
	threadsDir := filepath.Join(dataDir, "threads")

	// 0700: thread files hold conversation history
	if err := os.MkdirAll(threadsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create threads directory: %w", err)
	}

	return &ThreadStorage{threadsDir: threadsDir, enc: enc}, nil
}

// Save writes a thread to disk, assigning an id on first save.
func (s *ThreadStorage) Save(thread *Thread) error {
	if thread.ID == "" {
		thread.ID = uuid.New().String()
	}
	thread.UpdatedAt = time.Now()
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = thread.UpdatedAt
	}

	data, err := json.MarshalIndent(thread, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}
	if s.enc != nil {
		data, err = s.enc.Encrypt(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt thread: %w", err)
		}
	}

	path := filepath.Join(s.threadsDir, thread.ID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write thread file: %w", err)
	}
	return nil
}

// Load reads a thread from disk.
func (s *ThreadStorage) Load(id string) (*Thread, error) {
	path := filepath.Join(s.threadsDir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thread file: %w", err)
	}
	if s.enc != nil && IsEncrypted(data) {
		data, err = s.enc.Decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt thread: %w", err)
		}
	}

	var thread Thread
	if err := json.Unmarshal(data, &thread); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread: %w", err)
	}
	return &thread, nil
}

// List returns metadata for all threads, newest first.
func (s *ThreadStorage) List() ([]ThreadMetadata, error) {
	entries, err := os.ReadDir(s.threadsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read threads directory: %w", err)
	}

	var threads []ThreadMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		thread, err := s.Load(id)
		if err != nil {
			continue // skip corrupted files
		}
		threads = append(threads, ThreadMetadata{
			ID:           thread.ID,
			Name:         thread.Name,
			Provider:     thread.Provider,
			Model:        thread.Model,
			CreatedAt:    thread.CreatedAt,
			UpdatedAt:    thread.UpdatedAt,
			MessageCount: len(thread.Messages),
		})
	}

	sort.Slice(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
	return threads, nil
}

// Delete removes a thread from disk.
func (s *ThreadStorage) Delete(id string) error {
	path := filepath.Join(s.threadsDir, id+".json")
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete thread file: %w", err)
	}
	return nil
}

// SaveCurrentThreadID records which thread should reopen on next launch.
func (s *ThreadStorage) SaveCurrentThreadID(id string) error {
	path := filepath.Join(s.threadsDir, "current")
	if err := os.WriteFile(path, []byte(id), 0600); err != nil {
		return fmt.Errorf("failed to write current thread marker: %w", err)
	}
	return nil
}

// LoadCurrentThreadID returns the last active thread id, empty if none.
func (s *ThreadStorage) LoadCurrentThreadID() string {
	data, err := os.ReadFile(filepath.Join(s.threadsDir, "current"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// FromSessionMessages converts live session history into persisted form.
// In-flight messages are skipped; only terminal messages are written.
func FromSessionMessages(msgs []session.ChatMessage) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Status != session.StatusComplete && m.Status != session.StatusErrored {
			continue
		}
		sm := Message{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			Status:    string(m.Status),
			Timestamp: m.Timestamp,
		}
		for _, tc := range m.ToolCalls {
			stc := ToolCall{
				ID:        tc.ID,
				Name:      tc.Name,
				Arguments: tc.Arguments,
			}
			if tc.Result != nil {
				stc.Result = tc.Result.Payload
			}
			sm.ToolCalls = append(sm.ToolCalls, stc)
		}
		out = append(out, sm)
	}
	return out
}

// ToSessionMessages converts persisted messages back into session history.
func ToSessionMessages(msgs []Message) []session.ChatMessage {
	out := make([]session.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		status := session.Status(m.Status)
		if status != session.StatusComplete && status != session.StatusErrored {
			status = session.StatusComplete
		}
		cm := session.ChatMessage{
			ID:        m.ID,
			Role:      session.Role(m.Role),
			Content:   m.Content,
			Status:    status,
			Timestamp: m.Timestamp,
		}
		for _, tc := range m.ToolCalls {
			stc := session.ToolCall{
				ID:        tc.ID,
				Name:      tc.Name,
				Arguments: tc.Arguments,
			}
			if tc.Result != nil {
				stc.Result = &session.ToolResult{ToolCallID: tc.ID, Payload: tc.Result}
			}
			cm.ToolCalls = append(cm.ToolCalls, stc)
		}
		out = append(out, cm)
	}
	return out
}
