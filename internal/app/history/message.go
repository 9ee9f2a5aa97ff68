/*
Package history keeps the bounded, ordered log of chat messages that is replayed to
clients on login. Every mutation is written through to a Store before it becomes visible.
*/
package history

import "context"

// Attachment describes an uploaded file carried by a chat message.
type Attachment struct {
	StorageFilename string `json:"filename"`
	OriginalName    string `json:"originalName"`
	RelativePath    string `json:"path"`
	Size            int64  `json:"size"`
	MimeType        string `json:"mimeType"`
}

// Message is one chat message. It is never modified after creation.
type Message struct {
	// Text is nil for file-only messages.
	Text         *string     `json:"message"`
	Author       string      `json:"author"`
	AuthorAvatar *string     `json:"authorAvatar"`
	Timestamp    int64       `json:"timestamp"`
	File         *Attachment `json:"file,omitempty"`
}

// Store persists the whole buffer. Save replaces everything previously saved.
type Store interface {
	Load(ctx context.Context) ([]Message, error)
	Save(ctx context.Context, messages []Message) error
}
