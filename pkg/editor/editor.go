// Package editor defines the contract for the embeddable rich-text
// surface. The engine calls SetContent with emitEvent=false when
// applying resolved remote or backup content, so its own change
// notifications are not re-triggered.
package editor

import "sync"

type ISurface interface {
	GetSerializedContent() string
	SetContent(content string, emitEvent bool)
}

// Buffer is a minimal in-process surface used by the demo daemon and
// tests. OnChange fires only for emitEvent=true writes, mirroring how a
// real editor component reports user edits.
type Buffer struct {
	mu       sync.Mutex
	content  string
	OnChange func(content string)
}

func NewBuffer(initial string) *Buffer {
	return &Buffer{content: initial}
}

func (b *Buffer) GetSerializedContent() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content
}

func (b *Buffer) SetContent(content string, emitEvent bool) {
	b.mu.Lock()
	b.content = content
	fn := b.OnChange
	b.mu.Unlock()
	if emitEvent && fn != nil {
		fn(content)
	}
}
