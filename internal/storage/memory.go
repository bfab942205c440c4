package storage

import (
	"context"
	"sync"
)

// Memory keeps the file in process. Download and upload hooks let tests
// inject failures or concurrent edits.
type Memory struct {
	mu           sync.Mutex
	data         []byte
	uploads      int
	BeforeUpload func(m *Memory)
	FailDownload error
	FailUpload   error
}

func NewMemory(data []byte) *Memory {
	return &Memory{data: append([]byte(nil), data...)}
}

func (m *Memory) Download(ctx context.Context) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDownload != nil {
		return Object{}, m.FailDownload
	}
	data := append([]byte(nil), m.data...)
	return Object{Data: data, Revision: contentRevision(data)}, nil
}

func (m *Memory) Upload(ctx context.Context, data []byte, ifRevision string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	hook := m.BeforeUpload
	m.BeforeUpload = nil
	m.mu.Unlock()
	if hook != nil {
		hook(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpload != nil {
		return m.FailUpload
	}
	if ifRevision != "" && ifRevision != contentRevision(m.data) {
		return ErrConflict
	}
	m.data = append([]byte(nil), data...)
	m.uploads++
	return nil
}

// Set replaces the content as an out-of-band writer would.
func (m *Memory) Set(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
}

func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Uploads counts successful uploads.
func (m *Memory) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}
