package backend

import (
	"io"

	"github.com/orcaman/writerseeker"
)

// MemChannel is an in-memory, fully seekable Channel, grounded on
// github.com/orcaman/writerseeker's WriterSeeker. It is used by tests
// that need a disposable archive without touching disk.
type MemChannel struct {
	ws  writerseeker.WriterSeeker
	pos int64
}

// NewMem creates an empty in-memory read-write channel.
func NewMem() *MemChannel { return &MemChannel{} }

func (m *MemChannel) Mode() Mode { return ReadWrite }

func (m *MemChannel) Read(p []byte) (int, error) {
	r := m.ws.Reader()
	if _, err := r.Seek(m.pos, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := r.Read(p)
	m.pos += int64(n)
	return n, err
}

func (m *MemChannel) Write(p []byte) (int, error) {
	if _, err := m.ws.Seek(m.pos, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := m.ws.Write(p)
	m.pos += int64(n)
	return n, err
}

func (m *MemChannel) Skip(absolute int64) error {
	m.pos = absolute
	return nil
}

func (m *MemChannel) SkipToEOF() error {
	r := m.ws.Reader()
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	m.pos = end
	return nil
}

func (m *MemChannel) SkipRelative(delta int64) error {
	m.pos += delta
	return nil
}

func (m *MemChannel) CurrentPosition() (int64, error) { return m.pos, nil }
func (m *MemChannel) Skippable(Direction, int64) bool { return true }
func (m *MemChannel) SyncWrite() error                { return nil }
func (m *MemChannel) Terminate() error                { return nil }

// Bytes returns the full buffered content, for assembling the final
// trailer write or for tests.
func (m *MemChannel) Bytes() []byte {
	r := m.ws.Reader()
	b, _ := io.ReadAll(r)
	return b
}
