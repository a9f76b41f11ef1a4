// Package slice implements the slice manager: it turns a logical byte
// stream into a sequence of numbered, fixed-size slice files with
// per-slice headers, an optional between-slice hook command, and
// pause/prompt semantics, grounded on §4.2 and on the teacher's
// (go-diskfs) convention of one backend.Storage per underlying file.
package slice

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/google/renameio"
	"github.com/mattn/go-isatty"

	"github.com/edrusb/darchive/backend"
	"github.com/edrusb/darchive/errs"
	"github.com/edrusb/darchive/infinint"
)

// Magic is the 4-byte archive magic every slice header begins with.
var Magic = [4]byte{'D', 'A', 'R', '1'}

// Header is the per-slice header written at the start of every slice
// file: magic, a 16-byte internal label shared by every slice of one
// archive, the slice number, and a flag byte (has-terminal-flag,
// is-old-header).
type Header struct {
	Label         [16]byte
	Number        uint64
	HasTerminal   bool
	IsOldHeader   bool
}

func (h Header) encode(w io.Writer) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	if _, err := w.Write(h.Label[:]); err != nil {
		return err
	}
	if err := infinint.FromUint64(h.Number).Encode(w); err != nil {
		return err
	}
	var flags byte
	if h.HasTerminal {
		flags |= 1
	}
	if h.IsOldHeader {
		flags |= 2
	}
	_, err := w.Write([]byte{flags})
	return err
}

func decodeHeader(r io.Reader) (Header, error) {
	var h Header
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return h, errs.Wrap(err, "slice.decodeHeader: reading magic")
	}
	if magic != Magic {
		return h, errs.New(errs.KindRange, "slice.decodeHeader: wrong magic, not the right archive")
	}
	if _, err := io.ReadFull(r, h.Label[:]); err != nil {
		return h, errs.Wrap(err, "slice.decodeHeader: reading label")
	}
	n, err := infinint.Decode(r)
	if err != nil {
		return h, errs.Wrap(err, "slice.decodeHeader: reading slice number")
	}
	num, err := n.Uint64()
	if err != nil {
		return h, errs.Wrap(err, "slice.decodeHeader: slice number out of range")
	}
	h.Number = num
	var flags [1]byte
	if _, err := io.ReadFull(r, flags[:]); err != nil {
		return h, errs.Wrap(err, "slice.decodeHeader: reading flags")
	}
	h.HasTerminal = flags[0]&1 != 0
	h.IsOldHeader = flags[0]&2 != 0
	return h, nil
}

// HookContext is substituted into a configured between-slice hook
// command: runHook substitutes `%p` (slice path) and `%n` (slice number).
type HookContext struct {
	Path   string
	Number uint64
}

// Prompter is the injected "user-interaction callback" §4.2/§9 requires
// for the pause/prompt and missing-slice-retry points.
type Prompter interface {
	// Pause is invoked after closing a non-terminal slice when pausing
	// is requested; returning an error (KindUserAbort) stops the write.
	Pause(ctx HookContext) error
	// MissingSlice is invoked when a read needs slice number n and it is
	// not present; returning nil means "retry", any error aborts.
	MissingSlice(n uint64) error
}

// NopPrompter never pauses and never retries a missing slice.
type NopPrompter struct{}

func (NopPrompter) Pause(HookContext) error { return nil }
func (NopPrompter) MissingSlice(n uint64) error {
	return errs.Newf(errs.KindHardware, "slice: missing slice %d", n)
}

// Params configures a Manager, grounded on the teacher's Params-struct
// configuration pattern (ext4.Params).
type Params struct {
	// Basename and Extension name slices on disk as Basename.N.Extension.
	Basename  string
	Extension string
	Dir       string

	FirstSize int64 // 0 means "unsplit" (piped mode or unlimited)
	NextSize  int64

	Label [16]byte

	// Hook, if non-empty, is run via the shell between slices with
	// %p/%n substituted for path/number.
	Hook string

	Pause    bool
	Prompter Prompter
}

func (p Params) slicePath(n uint64) string {
	return fmt.Sprintf("%s.%d.%s", p.pathPrefix(), n, p.Extension)
}

func (p Params) pathPrefix() string {
	if p.Dir == "" {
		return p.Basename
	}
	return p.Dir + "/" + p.Basename
}

func (p Params) sizeFor(n uint64) int64 {
	if n == 1 || p.NextSize == 0 {
		return p.FirstSize
	}
	return p.NextSize
}

// Manager maps a logical offset to a (slice-index, within-slice-offset)
// pair and presents the whole sequence as a single backend.Channel.
type Manager struct {
	params Params
	mode   backend.Mode

	piped   bool
	pipeCh  backend.Channel

	cur       backend.Channel
	curNumber uint64
	curOffset int64 // content bytes written/read so far in the current slice, header excluded
	headerLen int64 // actual on-disk byte length of the current slice's header
	total     uint64
	knownEnd  bool
}

// countingWriter wraps a Writer only long enough to measure how many
// bytes a single encode call actually produced: the slice number field
// is an Infinint, whose encoding is self-delimiting but not fixed
// width, so the header's total byte length varies with the slice
// number's magnitude and must be measured rather than assumed.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// countingReader is the read-side counterpart of countingWriter.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// NewWriter creates a Manager that writes slices per params starting at
// slice 1. If params.FirstSize is 0, writing degenerates to a single
// unsplittable piped slice via w (§4.2 "Piped mode").
func NewWriter(params Params, w io.Writer) (*Manager, error) {
	m := &Manager{params: params, mode: backend.WriteOnly}
	if params.FirstSize == 0 || isUnseekablePipe(w) {
		m.piped = true
		m.pipeCh = backend.NewPipeWriter(w)
		return m, nil
	}
	if err := m.openSliceForWrite(1); err != nil {
		return nil, err
	}
	return m, nil
}

// NewReader creates a Manager that reads slices named per params,
// probing for slice 1 first.
func NewReader(params Params, r io.Reader) (*Manager, error) {
	m := &Manager{params: params, mode: backend.ReadOnly}
	if isUnseekablePipe(r) {
		m.piped = true
		m.pipeCh = backend.NewPipeReader(r)
		return m, nil
	}
	if err := m.openSliceForRead(1); err != nil {
		return nil, err
	}
	return m, nil
}

func isUnseekablePipe(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) && !seekable(f)
}

func seekable(f *os.File) bool {
	_, err := f.Seek(0, io.SeekCurrent)
	return err == nil
}

func (m *Manager) openSliceForWrite(n uint64) error {
	path := m.params.slicePath(n)
	t, err := renameio.TempFile("", path)
	if err != nil {
		return errs.Wrap(err, "slice.openSliceForWrite: creating temp file")
	}
	m.cur = &renameioChannel{t: t, path: path}
	hdr := Header{Label: m.params.Label, Number: n}
	cw := &countingWriter{w: m.cur}
	if err := hdr.encode(cw); err != nil {
		return err
	}
	m.headerLen = cw.n
	m.curNumber = n
	m.curOffset = 0
	return nil
}

// renameioChannel adapts a *renameio.PendingFile to backend.Channel: it
// is write-only and not seekable mid-slice (each slice is written once,
// start to finish, then atomically finalized), matching how the slice
// manager itself only ever appends while building a slice.
type renameioChannel struct {
	t    *renameio.PendingFile
	path string
	pos  int64
}

func (c *renameioChannel) Mode() backend.Mode { return backend.WriteOnly }
func (c *renameioChannel) Read([]byte) (int, error) {
	return 0, errs.New(errs.KindBug, "slice.renameioChannel: read on a write-only slice")
}
func (c *renameioChannel) Write(p []byte) (int, error) {
	n, err := c.t.Write(p)
	c.pos += int64(n)
	return n, err
}
func (c *renameioChannel) Skip(int64) error            { return errs.New(errs.KindBug, "slice.renameioChannel: cannot seek mid-write") }
func (c *renameioChannel) SkipToEOF() error             { return nil }
func (c *renameioChannel) SkipRelative(delta int64) error {
	if delta == 0 {
		return nil
	}
	return errs.New(errs.KindBug, "slice.renameioChannel: cannot seek mid-write")
}
func (c *renameioChannel) CurrentPosition() (int64, error) { return c.pos, nil }
func (c *renameioChannel) Skippable(backend.Direction, int64) bool { return false }
func (c *renameioChannel) SyncWrite() error                        { return nil }
func (c *renameioChannel) Terminate() error {
	return c.t.CloseAtomicallyReplace()
}

func (m *Manager) openSliceForRead(n uint64) error {
	path := m.params.slicePath(n)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			if rerr := m.prompter().MissingSlice(n); rerr != nil {
				return errs.Wrapf(rerr, "slice.openSliceForRead: slice %d missing", n)
			}
			return m.openSliceForRead(n)
		}
		return errs.Wrapf(err, "slice.openSliceForRead: opening slice %d", n)
	}
	fc := backend.NewFileChannel(f, backend.ReadOnly)
	cr := &countingReader{r: fc}
	hdr, err := decodeHeader(cr)
	if err != nil {
		fc.Terminate()
		return err
	}
	if hdr.Label != m.params.Label && m.params.Label != ([16]byte{}) {
		fc.Terminate()
		return errs.New(errs.KindRange, "slice.openSliceForRead: internal label mismatch, not the right archive")
	}
	m.cur = fc
	m.curNumber = n
	m.curOffset = 0
	m.headerLen = cr.n
	if hdr.HasTerminal {
		m.knownEnd = true
		m.total = n
	}
	return nil
}

func (m *Manager) prompter() Prompter {
	if m.params.Prompter != nil {
		return m.params.Prompter
	}
	return NopPrompter{}
}

func (m *Manager) Mode() backend.Mode { return m.mode }

// Read implements io.Reader, transparently crossing slice boundaries.
func (m *Manager) Read(p []byte) (int, error) {
	if m.piped {
		return m.pipeCh.Read(p)
	}
	n, err := m.cur.Read(p)
	m.curOffset += int64(n)
	if err == io.EOF {
		if nerr := m.openSliceForRead(m.curNumber + 1); nerr != nil {
			return n, err
		}
		if n > 0 {
			return n, nil
		}
		return m.Read(p)
	}
	return n, err
}

// Write implements io.Writer, opening the next slice when the current
// one fills, per params.sizeFor.
func (m *Manager) Write(p []byte) (int, error) {
	if m.piped {
		return m.pipeCh.Write(p)
	}
	limit := m.params.sizeFor(m.curNumber)
	if limit <= 0 {
		n, err := m.cur.Write(p)
		m.curOffset += int64(n)
		return n, err
	}
	total := 0
	for len(p) > 0 {
		remaining := limit - m.curOffset
		if remaining <= 0 {
			if err := m.rollSlice(); err != nil {
				return total, err
			}
			remaining = limit - m.curOffset
		}
		chunk := p
		if int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		n, err := m.cur.Write(chunk)
		m.curOffset += int64(n)
		total += n
		p = p[n:]
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (m *Manager) rollSlice() error {
	if err := m.cur.Terminate(); err != nil {
		return err
	}
	if m.params.Hook != "" {
		if err := runHook(m.params.Hook, HookContext{Path: m.params.slicePath(m.curNumber), Number: m.curNumber}); err != nil {
			return errs.Wrap(err, "slice.rollSlice: between-slice hook")
		}
	}
	if m.params.Pause {
		if err := m.prompter().Pause(HookContext{Path: m.params.slicePath(m.curNumber), Number: m.curNumber}); err != nil {
			return errs.Wrap(err, "slice.rollSlice: pause")
		}
	}
	return m.openSliceForWrite(m.curNumber + 1)
}

func runHook(hook string, ctx HookContext) error {
	cmd := strings.NewReplacer("%p", ctx.Path, "%n", fmt.Sprintf("%d", ctx.Number)).Replace(hook)
	c := exec.Command("/bin/sh", "-c", cmd)
	var stderr bytes.Buffer
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return errs.Newf(errs.KindRange, "slice hook %q failed: %v: %s", cmd, err, stderr.String())
	}
	return nil
}

// Skip seeks to an absolute logical offset, computing the target slice
// and within-slice content offset, opening that slice (which measures
// its actual, number-dependent header length) and seeking past its
// header plus the content offset.
func (m *Manager) Skip(absolute int64) error {
	if m.piped {
		return backend.ErrNotSeekable
	}
	n, within := m.localize(absolute)
	if n != m.curNumber {
		switch m.mode {
		case backend.ReadOnly:
			if err := m.openSliceForRead(n); err != nil {
				return err
			}
		default:
			return errs.New(errs.KindBug, "slice.Skip: cannot seek across slices while writing")
		}
	}
	target := m.headerLen + within
	var err error
	if fc, ok := m.cur.(*backend.FileChannel); ok {
		err = fc.Skip(target)
	} else {
		err = m.cur.Skip(target)
	}
	if err != nil {
		return err
	}
	m.curOffset = within
	return nil
}

// localize maps a logical offset to a (slice number, within-slice
// content offset) pair given the first/next slice sizes. The returned
// offset excludes the slice's header, since the header's on-disk byte
// length is only known once that slice is actually opened (§4.2).
func (m *Manager) localize(logical int64) (number uint64, within int64) {
	first := m.params.FirstSize
	if first <= 0 || logical < first {
		return 1, logical
	}
	rest := logical - first
	next := m.params.NextSize
	if next <= 0 {
		return 1, logical
	}
	n := uint64(rest/next) + 2
	within = rest % next
	return n, within
}

func (m *Manager) SkipToEOF() error {
	if m.piped {
		return backend.ErrNotSeekable
	}
	if !m.knownEnd {
		return errs.New(errs.KindFeature, "slice.SkipToEOF: total slice count unknown")
	}
	return m.Skip(m.endOffset())
}

func (m *Manager) endOffset() int64 {
	return m.params.FirstSize + int64(m.total-1)*m.params.NextSize
}

func (m *Manager) SkipRelative(delta int64) error {
	pos, err := m.CurrentPosition()
	if err != nil {
		return err
	}
	return m.Skip(pos + delta)
}

func (m *Manager) CurrentPosition() (int64, error) {
	if m.piped {
		return m.pipeCh.CurrentPosition()
	}
	within := m.curOffset
	if m.curNumber <= 1 {
		return within, nil
	}
	return m.params.FirstSize + int64(m.curNumber-2)*m.params.NextSize + within, nil
}

func (m *Manager) Skippable(dir backend.Direction, amount int64) bool {
	if m.piped {
		return false
	}
	return true
}

func (m *Manager) SyncWrite() error {
	if m.piped {
		return m.pipeCh.SyncWrite()
	}
	return m.cur.SyncWrite()
}

// Terminate closes the current slice.
func (m *Manager) Terminate() error {
	if m.piped {
		return m.pipeCh.Terminate()
	}
	if m.cur == nil {
		return nil
	}
	cur := m.cur
	m.cur = nil
	return cur.Terminate()
}

// MarkTerminal records that the current slice is the last one the
// archive façade will ever open, so that Terminate/CurrentPosition
// bookkeeping (SkipToEOF on a later read of the same archive) knows the
// total slice count without a dedicated terminal-flag byte in the
// on-disk header.
func (m *Manager) MarkTerminal() {
	m.knownEnd = true
	m.total = m.curNumber
}
