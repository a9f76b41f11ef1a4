// Package etage buffers one filesystem directory's worth of entry names
// so a walker can pop them one at a time without holding the directory
// handle open for the whole walk. It also applies the Cache Directory
// Tagging Standard: a directory carrying a CACHEDIR.TAG file with the
// standard signature is reported empty, with a warning, so its contents
// are never saved. Grounded on original_source/src/libdar/etage.cpp.
package etage

import (
	"io/fs"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	times "gopkg.in/djherbis/times.v1"

	"github.com/edrusb/darchive/datetime"
	"github.com/edrusb/darchive/errs"
)

const (
	cacheDirTagName     = "CACHEDIR.TAG"
	cacheDirTagContents = "Signature: 8a477f597d28d172789f06886806bc55"
)

// Etage is a buffered directory listing: every entry name but "." and
// "..", plus the directory's own access/modify time captured before the
// scan touched it (so the walker can restore them afterward).
type Etage struct {
	names      []string
	lastAccess datetime.DateTime
	lastModify datetime.DateTime
}

// LastAccess is the directory's atime as it stood right before reading.
func (e *Etage) LastAccess() datetime.DateTime { return e.lastAccess }

// LastModify is the directory's mtime as it stood right before reading.
func (e *Etage) LastModify() datetime.DateTime { return e.lastModify }

// New opens dirPath and buffers its entry names. cacheDirTagging enables
// the Cache Directory Tagging Standard check; furtiveReadMode requests
// O_NOATIME where the platform supports it, so merely listing a
// directory does not disturb its recorded access time.
func New(ui *logrus.Logger, dirPath string, cacheDirTagging, furtiveReadMode bool) (*Etage, error) {
	lastAccess, lastModify, err := statTimes(dirPath)
	if err != nil {
		return nil, errs.Wrapf(err, "etage.New: stat %s", dirPath)
	}

	entries, err := readDirFurtive(ui, dirPath, furtiveReadMode)
	if err != nil {
		return nil, errs.Wrapf(err, "etage.New: opening %s", dirPath)
	}

	e := &Etage{lastAccess: lastAccess, lastModify: lastModify}
	isCacheDir := false
	for _, ent := range entries {
		name := ent.Name()
		if name == "." || name == ".." {
			continue
		}
		if cacheDirTagging && !isCacheDir && name == cacheDirTagName {
			isCacheDir = cacheDirTaggingCheck(dirPath, name)
		}
		e.names = append(e.names, name)
	}

	if isCacheDir {
		e.names = nil
		ui.Warnf("Detected Cache Directory Tagging Standard for %s, the contents of that directory will not be saved", dirPath)
	}

	return e, nil
}

// Read pops the next buffered name, or reports ok=false once exhausted.
func (e *Etage) Read() (name string, ok bool) {
	if len(e.names) == 0 {
		return "", false
	}
	name, e.names = e.names[0], e.names[1:]
	return name, true
}

func cacheDirTaggingCheck(dirPath, filename string) bool {
	f, err := os.Open(dirPath + string(os.PathSeparator) + filename)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, len(cacheDirTagContents))
	n, err := f.Read(buf)
	if err != nil || n < len(buf) {
		return false
	}
	return strings.HasPrefix(string(buf), cacheDirTagContents)
}

func statTimes(dirPath string) (access, modify datetime.DateTime, err error) {
	t, err := times.Stat(dirPath)
	if err != nil {
		return datetime.DateTime{}, datetime.DateTime{}, err
	}
	return datetime.FromTime(t.AccessTime()), datetime.FromTime(t.ModTime()), nil
}

func readDirFurtive(ui *logrus.Logger, dirPath string, furtive bool) ([]fs.DirEntry, error) {
	if furtive {
		entries, err := openFurtive(dirPath)
		switch {
		case err == nil:
			return entries, nil
		case err == errFurtiveUnsupported:
			ui.Warnf("Could not open directory %s in furtive read mode, using normal mode", dirPath)
		default:
			return nil, err
		}
	}
	return os.ReadDir(dirPath)
}
