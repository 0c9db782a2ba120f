package jobs

import (
	"bufio"
	"io"
	"io/fs"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/fs/core"
)

// DateLayout is the ISO date format embedded in log file names.
const DateLayout = "2006-01-02"

// ValidateDate rejects anything that is not a calendar date in DateLayout.
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return errors.Wrapf(err, errors.CodeInvalidInput, "invalid date %q, expected YYYY-MM-DD", date)
	}
	return nil
}

// LogDir knows the naming scheme of rotated log files in one directory.
//
// Sources are named <prefix>-<date>.<rotation>.log; merged artifacts are
// written next to them as <prefix>-<date>-<job id>.log.
type LogDir struct {
	fs     core.FS
	dir    string
	prefix string
}

// NewLogDir binds a directory and file prefix on filesystem fsys.
func NewLogDir(fsys core.FS, dir, prefix string) *LogDir {
	return &LogDir{fs: fsys, dir: dir, prefix: prefix}
}

// Dir returns the directory the files live in.
func (d *LogDir) Dir() string { return d.dir }

// Prefix returns the log file name prefix.
func (d *LogDir) Prefix() string { return d.prefix }

func (d *LogDir) sourcePattern(date string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(d.prefix+"-"+date) + `\.\d+\.log$`)
}

// Sources lists the rotated files for date in directory listing order.
// A missing directory or an empty match set is reported as CodeNotFound.
func (d *LogDir) Sources(date string) ([]string, error) {
	entries, err := d.fs.ReadDir(d.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, errors.CodeNotFound, "log directory not found for date: %s", date)
		}
		return nil, errors.Wrapf(err, errors.CodeInternal, "failed to list log directory %s for date: %s", d.dir, date)
	}

	re := d.sourcePattern(date)
	var sources []string
	for _, e := range entries {
		if e.IsDir() || !re.MatchString(e.Name()) {
			continue
		}
		sources = append(sources, path.Join(d.dir, e.Name()))
	}

	if len(sources) == 0 {
		return nil, errors.Newf(errors.CodeNotFound, "log files not found for date: %s", date)
	}
	return sources, nil
}

// Rotation returns the path of a single rotated file, or CodeNotFound.
func (d *LogDir) Rotation(date string, rotation int) (string, error) {
	name := path.Join(d.dir, d.prefix+"-"+date+"."+strconv.Itoa(rotation)+".log")
	ok, err := d.fs.Exists(name)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeInternal, "failed to stat %s", name)
	}
	if !ok {
		return "", errors.Newf(errors.CodeNotFound, "log file not found for date: %s rotation: %d", date, rotation)
	}
	return name, nil
}

// ArtifactPath is where the merged output of job id for date is written.
func (d *LogDir) ArtifactPath(date string, id uuid.UUID) string {
	return path.Join(d.dir, d.prefix+"-"+date+"-"+id.String()+".log")
}

// MergedName is the download name for an on-demand merge of date.
func (d *LogDir) MergedName(date string) string {
	return d.prefix + "-" + date + ".log"
}

// Open opens name for reading.
func (d *LogDir) Open(name string) (fs.File, error) {
	f, err := d.fs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, errors.CodeNotFound, "file not found: %s", name)
		}
		return nil, errors.Wrapf(err, errors.CodeInternal, "failed to open %s", name)
	}
	return f, nil
}

// Merge copies sources into dst line by line, in order. Each line is written
// with a trailing newline regardless of how the source terminated it.
func (d *LogDir) Merge(dst io.Writer, sources []string) error {
	w := bufio.NewWriter(dst)
	for _, src := range sources {
		if err := d.copyLines(w, src); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to flush merged output")
	}
	return nil
}

func (d *LogDir) copyLines(w *bufio.Writer, src string) error {
	f, err := d.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return errors.Wrapf(readErr, errors.CodeInternal, "failed to read %s", src)
		}
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if _, err := w.WriteString(line + "\n"); err != nil {
				return errors.Wrap(err, errors.CodeInternal, "failed to write merged output")
			}
		}
		if readErr == io.EOF {
			return nil
		}
	}
}

// WriteArtifact merges sources into a new file at name, creating parent
// directories as needed. A partially written file is removed on failure.
func (d *LogDir) WriteArtifact(name string, sources []string) (err error) {
	if err := d.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "failed to create directory for %s", name)
	}

	f, err := d.fs.Create(name)
	if err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "failed to create %s", name)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, errors.CodeInternal, "failed to close %s", name)
		}
		if err != nil {
			_ = d.fs.Remove(name)
		}
	}()

	return d.Merge(f, sources)
}
