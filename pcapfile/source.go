package pcapfile

import (
	"expvar"
	"os"
	"strings"

	"github.com/vearne/pcapkit/consts"
	"github.com/vearne/pcapkit/guard"
	"github.com/vearne/pcapkit/pcaperr"
)

var stats *expvar.Map

func init() {
	stats = expvar.NewMap("pcapfile")
	stats.Init()
}

// Source names a capture stream: a filesystem path, "-" for the process's
// standard input or output, or an already opened file. A reader or writer
// built from a file takes ownership of it, and closes it even when opening
// fails.
type Source struct {
	path string
	file *os.File
}

func Path(p string) Source {
	return Source{path: p}
}

func File(f *os.File) Source {
	return Source{file: f}
}

// Fd wraps a raw descriptor. name is only used in messages.
func Fd(fd uintptr, name string) Source {
	f := os.NewFile(fd, name)
	if f == nil {
		return Source{}
	}
	return Source{file: f}
}

func (s Source) String() string {
	if s.file != nil {
		return s.file.Name()
	}
	return s.path
}

func (s Source) openRead() (*guard.Guard, error) {
	switch {
	case s.file != nil:
		if err := checkAccess(s.file, true); err != nil {
			s.file.Close()
			return nil, err
		}
		return guard.Wrap(s.file, true), nil
	case s.path == consts.StdStream:
		return guard.Wrap(os.Stdin, false), nil
	case s.path == "":
		return nil, &pcaperr.ValidationError{Field: "source", Value: `""`, Reason: "empty path or invalid descriptor"}
	default:
		return guard.Open(s.path, os.O_RDONLY, 0)
	}
}

func (s Source) openWrite() (*guard.Guard, error) {
	switch {
	case s.file != nil:
		if err := checkAccess(s.file, false); err != nil {
			s.file.Close()
			return nil, err
		}
		return guard.Wrap(s.file, true), nil
	case s.path == consts.StdStream:
		return guard.Wrap(os.Stdout, false), nil
	case s.path == "":
		return nil, &pcaperr.ValidationError{Field: "destination", Value: `""`, Reason: "empty path or invalid descriptor"}
	default:
		return guard.Open(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	}
}

// OpenStream opens name with an fopen style mode ("r", "wb", "a+", ...).
// "-" maps to standard input for read modes and standard output otherwise.
func OpenStream(name, mode string) (*os.File, error) {
	flag, err := parseMode(mode)
	if err != nil {
		return nil, err
	}
	if name == consts.StdStream {
		if flag == os.O_RDONLY {
			return os.Stdin, nil
		}
		return os.Stdout, nil
	}
	f, err := os.OpenFile(name, flag, 0644)
	if err != nil {
		return nil, &pcaperr.IOError{Op: "open", Path: name, Err: err}
	}
	return f, nil
}

func parseMode(mode string) (int, error) {
	m := strings.Replace(mode, "b", "", 1)
	switch m {
	case "r":
		return os.O_RDONLY, nil
	case "w":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, nil
	case "a":
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	case "r+":
		return os.O_RDWR, nil
	case "w+":
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, nil
	case "a+":
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, nil
	}
	return 0, &pcaperr.ValidationError{Field: "mode", Value: mode, Reason: "unsupported file mode"}
}
