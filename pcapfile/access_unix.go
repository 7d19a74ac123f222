//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package pcapfile

import (
	"os"

	"github.com/vearne/pcapkit/pcaperr"
	"golang.org/x/sys/unix"
)

// checkAccess verifies that f was opened in a direction usable for reading
// (read == true) or for writing.
func checkAccess(f *os.File, read bool) error {
	fl, err := unix.FcntlInt(f.Fd(), unix.F_GETFL, 0)
	if err != nil {
		return &pcaperr.IOError{Op: "fcntl", Path: f.Name(), Err: err}
	}
	mode := fl & unix.O_ACCMODE
	if read && mode == unix.O_WRONLY {
		return &pcaperr.ValidationError{Field: "source", Value: f.Name(), Reason: "stream is not open for reading"}
	}
	if !read && mode == unix.O_RDONLY {
		return &pcaperr.ValidationError{Field: "destination", Value: f.Name(), Reason: "stream is not open for writing"}
	}
	return nil
}
