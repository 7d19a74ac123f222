// Package size parses human readable data sizes such as "100mb" from flags.
package size

import (
	"fmt"
	"regexp"
	"strconv"
)

// Size is a number of bytes. It implements flag.Value.
type Size int64

const (
	_ = 1 << (iota * 10)
	KB
	MB
	GB
	TB
)

// the following regexes follow Go semantics https://golang.org/ref/spec#Letters_and_digits
var (
	rB  = regexp.MustCompile(`(?i)^(?:0b|0x|0o)?[\da-f_]+$`)
	rKB = regexp.MustCompile(`(?i)^(?:0b|0x|0o)?[\da-f_]+kb$`)
	rMB = regexp.MustCompile(`(?i)^(?:0b|0x|0o)?[\da-f_]+mb$`)
	rGB = regexp.MustCompile(`(?i)^(?:0b|0x|0o)?[\da-f_]+gb$`)
	rTB = regexp.MustCompile(`(?i)^(?:0b|0x|0o)?[\da-f_]+tb$`)
)

// Set accepts plain, 0b, 0o and 0x numbers with an optional kb/mb/gb/tb unit.
func (siz *Size) Set(size string) (err error) {
	if size == "" {
		return
	}
	var (
		lmt = len(size) - 2
		s   = []byte(size)
	)

	var n int64
	switch {
	case rB.Match(s):
		n, err = strconv.ParseInt(size, 0, 64)
	case rKB.Match(s):
		n, err = strconv.ParseInt(size[:lmt], 0, 64)
		n *= KB
	case rMB.Match(s):
		n, err = strconv.ParseInt(size[:lmt], 0, 64)
		n *= MB
	case rGB.Match(s):
		n, err = strconv.ParseInt(size[:lmt], 0, 64)
		n *= GB
	case rTB.Match(s):
		n, err = strconv.ParseInt(size[:lmt], 0, 64)
		n *= TB
	default:
		return fmt.Errorf("invalid size %q", size)
	}
	if err != nil {
		return fmt.Errorf("invalid size %q: %v", size, err)
	}
	*siz = Size(n)
	return
}

func (siz *Size) String() string {
	return fmt.Sprintf("%d", *siz)
}

// Megabytes rounds up to whole megabytes. Any positive size is at least 1.
func (siz Size) Megabytes() int {
	if siz <= 0 {
		return 0
	}
	return int((int64(siz) + MB - 1) / MB)
}
