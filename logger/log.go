package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cornelk/hashmap"
)

const (
	ERROR   = 1
	INFO    = 2
	VERBOSE = 3
	DEBUG   = 7
)

var levelNames = map[string]int{
	"error":   ERROR,
	"info":    INFO,
	"verbose": VERBOSE,
	"debug":   DEBUG,
}

var (
	level   int
	limiter int
	filter  *regexp.Regexp
	counter *hashmap.HashMap
	std     *log.Logger
)

func init() {
	counter = &hashmap.HashMap{}
	std = log.New(os.Stderr, "", log.LstdFlags)
}

// ParseLevel accepts a level name or its number.
func ParseLevel(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if l, found := levelNames[s]; found {
		return l, nil
	}
	l, err := strconv.Atoi(s)
	if err != nil || l < 0 {
		return 0, fmt.Errorf("invalid log level %s", s)
	}
	return l, nil
}

func SetLevel(l int) {
	level = l
}

func Level() int {
	return level
}

// SetLimiter caps how many times one formatted line is printed, zero
// disables the cap.
func SetLimiter(l int) {
	limiter = l
}

func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// SetFilter keeps only the lines matching the RE2 pattern, an empty pattern
// keeps everything.
func SetFilter(pattern string) error {
	if pattern == "" {
		filter = nil
		return nil
	}
	// https://github.com/google/re2/wiki/Syntax
	reg, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	filter = reg
	return nil
}

func Println(v ...interface{}) {
	printAtLevel(INFO, fmt.Sprintln(v...))
}

func Printf(format string, v ...interface{}) {
	printAtLevel(INFO, fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...interface{}) {
	printAtLevel(ERROR, fmt.Sprintf(format, v...))
}

func Verbosef(format string, v ...interface{}) {
	printAtLevel(VERBOSE, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...interface{}) {
	printAtLevel(DEBUG, fmt.Sprintf(format, v...))
}

func printAtLevel(l int, out string) {
	if level < l {
		return
	}
	if !filterAvailable(out) {
		return
	}
	if !limiterAvailable(out) {
		return
	}
	std.Print(out)
}

func limiterAvailable(out string) bool {
	if limiter == 0 {
		return true
	}
	var i int64
	val, _ := counter.GetOrInsert(out, &i)
	actual := (val).(*int64)
	count := atomic.AddInt64(actual, 1)
	return count <= int64(limiter)
}

func filterAvailable(out string) bool {
	return filter == nil || filter.MatchString(out)
}
