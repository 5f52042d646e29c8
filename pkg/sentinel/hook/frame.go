package hook

import (
	"fmt"
	"runtime"
	"strings"
)

// maxFrames bounds how deep a captured stack may be.
const maxFrames = 64

// Frame is one entry of a captured stack.
type Frame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// String renders the frame as "function (file:line)".
func (f Frame) String() string {
	if f.File == "" {
		return f.Function
	}
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}

// Callers captures the current goroutine's stack. skip 0 starts at the
// function that called Callers. Frames inside the Go runtime are dropped.
func Callers(skip int) []Frame {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		f, more := frames.Next()
		if f.Function != "" && !strings.HasPrefix(f.Function, "runtime.") {
			out = append(out, Frame{
				Function: f.Function,
				File:     f.File,
				Line:     f.Line,
			})
		}
		if !more {
			break
		}
	}
	return out
}
