package common

import (
	"fmt"
	"os"
	"runtime"
)

// SH_Assert panics with msg when cond is false.
// It is reserved for broken internal invariants, never for caller errors.
func SH_Assert(cond bool, msg string) {
	if !cond {
		RuntimeStack()
		panic(msg)
	}
}

// RuntimeStack dumps the stacks of all goroutines to stdout
func RuntimeStack() {
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	fmt.Fprintf(os.Stdout, "%s\n", buf[:n])
}
