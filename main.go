package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/Makepad-fr/tada/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	code := cli.Run(context.Background(), os.Args[1:])
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}
