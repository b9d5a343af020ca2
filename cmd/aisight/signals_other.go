//go:build !unix

package main

import "os"

// No pause signals outside unix.
var (
	suspendSignal os.Signal
	resumeSignal  os.Signal
)
