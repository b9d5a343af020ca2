//go:build unix

package main

import (
	"os"
	"syscall"
)

var (
	suspendSignal os.Signal = syscall.SIGUSR1
	resumeSignal  os.Signal = syscall.SIGUSR2
)
