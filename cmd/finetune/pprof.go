package main

import "os"
import "os/signal"
import "runtime/pprof"
import "syscall"

// profile collects a CPU profile into default.pgo until the process is interrupted
func profile() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	f, err := os.Create("default.pgo")
	if err != nil {
		return
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return
	}
	go func() {
		<-sigChan
		pprof.StopCPUProfile()
		f.Close()
		os.Exit(130)
	}()
}
