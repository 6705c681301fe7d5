package main

import (
	"fmt"
	"io"
	"time"

	"movepvm/internal/buildpipeline"
)

func printStageTimings(out io.Writer, timings buildpipeline.Timings) {
	if out == nil {
		return
	}
	for _, st := range buildpipeline.Stages() {
		if !timings.Has(st) {
			continue
		}
		if _, err := fmt.Fprintf(out, "%-8s %.1f ms\n", st, toMillis(timings.Duration(st))); err != nil {
			return
		}
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
