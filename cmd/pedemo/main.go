package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sbl8/progress/engine"
	"github.com/sbl8/progress/internal/demo"
	"github.com/sbl8/progress/state"
)

func main() {
	var (
		streams        = flag.Int("streams", 2, "Number of distinct compute streams to submit on")
		opsPerStream   = flag.Int("ops", 3, "Operations submitted per stream")
		contSteps      = flag.Int("cont-steps", 4, "Cont steps before each operation completes")
		concurrencyCap = flag.Int("concurrency-cap", 4, "Admission ceiling for bounded operations")
		verbose        = flag.Bool("verbose", false, "Enable debug-level logging")
		version        = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Println("pedemo - progress engine demo driver v1.0.0")
		return
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	opts := engine.DefaultOptions()
	opts.Logger = logger
	opts.ConcurrencyCap = *concurrencyCap
	opts.Trace = true

	e := engine.New(opts)
	e.Run()

	ops := submitDemoOperations(e, *streams, *opsPerStream, *contSteps)
	waitForCompletion(ops)

	if err := e.Stop(); err != nil {
		logger.Error("stop failed", zap.Error(err))
		os.Exit(1)
	}

	if ring, ok := e.Trace().(*engine.Ring); ok {
		for _, ev := range ring.Events() {
			fmt.Printf("%s %s on %s\n", ev.Kind, ev.Name, ev.Stream)
		}
	}
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

func submitDemoOperations(e *engine.Engine, streams, opsPerStream, contSteps int) []*demo.Scripted {
	var ops []*demo.Scripted
	script := func(n int) []state.Action {
		a := make([]state.Action, n+1)
		for i := 0; i < n; i++ {
			a[i] = state.Cont
		}
		a[n] = state.Complete
		return a
	}

	for s := 0; s < streams; s++ {
		stream := demo.Stream{Label: fmt.Sprintf("stream-%d", s)}
		for i := 0; i < opsPerStream; i++ {
			name := fmt.Sprintf("allreduce-%d-%d", s, i)
			op := demo.NewScripted(stream, state.Bounded, name, script(contSteps))
			if err := e.Enqueue(op); err != nil {
				fmt.Fprintf(os.Stderr, "enqueue failed: %v\n", err)
				continue
			}
			ops = append(ops, op)
		}
	}
	return ops
}

func waitForCompletion(ops []*demo.Scripted) {
	deadline := time.Now().Add(5 * time.Second)
	for _, op := range ops {
		for !op.Completed() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}
}
