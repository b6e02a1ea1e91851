package task

import (
	"runtime"
	"sync"
)

// ExecOptions configures one Execute call.
type ExecOptions struct {
	// Workers bounds the pool for slow tasks; <= 0 means runtime.NumCPU().
	Workers int
	// Workspace is assigned to every task before it runs.
	Workspace string
	Builder   Builder
}

// workerCount returns the configured worker count or a sane default.
func workerCount(requested, slow int) int {
	n := runtime.NumCPU()
	if requested > 0 {
		n = requested
	}
	if n > slow {
		n = slow
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Execute runs every task exactly once. Slow tasks go to a worker pool that
// lives only for this call; fast tasks run on the calling goroutine while the
// pool works. Execute returns after the pool drains. Failures are recorded on
// the tasks and never stop the other items; use FirstError afterwards.
func Execute(tasks []Task, opts ExecOptions) Stats {
	slow := 0
	for i := range tasks {
		tasks[i].Workspace = opts.Workspace
		if tasks[i].Kind.IsSlow() {
			slow++
		}
	}

	jobs := make(chan int, slow)
	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for idx := range jobs {
			tasks[idx].Run(opts.Builder)
		}
	}
	workers := 0
	if slow > 0 {
		workers = workerCount(opts.Workers, slow)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go worker()
		}
	}

	for i := range tasks {
		if tasks[i].Kind.IsSlow() {
			jobs <- i
			continue
		}
		tasks[i].Run(opts.Builder)
	}
	close(jobs)
	wg.Wait()

	st := Stats{Total: len(tasks), Slow: slow, Workers: workers}
	for _, t := range tasks {
		if t.Err != nil {
			st.Failed++
		}
	}
	return st
}

// Stats summarizes an Execute call for logging.
type Stats struct {
	Total   int
	Slow    int
	Workers int
	Failed  int
}
