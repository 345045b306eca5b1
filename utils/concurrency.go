package utils

import (
	"sync"
)

// WorkerPool bounds the number of goroutines running submitted jobs.
type WorkerPool struct {
	maxWorkers int
	semaphore  chan struct{}
	wg         sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool running at most maxWorkers jobs at once.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// Submit enqueues a job for execution in the pool.
// It blocks while maxWorkers jobs are already running.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Chunks splits n items into [start, end) ranges of at most size items.
func Chunks(n, size int) [][2]int {
	if size < 1 {
		size = 1
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// ParallelMap applies fn to every item using a fresh pool of the given size,
// one chunk per job. The result has the same order as items.
func ParallelMap[T, R any](items []T, workers, chunkSize int, fn func(T) R) []R {
	out := make([]R, len(items))
	pool := NewWorkerPool(workers)
	for _, c := range Chunks(len(items), chunkSize) {
		start, end := c[0], c[1]
		pool.Submit(func() {
			for i := start; i < end; i++ {
				out[i] = fn(items[i])
			}
		})
	}
	pool.Wait()
	return out
}

// ParallelReduce maps every chunk of items to a partial result and folds the
// partials in chunk order with merge. merge must be associative.
func ParallelReduce[T, A any](items []T, workers, chunkSize int, mapChunk func([]T) A, merge func(A, A) A, zero A) A {
	chunks := Chunks(len(items), chunkSize)
	partials := make([]A, len(chunks))
	pool := NewWorkerPool(workers)
	for i, c := range chunks {
		i, start, end := i, c[0], c[1]
		pool.Submit(func() {
			partials[i] = mapChunk(items[start:end])
		})
	}
	pool.Wait()

	acc := zero
	for _, p := range partials {
		acc = merge(acc, p)
	}
	return acc
}
