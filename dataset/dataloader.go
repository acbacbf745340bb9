package dataset

import (
	"fmt"
	"sync"

	"github.com/tsawler/go-moli/tensor"
)

// Batch holds one mini-batch of all three modalities and the response.
type Batch struct {
	Expression *tensor.Tensor
	Mutation   *tensor.Tensor
	CNA        *tensor.Tensor
	// Target is the response as an [n, 1] float column.
	Target *tensor.Tensor
	Labels []int
}

// Input returns the batch tensor of one modality.
func (b *Batch) Input(m Modality) *tensor.Tensor {
	switch m {
	case Expression:
		return b.Expression
	case Mutation:
		return b.Mutation
	default:
		return b.CNA
	}
}

// LoaderConfig configures a DataLoader.
type LoaderConfig struct {
	BatchSize int
	Workers   int
	DropLast  bool
	// PinMemory is accepted for configuration parity; CPU batches are already
	// in host memory.
	PinMemory bool
	Device    tensor.DeviceType
}

// DataLoader provides batching of a cohort in sampler order. Batches are
// assembled by a fixed pool of workers and delivered in order.
type DataLoader struct {
	cohort  *Cohort
	sampler Sampler
	config  LoaderConfig

	mutex sync.Mutex
	err   error
}

// NewDataLoader creates a new DataLoader
func NewDataLoader(cohort *Cohort, sampler Sampler, config LoaderConfig) (*DataLoader, error) {
	if err := cohort.Validate(); err != nil {
		return nil, err
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if sampler == nil {
		sampler = SequentialSampler{N: cohort.Len()}
	}
	return &DataLoader{cohort: cohort, sampler: sampler, config: config}, nil
}

// Len returns the number of batches in an epoch of n samples.
func (dl *DataLoader) Len() int {
	n := dl.cohort.Len()
	if dl.config.DropLast {
		return n / dl.config.BatchSize
	}
	return (n + dl.config.BatchSize - 1) / dl.config.BatchSize
}

// Err returns the error that ended the last iteration, if any.
func (dl *DataLoader) Err() error {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.err
}

func (dl *DataLoader) setErr(err error) {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	if dl.err == nil {
		dl.err = err
	}
}

// Iterator draws a new epoch order from the sampler and returns a channel of
// its batches. The channel closes early on error; check Err afterwards.
func (dl *DataLoader) Iterator() <-chan *Batch {
	dl.mutex.Lock()
	dl.err = nil
	dl.mutex.Unlock()

	chunks := dl.chunks(dl.sampler.Indices())
	out := make(chan *Batch, 1)
	if len(chunks) == 0 {
		close(out)
		return out
	}

	results := make([]chan *Batch, len(chunks))
	for i := range results {
		results[i] = make(chan *Batch, 1)
	}
	jobs := make(chan int)
	// bounds how far the workers may run ahead of the consumer
	window := make(chan struct{}, 2*dl.config.Workers)
	done := make(chan struct{})

	go func() {
		defer close(jobs)
		for i := range chunks {
			select {
			case window <- struct{}{}:
			case <-done:
				return
			}
			select {
			case jobs <- i:
			case <-done:
				return
			}
		}
	}()

	for w := 0; w < dl.config.Workers; w++ {
		go func() {
			for i := range jobs {
				batch, err := dl.loadBatch(chunks[i])
				if err != nil {
					dl.setErr(fmt.Errorf("failed to load batch %d: %w", i, err))
				}
				results[i] <- batch
			}
		}()
	}

	go func() {
		defer close(out)
		defer close(done)
		for i := range chunks {
			batch := <-results[i]
			<-window
			if batch == nil {
				return
			}
			out <- batch
		}
	}()

	return out
}

// Batches collects a full epoch, for callers that do not stream.
func (dl *DataLoader) Batches() ([]*Batch, error) {
	var batches []*Batch
	for b := range dl.Iterator() {
		batches = append(batches, b)
	}
	return batches, dl.Err()
}

func (dl *DataLoader) chunks(order []int) [][]int {
	size := dl.config.BatchSize
	var chunks [][]int
	for start := 0; start < len(order); start += size {
		end := start + size
		if end > len(order) {
			if dl.config.DropLast {
				break
			}
			end = len(order)
		}
		chunks = append(chunks, order[start:end])
	}
	return chunks
}

// loadBatch gathers the rows of every modality into batch tensors
func (dl *DataLoader) loadBatch(indices []int) (*Batch, error) {
	batch := &Batch{Labels: make([]int, len(indices))}
	for k, i := range indices {
		batch.Labels[k] = dl.cohort.Response[i]
	}

	for _, m := range Modalities {
		src := dl.cohort.Matrix(m)
		cols := dl.cohort.Features(m)
		t, err := tensor.Zeros([]int{len(indices), cols}, dl.config.Device)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s batch tensor: %w", m, err)
		}
		for k, i := range indices {
			copy(t.Row(k), src.RawRowView(i))
		}
		switch m {
		case Expression:
			batch.Expression = t
		case Mutation:
			batch.Mutation = t
		case CNA:
			batch.CNA = t
		}
	}

	target, err := tensor.FromLabels(batch.Labels, dl.config.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to create target tensor: %w", err)
	}
	batch.Target = target
	return batch, nil
}

// Drain consumes the remaining batches of an iterator so its goroutines exit
// when a caller stops early.
func Drain(batches <-chan *Batch) {
	for range batches {
	}
}
