package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/marcopiovanello/yt-dlp-api/server/internal"
	"github.com/marcopiovanello/yt-dlp-api/server/internal/extractor"
	"golang.org/x/sync/errgroup"
)

var ErrStopped = errors.New("download queue stopped")

type message struct {
	job    *internal.DownloadJob
	result chan internal.DownloadResult
}

// Pool runs extractions on a fixed number of workers so a burst of requests
// cannot spawn an unbounded amount of yt-dlp processes.
type Pool struct {
	concurrency   int
	extractor     extractor.Extractor
	downloadQueue chan message
	running       atomic.Int32
	group         *errgroup.Group
	ctx           context.Context
	cancel        context.CancelFunc
	stopped       chan struct{}
	stopOnce      sync.Once
}

func NewPool(size int, e extractor.Extractor) (*Pool, error) {
	if size <= 0 {
		return nil, errors.New("invalid queue size")
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	return &Pool{
		concurrency:   size,
		extractor:     e,
		downloadQueue: make(chan message, size*2),
		group:         group,
		ctx:           ctx,
		cancel:        cancel,
		stopped:       make(chan struct{}),
	}, nil
}

// Start spawns the workers.
func (p *Pool) Start() {
	for i := 0; i < p.concurrency; i++ {
		workerId := i
		p.group.Go(func() error {
			p.downloadWorker(workerId)
			return nil
		})
	}
}

// Submit hands job to the workers. It blocks until a queue slot is free, ctx
// only bounds that wait: an accepted job runs to completion even if the
// caller goes away. The returned channel receives exactly one result.
func (p *Pool) Submit(ctx context.Context, job *internal.DownloadJob) (<-chan internal.DownloadResult, error) {
	m := message{
		job:    job,
		result: make(chan internal.DownloadResult, 1),
	}

	select {
	case <-p.ctx.Done():
		return nil, ErrStopped
	default:
	}

	select {
	case p.downloadQueue <- m:
		slog.Info("published download", slog.String("id", job.Token))
		return m.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, ErrStopped
	}
}

// Await waits for the result of a submitted job. A job that made it into the
// queue after Stop drained it will never run, it is reported as ErrStopped
// once the workers are gone.
func (p *Pool) Await(ctx context.Context, res <-chan internal.DownloadResult) (internal.DownloadResult, error) {
	select {
	case r := <-res:
		return r, nil
	case <-ctx.Done():
		return internal.DownloadResult{}, ctx.Err()
	case <-p.stopped:
	}

	// the worker or the drain may have answered right before returning
	select {
	case r := <-res:
		return r, nil
	default:
		return internal.DownloadResult{Err: ErrStopped}, nil
	}
}

func (p *Pool) downloadWorker(workerId int) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case m := <-p.downloadQueue:
			p.running.Add(1)

			slog.Info("download worker started",
				slog.Int("worker", workerId),
				slog.String("id", m.job.Token),
				slog.String("url", m.job.URL),
			)

			path, err := p.extractor.Extract(p.ctx, m.job.URL, m.job.Template)
			if err != nil && p.ctx.Err() != nil {
				err = errors.Join(ErrStopped, err)
			}
			m.result <- internal.DownloadResult{Path: path, Err: err}

			p.running.Add(-1)
		}
	}
}

type Stats struct {
	Workers int `json:"workers"`
	Queued  int `json:"queued"`
	Running int `json:"running"`
}

func (p *Pool) Stats() Stats {
	return Stats{
		Workers: p.concurrency,
		Queued:  len(p.downloadQueue),
		Running: int(p.running.Load()),
	}
}

// Done is closed once the pool has been stopped.
func (p *Pool) Done() <-chan struct{} { return p.ctx.Done() }

// Stop cancels in-flight extractions and waits for every worker to return.
// Jobs still waiting in the queue are never run, their submitters receive
// ErrStopped.
func (p *Pool) Stop() error {
	p.cancel()
	err := p.group.Wait()

	for {
		select {
		case m := <-p.downloadQueue:
			m.result <- internal.DownloadResult{Err: ErrStopped}
		default:
			p.stopOnce.Do(func() { close(p.stopped) })
			return err
		}
	}
}
