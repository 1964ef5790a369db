// Package thumbs generates small preview images for expensive chart records
// in the background, so a burst of inbound plots never blocks the viewport.
package thumbs

import (
	"bytes"
	"image"
	"image/png"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/plotview/plotview/core"
)

const (
	// Offscreen render resolution. Large enough for visual fidelity,
	// independent of the final thumbnail size.
	RenderWidth  = 800
	RenderHeight = 600

	// Fixed thumbnail canvas, 4:3 to match the history strip cells.
	ThumbWidth  = 168
	ThumbHeight = 126
)

// RenderFunc produces a full-resolution preview image for one chart record.
type RenderFunc func(*core.PlotMessage) (image.Image, error)

// Pipeline is a FIFO work queue drained by a single worker goroutine, so at
// most one thumbnail job is ever in flight and jobs complete in enqueue
// order. Results land in an id-keyed cache; entries are permanent for the
// session since a record's payload is immutable once received.
type Pipeline struct {
	mu     sync.Mutex
	queue  []*core.PlotMessage
	cache  map[string][]byte // record id -> thumbnail PNG
	closed bool

	wake   chan struct{}
	done   chan struct{}
	render RenderFunc
	wg     sync.WaitGroup
}

// NewPipeline creates a pipeline using the chart renderer and starts its
// worker.
func NewPipeline() *Pipeline {
	return NewPipelineFunc(RenderChart)
}

// NewPipelineFunc creates a pipeline with a custom render function.
func NewPipelineFunc(render RenderFunc) *Pipeline {
	p := &Pipeline{
		cache:  make(map[string][]byte),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		render: render,
	}
	p.wg.Add(1)
	go p.worker()
	return p
}

// Enqueue adds a record to the queue. Records whose thumbnail already exists
// are skipped, which makes duplicate enqueues (e.g. from replay) harmless.
func (p *Pipeline) Enqueue(msg *core.PlotMessage) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if _, ok := p.cache[msg.ID]; ok {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, msg)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Thumbnail returns the cached preview PNG for a record id, if generated.
func (p *Pipeline) Thumbnail(id string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.cache[id]
	return b, ok
}

// Has reports whether a thumbnail exists for the given record id.
func (p *Pipeline) Has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.cache[id]
	return ok
}

// Pending returns the number of queued jobs not yet processed.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops the worker. Pending jobs are abandoned, not drained; there is
// no cancellation of the job already in flight.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.done)
	p.wg.Wait()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for {
		msg := p.next()
		if msg == nil {
			select {
			case <-p.wake:
				continue
			case <-p.done:
				return
			}
		}

		select {
		case <-p.done:
			return
		default:
		}

		p.process(msg)
	}
}

// next pops the oldest queued record, or nil when the queue is empty.
func (p *Pipeline) next() *core.PlotMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil
	}
	msg := p.queue[0]
	p.queue = p.queue[1:]
	return msg
}

// process runs one job: full-resolution offscreen render, downsample onto the
// thumbnail canvas, store. Failures are logged and leave no cache entry, so
// the history strip falls back to a kind label for that record.
func (p *Pipeline) process(msg *core.PlotMessage) {
	if p.Has(msg.ID) {
		return
	}

	full, err := p.render(msg)
	if err != nil {
		core.Warn("thumbnail render failed for %s: %v", msg.ID, err)
		return
	}

	thumb, err := downsample(full)
	if err != nil {
		core.Warn("thumbnail downsample failed for %s: %v", msg.ID, err)
		return
	}

	p.mu.Lock()
	p.cache[msg.ID] = thumb
	p.mu.Unlock()
	core.Debug("thumbnail ready for %s", msg.ID)
}

// downsample scales a full-resolution render onto the fixed thumbnail canvas
// and encodes it as PNG.
func downsample(src image.Image) ([]byte, error) {
	dst := image.NewRGBA(image.Rect(0, 0, ThumbWidth, ThumbHeight))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
