// File: internal/stress/stress.go
// Package stress drives a DoubleBuffer with one writer and many readers and
// checks that no reader ever observes a torn slot.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Two modes are supported. In gated mode the writer never reuses a slot a
// reader may still be reading, so every read must verify. In free mode the
// writer runs flat out; reads that overlapped a publication are counted as
// overruns and only the remaining reads are checked.

package stress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"github.com/momentics/hioload-dbuf/affinity"
	"github.com/momentics/hioload-dbuf/core/buffer"
	"github.com/momentics/hioload-dbuf/internal/config"
	"github.com/momentics/hioload-dbuf/internal/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/cpu"
)

// Report summarises a finished run.
type Report struct {
	RunID       string
	Mode        string
	Publishes   uint64
	Clears      uint64
	Reads       uint64
	Tears       uint64
	Overruns    uint64
	Generation  uint64
	Elapsed     time.Duration
	PublishRate float64 // moving average, per second
	ReadRate    float64 // moving average, per second
}

// Fields renders the report for structured logging. The run id is left out
// because the runner's logger already carries it.
func (r Report) Fields() []zap.Field {
	return []zap.Field{
		zap.String("mode", r.Mode),
		zap.Uint64("publishes", r.Publishes),
		zap.Uint64("clears", r.Clears),
		zap.Uint64("reads", r.Reads),
		zap.Uint64("tears", r.Tears),
		zap.Uint64("overruns", r.Overruns),
		zap.Uint64("generation", r.Generation),
		zap.Duration("elapsed", r.Elapsed),
		zap.Float64("publish_rate", r.PublishRate),
		zap.Float64("read_rate", r.ReadRate),
	}
}

// readerStats are written by one reader and read by the reporter.
type readerStats struct {
	ok      atomic.Uint64
	torn    atomic.Uint64
	overrun atomic.Uint64
	_       cpu.CacheLinePad
}

// sample is one reporting interval.
type sample struct {
	publishes uint64
	reads     uint64
	elapsed   time.Duration
}

// Runner runs one stress session against a buffer.
type Runner struct {
	buf     *buffer.DoubleBuffer
	cfg     config.StressConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	runID   string

	stop      atomic.Bool
	publishes atomic.Uint64
	clears    atomic.Uint64
	readers   []readerStats
	gate      *gate
}

// New creates a Runner. m may be nil to disable metrics.
func New(buf *buffer.DoubleBuffer, cfg config.StressConfig, logger *zap.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Runner{
		buf:     buf,
		cfg:     cfg,
		logger:  logger.With(zap.String("run_id", id)),
		metrics: m,
		runID:   id,
		readers: make([]readerStats, cfg.Readers),
		gate:    newGate(cfg.Readers),
	}
}

// RunID returns the identifier attached to every log line of this run.
func (r *Runner) RunID() string { return r.runID }

// Run holds the buffer's write capability until ctx is done or the
// configured duration elapses, then returns the final report. A Runner is
// good for one run.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	w, err := r.buf.AcquireWriter()
	if err != nil {
		return Report{}, errors.Wrap(err, "stress run needs the buffer's writer")
	}
	defer w.Release()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Duration)
	defer cancel()

	r.logger.Info("Stress run started",
		zap.String("mode", r.cfg.Mode),
		zap.Int("readers", r.cfg.Readers),
		zap.Int("size", r.buf.Size()),
		zap.Bool("mapped", r.buf.Mapped()),
		zap.Duration("duration", r.cfg.Duration),
	)

	start := time.Now()
	var wg sync.WaitGroup
	for i := range r.readers {
		wg.Add(1)
		go r.read(i, &wg)
	}
	writerDone := make(chan struct{})
	go r.write(w, writerDone)

	report := r.report(ctx, start)

	r.stop.Store(true)
	<-writerDone
	wg.Wait()

	report = r.finish(report, start)
	r.logger.Info("Stress run finished", report.Fields()...)
	return report, nil
}

func (r *Runner) write(w *buffer.Writer, done chan<- struct{}) {
	defer close(done)
	if r.cfg.WriterCPU >= 0 {
		unpin, err := affinity.Pin(r.cfg.WriterCPU)
		if err != nil {
			r.logger.Warn("Writer left unpinned", zap.Int("cpu", r.cfg.WriterCPU), zap.Error(err))
		} else {
			defer unpin()
			r.logger.Debug("Writer pinned", zap.Int("cpu", r.cfg.WriterCPU))
		}
	}
	src := make([]byte, r.buf.Size())
	gated := r.cfg.Mode == config.ModeGated
	for seq := uint64(1); !r.stop.Load(); seq++ {
		if gated {
			r.gate.wait(r.buf.Generation(), &r.stop)
			if r.stop.Load() {
				return
			}
		}
		if r.cfg.ClearEvery > 0 && seq%uint64(r.cfg.ClearEvery) == 0 {
			if err := w.Clear(); err != nil {
				r.logger.Error("Clear failed", zap.Error(err))
				return
			}
			r.clears.Add(1)
			continue
		}
		encode(seq, src)
		if _, err := w.Put(src); err != nil {
			r.logger.Error("Put failed", zap.Error(err))
			return
		}
		r.publishes.Add(1)
	}
}

func (r *Runner) read(i int, wg *sync.WaitGroup) {
	defer wg.Done()
	st := &r.readers[i]
	gated := r.cfg.Mode == config.ModeGated
	logged := false
	for !r.stop.Load() {
		var (
			seq uint64
			ok  bool
		)
		if gated {
			r.gate.enter(i, r.buf.Generation())
			seq, ok = verify(r.buf.Get())
			r.gate.leave(i)
		} else {
			g := r.buf.Generation()
			seq, ok = verify(r.buf.Get())
			if r.buf.Generation() != g {
				st.overrun.Add(1)
				continue
			}
		}
		if ok {
			st.ok.Add(1)
			continue
		}
		st.torn.Add(1)
		if !logged {
			logged = true
			r.logger.Warn("Torn read observed",
				zap.Int("reader", i),
				zap.Uint64("leading_seq", seq),
				zap.Uint64("generation", r.buf.Generation()),
			)
		}
	}
}

type totals struct {
	publishes, clears, ok, torn, overrun uint64
}

func (r *Runner) totals() totals {
	t := totals{publishes: r.publishes.Load(), clears: r.clears.Load()}
	for i := range r.readers {
		t.ok += r.readers[i].ok.Load()
		t.torn += r.readers[i].torn.Load()
		t.overrun += r.readers[i].overrun.Load()
	}
	return t
}

// report samples counters every ReportInterval until ctx is done, keeping a
// window of the most recent samples for the moving averages.
func (r *Runner) report(ctx context.Context, start time.Time) Report {
	ticker := time.NewTicker(r.cfg.ReportInterval)
	defer ticker.Stop()

	window := queue.New()
	var prev totals
	last := start
	var rep Report
	for {
		select {
		case <-ctx.Done():
			return rep
		case now := <-ticker.C:
			cur := r.totals()
			window.Add(sample{
				publishes: (cur.publishes + cur.clears) - (prev.publishes + prev.clears),
				reads:     (cur.ok + cur.torn + cur.overrun) - (prev.ok + prev.torn + prev.overrun),
				elapsed:   now.Sub(last),
			})
			if window.Length() > r.cfg.Window {
				window.Remove()
			}
			rep.PublishRate, rep.ReadRate = movingAverage(window)
			r.flushMetrics(prev, cur, rep)
			prev, last = cur, now

			r.logger.Debug("Stress progress",
				zap.Uint64("generation", r.buf.Generation()),
				zap.Float64("publish_rate", rep.PublishRate),
				zap.Float64("read_rate", rep.ReadRate),
				zap.Uint64("tears", cur.torn),
			)
		}
	}
}

func (r *Runner) finish(rep Report, start time.Time) Report {
	cur := r.totals()
	rep.RunID = r.runID
	rep.Mode = r.cfg.Mode
	rep.Publishes = cur.publishes
	rep.Clears = cur.clears
	rep.Reads = cur.ok + cur.torn + cur.overrun
	rep.Tears = cur.torn
	rep.Overruns = cur.overrun
	rep.Generation = r.buf.Generation()
	rep.Elapsed = time.Since(start)
	if rep.PublishRate == 0 && rep.Elapsed > 0 {
		secs := rep.Elapsed.Seconds()
		rep.PublishRate = float64(rep.Publishes+rep.Clears) / secs
		rep.ReadRate = float64(rep.Reads) / secs
	}
	return rep
}

func (r *Runner) flushMetrics(prev, cur totals, rep Report) {
	if r.metrics == nil {
		return
	}
	r.metrics.AddReads(metrics.OutcomeOK, cur.ok-prev.ok)
	r.metrics.AddReads(metrics.OutcomeTorn, cur.torn-prev.torn)
	r.metrics.AddReads(metrics.OutcomeOverrun, cur.overrun-prev.overrun)
	r.metrics.PublishRate.Set(rep.PublishRate)
	r.metrics.ReadRate.Set(rep.ReadRate)
}

func movingAverage(window *queue.Queue) (publishRate, readRate float64) {
	var pubs, reads uint64
	var elapsed time.Duration
	for i := 0; i < window.Length(); i++ {
		s := window.Get(i).(sample)
		pubs += s.publishes
		reads += s.reads
		elapsed += s.elapsed
	}
	if elapsed <= 0 {
		return 0, 0
	}
	secs := elapsed.Seconds()
	return float64(pubs) / secs, float64(reads) / secs
}
