package tracing

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/divpanel/internal/shared/id"
)

// Propagation headers
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

const queueSize = 1024

type (
	TraceID string
	SpanID  string
)

// Span times one operation within a trace
type Span struct {
	TraceID  TraceID
	SpanID   SpanID
	ParentID SpanID
	Name     string
	Start    time.Time
	Duration time.Duration
	Status   int
	Err      error

	mu     sync.Mutex
	attrs  map[string]string
	tracer *Tracer
	ended  atomic.Bool
}

// Tracer collects ended spans and logs them from a single goroutine
type Tracer struct {
	service string
	logger  *zap.Logger
	queue   chan *Span
	dropped atomic.Uint64

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// New starts a tracer for service. A nil logger discards spans.
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger.With(zap.String("service", service)),
		queue:   make(chan *Span, queueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

// Close logs the spans still queued and stops the collector
func (t *Tracer) Close() {
	t.once.Do(func() {
		close(t.stop)
		<-t.done
	})
}

// Dropped returns how many spans were discarded on a full queue
func (t *Tracer) Dropped() uint64 { return t.dropped.Load() }

type (
	spanKey   struct{}
	tracerKey struct{}
)

// Start opens a span under the span ctx carries and makes t the tracer
// for every span started from the returned context
func (t *Tracer) Start(ctx context.Context, name string) (context.Context, *Span) {
	ctx = context.WithValue(ctx, tracerKey{}, t)
	return start(ctx, t, name)
}

// Start opens a child span with the tracer ctx carries. Without one the
// span still gets ids but End does not record it.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	t, _ := ctx.Value(tracerKey{}).(*Tracer)
	return start(ctx, t, name)
}

func start(ctx context.Context, t *Tracer, name string) (context.Context, *Span) {
	span := &Span{
		SpanID: SpanID(id.NewSpanID()),
		Name:   name,
		Start:  time.Now(),
		attrs:  make(map[string]string),
		tracer: t,
	}
	if parent := FromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	} else {
		span.TraceID = TraceID(id.NewTraceID())
	}
	return context.WithValue(ctx, spanKey{}, span), span
}

// Continue makes ctx carry a span received from upstream so new spans join
// its trace. An empty traceID leaves ctx unchanged.
func Continue(ctx context.Context, traceID TraceID, parent SpanID) context.Context {
	if traceID == "" {
		return ctx
	}
	remote := &Span{TraceID: traceID, SpanID: parent}
	remote.ended.Store(true)
	return context.WithValue(ctx, spanKey{}, remote)
}

// FromContext returns the span ctx carries, or nil
func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// TraceIDFrom returns the trace of the span ctx carries
func TraceIDFrom(ctx context.Context) TraceID {
	if s := FromContext(ctx); s != nil {
		return s.TraceID
	}
	return ""
}

// Inject writes the ids of the span ctx carries into h
func Inject(ctx context.Context, h http.Header) {
	s := FromContext(ctx)
	if s == nil {
		return
	}
	h.Set(HeaderTraceID, string(s.TraceID))
	if s.SpanID != "" {
		h.Set(HeaderSpanID, string(s.SpanID))
	}
}

// Annotate tags the span
func (s *Span) Annotate(key, value string) *Span {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
	return s
}

// Attr returns a tag set by Annotate
func (s *Span) Attr(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs[key]
}

// End records the outcome and hands the span to its tracer. Only the first
// call has any effect.
func (s *Span) End(err error) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	s.Duration = time.Since(s.Start)
	s.Err = err
	if s.tracer != nil {
		s.tracer.submit(s)
	}
}

func (t *Tracer) submit(s *Span) {
	select {
	case <-t.stop:
		return
	default:
	}

	select {
	case t.queue <- s:
	default:
		t.dropped.Add(1)
	}
}

func (t *Tracer) collect() {
	defer close(t.done)
	for {
		select {
		case s := <-t.queue:
			t.log(s)
		case <-t.stop:
			for {
				select {
				case s := <-t.queue:
					t.log(s)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracer) log(s *Span) {
	fields := []zap.Field{
		zap.String("trace_id", string(s.TraceID)),
		zap.String("span_id", string(s.SpanID)),
		zap.String("span", s.Name),
		zap.Duration("duration", s.Duration),
	}
	if s.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(s.ParentID)))
	}
	if s.Status != 0 {
		fields = append(fields, zap.Int("status", s.Status))
	}

	s.mu.Lock()
	keys := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.String(k, s.attrs[k]))
	}
	s.mu.Unlock()

	if s.Err != nil {
		t.logger.Warn("span failed", append(fields, zap.Error(s.Err))...)
		return
	}
	t.logger.Debug("span", fields...)
}
