package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const sinkTimeout = 2 * time.Second

// Coordinator runs uploads for one editing session. Each target has at most
// one live attempt; attempts for different targets run concurrently.
type Coordinator struct {
	cfg    Config
	up     Uploader
	writer MediaWriter
	sink   StatusSink

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	seq     uint64
	entries map[string]*entry
}

// entry is one attempt. A running attempt is live while the entries map
// still points at its entry.
//
// seq numbers state changes under Coordinator.mu. Publishing happens outside
// that lock under pubMu, and a state older than the last one published is
// dropped, so sinks never see an attempt go backwards.
type entry struct {
	state  LessonState
	cancel context.CancelFunc
	seq    uint64

	pubMu     sync.Mutex
	published uint64
}

// NewCoordinator creates a coordinator. sink may be nil.
func NewCoordinator(cfg Config, up Uploader, w MediaWriter, sink StatusSink) *Coordinator {
	if sink == nil {
		sink = NopSink{}
	}
	base, stop := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:     cfg,
		up:      up,
		writer:  w,
		sink:    sink,
		base:    base,
		stop:    stop,
		entries: make(map[string]*entry),
	}
}

// Start validates f and begins uploading it to t in the background. A target
// that is still uploading or processing returns ErrUploadInFlight and is left
// alone. Validation failures are recorded as a failed state and returned as
// *Error before anything is sent. Start never calls the sink itself, so it is
// safe to call while holding a caller's lock.
func (c *Coordinator) Start(t Target, f File) (LessonState, error) {
	key := t.Key()

	c.mu.Lock()
	if e := c.entries[key]; e != nil && e.state.Status.InFlight() {
		st := e.state
		c.mu.Unlock()
		return st, ErrUploadInFlight
	}
	if c.base.Err() != nil {
		c.mu.Unlock()
		return LessonState{}, fmt.Errorf("upload coordinator closed")
	}

	c.seq++
	e := &entry{seq: 1, state: LessonState{
		Key:       key,
		Target:    t,
		Status:    StatusUploading,
		Attempt:   c.seq,
		UpdatedAt: time.Now(),
	}}

	ct, err := c.validate(t, f)
	if err != nil {
		var ue *Error
		errors.As(err, &ue)
		e.state.Status = StatusFailed
		e.state.Error = ue
		c.entries[key] = e
		st := e.state
		c.wg.Add(1)
		c.mu.Unlock()

		go c.publishAsync(e, st, 1)
		return st, err
	}

	ctx, cancel := context.WithCancel(c.base)
	e.cancel = cancel
	c.entries[key] = e
	st := e.state
	c.wg.Add(1)
	c.mu.Unlock()

	slog.Info("upload started", "key", key, "attempt", st.Attempt, "size", len(f.Data), "content_type", ct)
	go c.run(ctx, e, st, f, ct)
	return st, nil
}

// Invalidate drops the attempt for key. A running attempt is cancelled and
// will not write progress or media afterwards. The idle state is published
// in the background.
func (c *Coordinator) Invalidate(key string) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.entries, key)
	if e.cancel != nil {
		e.cancel()
	}
	e.seq++
	seq := e.seq
	st := LessonState{Key: key, Target: e.state.Target, Status: StatusIdle, Attempt: e.state.Attempt, UpdatedAt: time.Now()}
	c.wg.Add(1)
	c.mu.Unlock()

	slog.Debug("upload invalidated", "key", key, "attempt", st.Attempt)
	go c.publishAsync(e, st, seq)
	return true
}

// Rekey re-resolves every tracked target after the tree's ids changed.
// resolve returns the target with its current ids, or false when the node is
// gone, in which case the attempt is invalidated.
func (c *Coordinator) Rekey(resolve func(Target) (Target, bool)) {
	type drop struct {
		e   *entry
		st  LessonState
		seq uint64
	}
	var dropped []drop

	c.mu.Lock()
	next := make(map[string]*entry, len(c.entries))
	for _, e := range c.entries {
		nt, ok := resolve(e.state.Target)
		if !ok {
			if e.cancel != nil {
				e.cancel()
			}
			e.seq++
			dropped = append(dropped, drop{e: e, seq: e.seq, st: LessonState{
				Key: e.state.Key, Target: e.state.Target, Status: StatusIdle,
				Attempt: e.state.Attempt, UpdatedAt: time.Now(),
			}})
			continue
		}
		e.state.Target = nt
		e.state.Key = nt.Key()
		next[e.state.Key] = e
	}
	c.entries = next
	c.mu.Unlock()

	for _, d := range dropped {
		c.wg.Add(1)
		go c.publishAsync(d.e, d.st, d.seq)
	}
}

// State returns the upload state tracked under key.
func (c *Coordinator) State(key string) (LessonState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return LessonState{Key: key, Status: StatusIdle}, false
	}
	return e.state, true
}

// States returns every tracked upload ordered by key.
func (c *Coordinator) States() []LessonState {
	c.mu.Lock()
	out := make([]LessonState, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.state)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Wait blocks until every running attempt has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close cancels running attempts and waits for them to stop.
func (c *Coordinator) Close() {
	c.stop()
	c.wg.Wait()
}

func (c *Coordinator) run(ctx context.Context, e *entry, initial LessonState, f File, ct string) {
	defer c.wg.Done()
	defer e.cancel()

	c.publishEntry(e, initial, 1)

	c.mu.Lock()
	t := e.state.Target
	c.mu.Unlock()

	payload := encode(t, f, ct)
	resp, err := c.up.Upload(ctx, payload, func(sent, total int64) {
		if total <= 0 {
			return
		}
		pct := int(sent * (AcceptedMarker - 1) / total)
		c.update(e, func(s *LessonState) bool {
			if s.Status != StatusUploading || pct <= s.Progress {
				return false
			}
			s.Progress = pct
			return true
		})
	})
	if err != nil {
		c.fail(ctx, e, err)
		return
	}

	size := int64(len(f.Data))
	switch resp.Status {
	case RemoteCompleted:
		c.complete(ctx, e, size, resp)
	case RemoteAccepted:
		live := c.update(e, func(s *LessonState) bool {
			s.Status = StatusProcessing
			s.Progress = AcceptedMarker
			s.VideoID = resp.VideoID
			return true
		})
		if live {
			c.awaitProcessing(ctx, e, size, resp.VideoID)
		}
	default:
		c.fail(ctx, e, remoteFailure(resp))
	}
}

// awaitProcessing polls the collaborator until the accepted upload finishes
// or the processing window closes. Without a video id there is nothing to
// poll and only the window applies.
func (c *Coordinator) awaitProcessing(ctx context.Context, e *entry, size int64, videoID string) {
	deadline := time.NewTimer(c.cfg.ProcessingTimeout)
	defer deadline.Stop()

	var tick <-chan time.Time
	if videoID != "" && c.cfg.PollInterval > 0 {
		ticker := time.NewTicker(c.cfg.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			c.fail(ctx, e, &Error{
				Kind:    KindProcessingTimeout,
				Message: "the upload was accepted but processing did not finish in time",
				Err:     ErrProcessingTimeout,
			})
			return
		case <-tick:
			resp, err := c.up.Status(ctx, videoID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				var ue *Error
				if errors.As(err, &ue) && ue.Kind != KindNetworkUnreachable && ue.Kind != KindServerError {
					c.fail(ctx, e, err)
					return
				}
				slog.Warn("upload status poll failed", "video_id", videoID, "error", err)
				continue
			}
			switch resp.Status {
			case RemoteCompleted:
				c.complete(ctx, e, size, resp)
				return
			case RemoteFailed:
				c.fail(ctx, e, remoteFailure(resp))
				return
			}
		}
	}
}

func (c *Coordinator) complete(ctx context.Context, e *entry, size int64, resp Response) {
	if resp.URL == "" {
		c.fail(ctx, e, &Error{Kind: KindServerError, Message: "the upload finished without a media URL"})
		return
	}

	c.mu.Lock()
	t := e.state.Target
	c.mu.Unlock()

	r := Result{URL: resp.URL, Duration: resp.Duration, ThumbnailURL: resp.ThumbnailURL, FileSize: size}
	err := c.writer.WriteMedia(t, r, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.live(e) && e.state.Status.InFlight()
	})
	if errors.Is(err, ErrStale) {
		slog.Debug("discarding stale upload result", "key", t.Key())
		return
	}
	if err != nil {
		c.fail(ctx, e, &Error{Kind: KindValidation, Message: "could not attach the upload: " + err.Error(), Err: err})
		return
	}

	c.update(e, func(s *LessonState) bool {
		s.Status = StatusCompleted
		s.Progress = 100
		s.URL = resp.URL
		s.Error = nil
		return true
	})
	slog.Info("upload completed", "key", t.Key(), "url", resp.URL)
}

// fail records a terminal failure. Errors caused by the attempt's own
// cancellation are dropped: the attempt was invalidated.
func (c *Coordinator) fail(ctx context.Context, e *entry, err error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return
	}
	var ue *Error
	if !errors.As(err, &ue) {
		ue = &Error{Kind: KindNetworkUnreachable, Message: "the upload service could not be reached", Err: err}
	}
	var key string
	if c.update(e, func(s *LessonState) bool {
		s.Status = StatusFailed
		s.Error = ue
		key = s.Key
		return true
	}) {
		slog.Warn("upload failed", "key", key, "kind", ue.Kind, "error", err)
	}
}

// update applies fn to a live attempt and publishes the change. It reports
// whether the attempt was still live.
func (c *Coordinator) update(e *entry, fn func(*LessonState) bool) bool {
	c.mu.Lock()
	if !c.live(e) {
		c.mu.Unlock()
		return false
	}
	changed := fn(&e.state)
	if changed {
		e.state.UpdatedAt = time.Now()
		e.seq++
	}
	st, seq := e.state, e.seq
	c.mu.Unlock()

	if changed {
		c.publishEntry(e, st, seq)
	}
	return true
}

func (c *Coordinator) live(e *entry) bool {
	return c.entries[e.state.Key] == e
}

// publishAsync publishes from a tracked goroutine so callers holding their
// own locks never wait on a sink. The caller has already done wg.Add(1).
func (c *Coordinator) publishAsync(e *entry, st LessonState, seq uint64) {
	defer c.wg.Done()
	c.publishEntry(e, st, seq)
}

// publishEntry sends state number seq of e unless a newer one already went out.
func (c *Coordinator) publishEntry(e *entry, st LessonState, seq uint64) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	if seq <= e.published {
		return
	}
	e.published = seq
	c.publish(st)
}

func (c *Coordinator) publish(st LessonState) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := c.sink.Publish(ctx, st); err != nil {
		slog.Warn("publishing upload state", "key", st.Key, "error", err)
	}
}

func remoteFailure(resp Response) *Error {
	msg := resp.Message
	if msg == "" {
		msg = "the upload service rejected the file"
	}
	return &Error{Kind: KindServerError, Message: msg}
}
