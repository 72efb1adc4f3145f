package inmemory

import "sync"

type Snapshot struct {
	CaptureTotal          uint64 `json:"capture_total"`
	CaptureSuccess        uint64 `json:"capture_success"`
	CaptureTransfers      uint64 `json:"capture_transfers"`
	CaptureConflictRetry  uint64 `json:"capture_conflict_retries"`
	CaptureFailure        uint64 `json:"capture_failure"`
	PublishFailure        uint64 `json:"publish_failure"`
	ChannelDelivered      uint64 `json:"channel_delivered"`
	ChannelDropped        uint64 `json:"channel_dropped"`
	ChannelConnectionsNow int64  `json:"channel_connections"`
}

// Recorder counts capture outcomes and real-time channel traffic.
type Recorder struct {
	mu          sync.Mutex
	success     uint64
	transfers   uint64
	conflict    uint64
	failure     uint64
	publishFail uint64
	delivered   uint64
	dropped     uint64
	connections int64
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordSuccess(captured bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
	if captured {
		r.transfers++
	}
}

func (r *Recorder) RecordConflict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflict++
}

func (r *Recorder) RecordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure++
}

func (r *Recorder) RecordPublishFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishFail++
}

func (r *Recorder) RecordDelivered(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered += uint64(n)
}

func (r *Recorder) RecordDropped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
}

func (r *Recorder) RecordConnection(delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections += int64(delta)
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		CaptureTotal:          r.success + r.failure,
		CaptureSuccess:        r.success,
		CaptureTransfers:      r.transfers,
		CaptureConflictRetry:  r.conflict,
		CaptureFailure:        r.failure,
		PublishFailure:        r.publishFail,
		ChannelDelivered:      r.delivered,
		ChannelDropped:        r.dropped,
		ChannelConnectionsNow: r.connections,
	}
}

func (r *Recorder) SnapshotAny() any {
	return r.Snapshot()
}
