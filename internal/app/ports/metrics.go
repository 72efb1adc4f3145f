package ports

type CaptureMetrics interface {
	RecordSuccess(captured bool)
	RecordConflict()
	RecordFailure()
	RecordPublishFailure()
}
