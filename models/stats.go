package models

// TaskStats carries progress and throughput counters for one task.
// It is always read and written under the owning task's lock.
type TaskStats struct {
	Progress        float64 `json:"progress"`
	TotalBytes      int64   `json:"total_bytes"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	Speed           float64 `json:"speed"`
	ETASeconds      float64 `json:"eta"`
}

// recompute derives Progress from the byte counters, clamped to
// [0,100]. A zero total yields zero progress.
func (s *TaskStats) recompute() {
	if s.TotalBytes <= 0 {
		s.Progress = 0
		return
	}
	p := float64(s.DownloadedBytes) / float64(s.TotalBytes) * 100
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	s.Progress = p
}
