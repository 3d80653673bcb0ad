package api

// RuntimeData describes one process run, with its output cut down to fit
// MaxRuntimeDataHeight lines of MaxRuntimeDataWidth bytes.
type RuntimeData struct {
	Stdin  string `json:"in,omitempty"`
	Stdout string `json:"out"`
	Stderr string `json:"err"`

	ExitCode   *int64 `json:"exit,omitempty"`
	ExitSignal *int64 `json:"signal,omitempty"`
	Reason     string `json:"reason"`

	CpuMillis  int64 `json:"cpu_ms"`
	WallMillis int64 `json:"wall_ms"`
	RamKiBytes int64 `json:"ram_kib"`

	StdoutTruncated bool `json:"out_truncated,omitempty"`
	StderrTruncated bool `json:"err_truncated,omitempty"`
}
