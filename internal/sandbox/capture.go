package sandbox

// CapWriter keeps the first max bytes written to it and silently drops the
// rest, so a chatty process never blocks on a full pipe.
type CapWriter struct {
	buf       []byte
	max       int64
	truncated bool
}

func NewCapWriter(max int64) *CapWriter {
	return &CapWriter{max: max}
}

func (w *CapWriter) Write(p []byte) (int, error) {
	room := w.max - int64(len(w.buf))
	if room <= 0 {
		if len(p) > 0 {
			w.truncated = true
		}
		return len(p), nil
	}
	if int64(len(p)) > room {
		w.buf = append(w.buf, p[:room]...)
		w.truncated = true
		return len(p), nil
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *CapWriter) Bytes() []byte {
	return w.buf
}

func (w *CapWriter) Truncated() bool {
	return w.truncated
}
