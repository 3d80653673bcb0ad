package isolate

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Metrics is the content of an isolate meta file.
type Metrics struct {
	TimeSec      float64
	TimeWallSec  float64
	MaxRssKb     int64
	CswVoluntary int64
	CswForced    int64
	CgMemKb      int64
	CgOomKilled  bool
	ExitCode     int
	ExitSig      int
	Killed       bool
	// Status is empty on success, otherwise RE, SG, TO or XX.
	Status  string
	Message string
}

func parseMetaFile(data []byte) (*Metrics, error) {
	m := &Metrics{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		var err error
		switch key {
		case "time":
			m.TimeSec, err = strconv.ParseFloat(val, 64)
		case "time-wall":
			m.TimeWallSec, err = strconv.ParseFloat(val, 64)
		case "max-rss":
			m.MaxRssKb, err = strconv.ParseInt(val, 10, 64)
		case "csw-voluntary":
			m.CswVoluntary, err = strconv.ParseInt(val, 10, 64)
		case "csw-forced":
			m.CswForced, err = strconv.ParseInt(val, 10, 64)
		case "cg-mem":
			m.CgMemKb, err = strconv.ParseInt(val, 10, 64)
		case "cg-oom-killed":
			m.CgOomKilled = val == "1"
		case "exitcode":
			m.ExitCode, err = strconv.Atoi(val)
		case "exitsig":
			m.ExitSig, err = strconv.Atoi(val)
		case "killed":
			m.Killed = val == "1"
		case "status":
			m.Status = val
		case "message":
			m.Message = val
		}
		if err != nil {
			return nil, fmt.Errorf("meta field %s: %w", key, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// MemoryKiB prefers the cgroup figure, which covers every process of the run.
func (m *Metrics) MemoryKiB() int64 {
	if m.CgMemKb > 0 {
		return m.CgMemKb
	}
	return m.MaxRssKb
}
