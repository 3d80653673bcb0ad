package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const archiveExt = ".json.zst"

// Archive keeps every submission as a zstd compressed JSON file named
// <id>.json.zst in one directory.
type Archive struct {
	dir string
	enc *zstd.Encoder
	dec *zstd.Decoder

	mu     sync.Mutex
	lastID int64
}

func OpenArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	a := &Archive{dir: dir, enc: enc, dec: dec}

	ids, err := a.ids()
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		a.lastID = ids[len(ids)-1]
	}
	return a, nil
}

func (a *Archive) Close() error {
	a.dec.Close()
	return a.enc.Close()
}

func (a *Archive) path(id int64) string {
	return filepath.Join(a.dir, strconv.FormatInt(id, 10)+archiveExt)
}

func (a *Archive) ids() ([]int64, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("read archive dir: %w", err)
	}
	var ids []int64
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), archiveExt)
		if !ok || e.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (a *Archive) Create(_ context.Context, s *Submission) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s.ID = a.lastID + 1
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	// write then rename, so readers never see half a file
	tmp := a.path(s.ID) + ".tmp"
	if err := os.WriteFile(tmp, a.enc.EncodeAll(data, nil), 0o644); err != nil {
		return fmt.Errorf("write submission: %w", err)
	}
	if err := os.Rename(tmp, a.path(s.ID)); err != nil {
		return fmt.Errorf("write submission: %w", err)
	}
	a.lastID = s.ID
	return nil
}

func (a *Archive) Get(_ context.Context, id int64) (*Submission, error) {
	compressed, err := os.ReadFile(a.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %d", ErrSubmissionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read submission: %w", err)
	}
	data, err := a.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress submission %d: %w", id, err)
	}
	var s Submission
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode submission %d: %w", id, err)
	}
	return &s, nil
}

func (a *Archive) ListByProblem(ctx context.Context, problemID string) ([]*Submission, error) {
	ids, err := a.ids()
	if err != nil {
		return nil, err
	}
	var res []*Submission
	for _, id := range ids {
		s, err := a.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.ProblemID == problemID {
			res = append(res, s)
		}
	}
	return res, nil
}
