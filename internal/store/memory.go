package store

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

type MemorySubmissions struct {
	lastID atomic.Int64
	subms  *xsync.MapOf[int64, *Submission]
}

func NewMemorySubmissions() *MemorySubmissions {
	return &MemorySubmissions{subms: xsync.NewMapOf[int64, *Submission]()}
}

func (m *MemorySubmissions) Create(_ context.Context, s *Submission) error {
	s.ID = m.lastID.Add(1)
	cp := *s
	m.subms.Store(s.ID, &cp)
	return nil
}

func (m *MemorySubmissions) Get(_ context.Context, id int64) (*Submission, error) {
	s, ok := m.subms.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrSubmissionNotFound, id)
	}
	cp := *s
	return &cp, nil
}

func (m *MemorySubmissions) ListByProblem(_ context.Context, problemID string) ([]*Submission, error) {
	var res []*Submission
	m.subms.Range(func(_ int64, s *Submission) bool {
		if s.ProblemID == problemID {
			cp := *s
			res = append(res, &cp)
		}
		return true
	})
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}
