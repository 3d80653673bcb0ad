// Package natsrpc serves judge requests over NATS request/reply. Each
// request is answered with a JSON response on its reply subject; progress
// can be streamed to a separate inbox named in the request.
package natsrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/evaluator"
	"github.com/programme-lv/judge/internal/gatherer/natsgath"
	"github.com/programme-lv/judge/internal/transport"
)

const (
	SubjectSubmit          = "judge.submit"
	SubjectTest            = "judge.test"
	SubjectGetSubmission   = "judge.submission.get"
	SubjectListSubmissions = "judge.submission.list"
	SubjectRejudge         = "judge.submission.rejudge"
	SubjectLanguages       = "judge.languages"

	QueueGroup = "judge"
)

type Server struct {
	nc      *nats.Conn
	handler *transport.Handler
	log     *slog.Logger
	subs    []*nats.Subscription
	calls   inflight
}

// inflight counts running handlers. Once closed it admits no more, since
// a draining subscription still delivers messages it had buffered.
type inflight struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (f *inflight) start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.wg.Add(1)
	return true
}

func (f *inflight) done() {
	f.wg.Done()
}

func (f *inflight) closeAndWait() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}

type unavailableResp struct {
	Error *api.Error `json:"error"`
}

func New(nc *nats.Conn, handler *transport.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{nc: nc, handler: handler, log: log}
}

// StreamFactory streams progress messages over nc.
func StreamFactory(nc *nats.Conn, log *slog.Logger) transport.StreamFactory {
	return func(inbox string) evaluator.Gatherer {
		return natsgath.New(nc, uuid.NewString(), inbox, log)
	}
}

type handlerFunc func(ctx context.Context, data []byte) any

// Serve subscribes to every judge subject and blocks until ctx is done.
// Requests in flight are allowed to finish before Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	routes := map[string]handlerFunc{
		SubjectSubmit: func(ctx context.Context, data []byte) any {
			var req api.SubmitReq
			if err := transport.Decode(data, &req); err != nil {
				return api.SubmitResp{Error: err}
			}
			return s.handler.Submit(ctx, req)
		},
		SubjectTest: func(ctx context.Context, data []byte) any {
			var req api.TestReq
			if err := transport.Decode(data, &req); err != nil {
				return api.TestResp{Error: err}
			}
			return s.handler.Test(ctx, req)
		},
		SubjectGetSubmission: func(ctx context.Context, data []byte) any {
			var req api.GetSubmissionReq
			if err := transport.Decode(data, &req); err != nil {
				return api.SubmitResp{Error: err}
			}
			return s.handler.Submission(ctx, req)
		},
		SubjectListSubmissions: func(ctx context.Context, data []byte) any {
			var req api.ListSubmissionsReq
			if err := transport.Decode(data, &req); err != nil {
				return api.SubmissionsResp{Error: err}
			}
			return s.handler.Submissions(ctx, req)
		},
		SubjectRejudge: func(ctx context.Context, data []byte) any {
			var req api.RejudgeReq
			if err := transport.Decode(data, &req); err != nil {
				return api.TestResp{Error: err}
			}
			return s.handler.Rejudge(ctx, req)
		},
		SubjectLanguages: func(context.Context, []byte) any {
			return s.handler.Languages()
		},
	}

	// admitted requests run to completion even after ctx is done
	hctx := context.WithoutCancel(ctx)
	for subject, h := range routes {
		sub, err := s.nc.QueueSubscribe(subject, QueueGroup, func(msg *nats.Msg) {
			if !s.calls.start() {
				s.respond(hctx, msg, func(context.Context, []byte) any {
					return unavailableResp{Error: transport.Unavailable()}
				})
				return
			}
			go func() {
				defer s.calls.done()
				s.respond(hctx, msg, h)
			}()
		})
		if err != nil {
			s.unsubscribe()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	s.log.Info("serving judge requests over nats", slog.String("url", s.nc.ConnectedUrl()))

	<-ctx.Done()
	s.unsubscribe()
	s.calls.closeAndWait()
	return nil
}

func (s *Server) unsubscribe() {
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil {
			s.log.Warn("failed to drain subscription", slog.String("subject", sub.Subject), slog.Any("error", err))
		}
	}
	s.subs = nil
}

func (s *Server) respond(ctx context.Context, msg *nats.Msg, h handlerFunc) {
	resp := h(ctx, msg.Data)
	if msg.Reply == "" {
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to marshal response", slog.String("subject", msg.Subject), slog.Any("error", err))
		return
	}
	if err := msg.Respond(b); err != nil {
		s.log.Warn("failed to respond", slog.String("subject", msg.Subject), slog.Any("error", err))
	}
}
