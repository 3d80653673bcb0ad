// Package transport adapts the service to wire requests and responses. The
// nats and sqs subpackages move these over the network.
package transport

import (
	"context"
	"encoding/json"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/evaluator"
	"github.com/programme-lv/judge/internal/service"
)

// StreamFactory opens a progress stream to inbox. It may return nil.
type StreamFactory func(inbox string) evaluator.Gatherer

type Handler struct {
	svc    *service.Service
	stream StreamFactory
}

func NewHandler(svc *service.Service, stream StreamFactory) *Handler {
	return &Handler{svc: svc, stream: stream}
}

func (h *Handler) gatherer(inbox string) evaluator.Gatherer {
	if inbox == "" || h.stream == nil {
		return nil
	}
	return h.stream(inbox)
}

func (h *Handler) Submit(ctx context.Context, req api.SubmitReq) api.SubmitResp {
	subm, err := h.svc.Submit(ctx, service.SubmitRequest{
		ProblemID: req.ProblemID,
		StudentID: req.StudentID,
		Code:      req.Code,
		Language:  LanguageRef(req.Language),
		Gatherer:  h.gatherer(req.StreamInbox),
	})
	if err != nil {
		return api.SubmitResp{Error: ErrorFrom(err)}
	}
	return api.SubmitResp{Submission: Submission(subm)}
}

func (h *Handler) Test(ctx context.Context, req api.TestReq) api.TestResp {
	eval, err := h.svc.Test(ctx, service.TestRequest{
		Code:             req.Code,
		Language:         LanguageRef(req.Language),
		Tests:            TestReqCases(req),
		TimeLimitMs:      req.TimeLimitMs,
		MemoryLimitBytes: req.MemoryLimitBytes,
		Gatherer:         h.gatherer(req.StreamInbox),
	})
	if err != nil {
		return api.TestResp{Error: ErrorFrom(err)}
	}
	res := SubmissionResult(eval.Result)
	return api.TestResp{Result: &res, TestResults: TestResults(eval.TestResults)}
}

func (h *Handler) Submission(ctx context.Context, req api.GetSubmissionReq) api.SubmitResp {
	subm, err := h.svc.Submission(ctx, req.ID)
	if err != nil {
		return api.SubmitResp{Error: ErrorFrom(err)}
	}
	return api.SubmitResp{Submission: Submission(subm)}
}

func (h *Handler) Rejudge(ctx context.Context, req api.RejudgeReq) api.TestResp {
	eval, err := h.svc.Rejudge(ctx, req.ID, h.gatherer(req.StreamInbox))
	if err != nil {
		return api.TestResp{Error: ErrorFrom(err)}
	}
	res := SubmissionResult(eval.Result)
	return api.TestResp{Result: &res, TestResults: TestResults(eval.TestResults)}
}

func (h *Handler) Submissions(ctx context.Context, req api.ListSubmissionsReq) api.SubmissionsResp {
	subms, err := h.svc.Submissions(ctx, req.ProblemID)
	if err != nil {
		return api.SubmissionsResp{Error: ErrorFrom(err)}
	}
	res := api.SubmissionsResp{Submissions: make([]api.Submission, 0, len(subms))}
	for _, s := range subms {
		res.Submissions = append(res.Submissions, *Submission(s))
	}
	return res
}

func (h *Handler) Languages() api.LanguagesResp {
	specs := h.svc.Languages()
	res := api.LanguagesResp{Languages: make([]api.LanguageInfo, 0, len(specs))}
	for _, s := range specs {
		res.Languages = append(res.Languages, LanguageInfo(s))
	}
	return res
}

// HandleSqs serves an SQS envelope.
func (h *Handler) HandleSqs(ctx context.Context, body []byte) api.SqsResp {
	var req api.SqsReq
	if err := json.Unmarshal(body, &req); err != nil {
		return api.SqsResp{Error: invalidJSON(err)}
	}
	res := api.SqsResp{ReqID: req.ReqID}
	switch {
	case req.Submit != nil:
		r := h.Submit(ctx, *req.Submit)
		res.Submit = &r
	case req.Test != nil:
		r := h.Test(ctx, *req.Test)
		res.Test = &r
	default:
		res.Error = ErrorFrom(service.ErrInvalidRequest)
	}
	return res
}

// Decode unmarshals a JSON request, reporting failures in wire form.
func Decode(data []byte, v any) *api.Error {
	if err := json.Unmarshal(data, v); err != nil {
		return invalidJSON(err)
	}
	return nil
}
