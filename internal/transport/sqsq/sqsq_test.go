package sqsq

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/evaluator"
	"github.com/programme-lv/judge/internal/lang"
	"github.com/programme-lv/judge/internal/pipeline"
	"github.com/programme-lv/judge/internal/sandbox/sandboxtest"
	"github.com/programme-lv/judge/internal/service"
	"github.com/programme-lv/judge/internal/store"
	"github.com/programme-lv/judge/internal/transport"
	"github.com/programme-lv/judge/internal/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu       sync.Mutex
	inbox    []types.Message
	sent     map[string][]string
	deleted  []string
	received chan struct{}
}

func newFakeClient(bodies ...string) *fakeClient {
	c := &fakeClient{sent: map[string][]string{}, received: make(chan struct{}, 16)}
	for i, b := range bodies {
		c.inbox = append(c.inbox, types.Message{
			Body:          aws.String(b),
			ReceiptHandle: aws.String("rh-" + string(rune('a'+i))),
		})
	}
	return c
}

func (c *fakeClient) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	c.mu.Lock()
	if len(c.inbox) > 0 {
		msg := c.inbox[0]
		c.inbox = c.inbox[1:]
		c.mu.Unlock()
		return &sqs.ReceiveMessageOutput{Messages: []types.Message{msg}}, nil
	}
	c.mu.Unlock()
	select {
	case c.received <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *fakeClient) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (c *fakeClient) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	url := aws.ToString(in.QueueUrl)
	c.sent[url] = append(c.sent[url], aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

type fakeJudge struct{ err error }

func (j fakeJudge) Judge(_ context.Context, req pipeline.Request) (*evaluator.Evaluation, error) {
	if j.err != nil {
		return nil, j.err
	}
	res := make([]verdict.TestResult, len(req.Tests))
	for i, tc := range req.Tests {
		res[i] = verdict.TestResult{TestCaseID: tc.ID, Status: verdict.Passed}
	}
	return &evaluator.Evaluation{TestResults: res, Result: verdict.SubmissionResult{Status: verdict.Accepted}}, nil
}

func newHandler(t *testing.T, judge service.Judge) *transport.Handler {
	t.Helper()
	langs, err := lang.New([]lang.Spec{sandboxtest.ToyScript})
	require.NoError(t, err)
	problems, err := store.NewMemoryProblems()
	require.NoError(t, err)
	svc := service.New(langs, problems, store.NewMemorySubmissions(), judge, nil)
	return transport.NewHandler(svc, nil)
}

func testBody(reqID, resUrl string) string {
	b, _ := json.Marshal(api.SqsReq{
		ReqID:     reqID,
		ResSqsUrl: resUrl,
		Test: &api.TestReq{
			Code:           "echo",
			Language:       api.Language{Name: "toy", Version: "1"},
			Input:          aws.String("hi"),
			ExpectedOutput: aws.String("hi"),
		},
	})
	return string(b)
}

func runConsumer(t *testing.T, c *Consumer, client *fakeClient) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	select {
	case <-client.received:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestConsumerAnswersAndDeletes(t *testing.T) {
	client := newFakeClient(testBody("r1", ""), testBody("r2", "override"), "{not json")
	c := New(client, Config{RequestQueueUrl: "req", ResponseQueueUrl: "res"}, newHandler(t, fakeJudge{}), nil)
	runConsumer(t, c, client)

	assert.ElementsMatch(t, []string{"rh-a", "rh-b", "rh-c"}, client.deleted)
	require.Len(t, client.sent["res"], 2)
	require.Len(t, client.sent["override"], 1)

	var resp api.SqsResp
	require.NoError(t, json.Unmarshal([]byte(client.sent["res"][0]), &resp))
	assert.Equal(t, "r1", resp.ReqID)
	require.NotNil(t, resp.Test)
	require.NotNil(t, resp.Test.Result)
	assert.Equal(t, string(verdict.Accepted), resp.Test.Result.Status)

	require.NoError(t, json.Unmarshal([]byte(client.sent["res"][1]), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, api.ErrInvalidRequest, resp.Error.Code)
}

func TestConsumerLeavesRetryableRequests(t *testing.T) {
	client := newFakeClient(testBody("r1", ""))
	c := New(client, Config{RequestQueueUrl: "req", ResponseQueueUrl: "res"}, newHandler(t, fakeJudge{err: pipeline.ErrQueueFull}), nil)
	runConsumer(t, c, client)

	assert.Empty(t, client.deleted)
	assert.Empty(t, client.sent)
}

func TestRunRequiresQueue(t *testing.T) {
	c := New(newFakeClient(), Config{}, nil, nil)
	assert.Error(t, c.Run(context.Background()))
}
