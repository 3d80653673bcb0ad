// Package sqsq consumes judge requests from an SQS queue and sends the
// responses to another queue.
package sqsq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/transport"
	"golang.org/x/sync/errgroup"
)

// Client is the part of *sqs.Client the consumer uses.
type Client interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type Config struct {
	RequestQueueUrl  string
	ResponseQueueUrl string
	// Pollers is the number of concurrent receive loops.
	Pollers         int
	WaitTimeSeconds int32
}

type Consumer struct {
	client  Client
	cfg     Config
	handler *transport.Handler
	log     *slog.Logger
}

func New(client Client, cfg Config, handler *transport.Handler, log *slog.Logger) *Consumer {
	if cfg.Pollers <= 0 {
		cfg.Pollers = 1
	}
	if cfg.WaitTimeSeconds <= 0 {
		cfg.WaitTimeSeconds = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{client: client, cfg: cfg, handler: handler, log: log.With(slog.String("queue", cfg.RequestQueueUrl))}
}

// Run polls until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	if c.cfg.RequestQueueUrl == "" {
		return fmt.Errorf("request queue url is required")
	}
	c.log.Info("consuming judge requests from sqs", slog.Int("pollers", c.cfg.Pollers))
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.cfg.Pollers; i++ {
		g.Go(func() error {
			c.poll(gctx)
			return nil
		})
	}
	return g.Wait()
}

func (c *Consumer) poll(ctx context.Context) {
	for ctx.Err() == nil {
		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.cfg.RequestQueueUrl),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     c.cfg.WaitTimeSeconds,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("failed to receive messages", slog.Any("error", err))
			sleep(ctx, time.Second)
			continue
		}
		for _, msg := range out.Messages {
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg types.Message) {
	body := aws.ToString(msg.Body)
	resp := c.handler.HandleSqs(ctx, []byte(body))

	if retryable(resp) {
		// left on the queue, it comes back after the visibility timeout
		c.log.Info("request deferred", slog.String("req", resp.ReqID))
		return
	}

	resQueue := c.cfg.ResponseQueueUrl
	var envelope struct {
		ResSqsUrl string `json:"res_sqs_url"`
	}
	if json.Unmarshal([]byte(body), &envelope) == nil && envelope.ResSqsUrl != "" {
		resQueue = envelope.ResSqsUrl
	}
	if resQueue != "" {
		if err := c.send(ctx, resQueue, resp); err != nil {
			c.log.Error("failed to send response", slog.String("req", resp.ReqID), slog.Any("error", err))
			return
		}
	}

	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.cfg.RequestQueueUrl),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		c.log.Warn("failed to delete message", slog.String("req", resp.ReqID), slog.Any("error", err))
	}
}

func (c *Consumer) send(ctx context.Context, queueUrl string, resp api.SqsResp) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueUrl),
		MessageBody: aws.String(string(b)),
	})
	return err
}

func retryable(resp api.SqsResp) bool {
	errs := []*api.Error{resp.Error}
	if resp.Submit != nil {
		errs = append(errs, resp.Submit.Error)
	}
	if resp.Test != nil {
		errs = append(errs, resp.Test.Error)
	}
	for _, e := range errs {
		// a cancelled request only means this judge is shutting down
		if e != nil && e.Retryable {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
