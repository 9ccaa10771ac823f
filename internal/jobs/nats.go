package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"gazettemachine/internal/config"
	"gazettemachine/internal/logging"
	"gazettemachine/internal/services"
)

// Handler processes one decoded job. Its error is logged; the message is
// not redelivered.
type Handler func(ctx context.Context, job Job) error

// Observer is told whether each received message decoded.
type Observer interface {
	JobReceived(ok bool)
}

// drainTimeout bounds how long shutdown waits for in-flight jobs. It covers
// an OCR pass over a large scan.
const drainTimeout = 10 * time.Minute

// Client publishes and consumes jobs on one subject.
type Client struct {
	conn    *nats.Conn
	subject string
	group   string
	logger  *slog.Logger
	closed  chan struct{}
}

// Connect dials the configured NATS server.
func Connect(cfg config.Jobs, logger *slog.Logger) (*Client, error) {
	logger = logging.NewComponentLogger(logger, "jobs")
	closed := make(chan struct{})
	var once sync.Once
	conn, err := nats.Connect(
		cfg.NATSURL,
		nats.Name("gazettemachine"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DrainTimeout(drainTimeout),
		nats.ClosedHandler(func(*nats.Conn) {
			once.Do(func() { close(closed) })
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", logging.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "jobs", "connect", cfg.NATSURL, err)
	}
	return &Client{conn: conn, subject: cfg.Subject, group: cfg.QueueGroup, logger: logger, closed: closed}, nil
}

// Close drops the connection.
func (c *Client) Close() {
	if c != nil && c.conn != nil {
		c.conn.Close()
	}
}

// Publish sends job to the subject.
func (c *Client) Publish(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := job.Encode()
	if err != nil {
		return err
	}
	if err := c.conn.Publish(c.subject, data); err != nil {
		return classify("publish", err)
	}
	return nil
}

// Flush waits until published jobs reach the server.
func (c *Client) Flush(ctx context.Context) error {
	if err := c.conn.FlushWithContext(ctx); err != nil {
		return classify("flush", err)
	}
	return nil
}

// Consume joins the queue group and runs handler for each job until ctx is
// cancelled. It then drains the connection: buffered messages are still
// handled, and Consume returns once the running job finishes and the
// connection is closed. Handlers never see ctx's cancellation.
func (c *Client) Consume(ctx context.Context, handler Handler, observer Observer) error {
	_, err := c.conn.QueueSubscribe(c.subject, c.group, func(msg *nats.Msg) {
		dispatch(ctx, c.logger, msg.Data, handler, observer)
	})
	if err != nil {
		return classify("subscribe", err)
	}
	if err := c.conn.Flush(); err != nil {
		return classify("subscribe", err)
	}
	c.logger.Info("consuming jobs",
		logging.String(logging.FieldEventType, "jobs_subscribed"),
		logging.String("subject", c.subject),
		logging.String("queue_group", c.group),
	)

	<-ctx.Done()
	c.logger.Info("draining jobs", logging.String(logging.FieldEventType, "jobs_draining"))
	if err := c.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return classify("drain", err)
	}
	<-c.closed
	if err := c.conn.LastError(); errors.Is(err, nats.ErrDrainTimeout) {
		return classify("drain", err)
	}
	return nil
}

// dispatch decodes and handles one message. The handler context keeps
// ctx's values but not its cancellation, so a job started before shutdown
// runs to completion.
func dispatch(ctx context.Context, logger *slog.Logger, data []byte, handler Handler, observer Observer) {
	job, err := Decode(data)
	if observer != nil {
		observer.JobReceived(err == nil)
	}
	if err != nil {
		logging.WarnWithContext(logger, "dropping invalid job", "job_invalid",
			logging.Error(err),
			logging.Int("payload_bytes", len(data)),
			logging.String(logging.FieldErrorHint, `publish {"jurisdiction": "...", "source": "..."}`),
		)
		return
	}

	jobCtx := services.WithRequestID(context.WithoutCancel(ctx), uuid.NewString())
	jobCtx = services.WithDocumentID(jobCtx, job.Source)
	if err := handler(jobCtx, job); err != nil {
		logging.ErrorWithContext(logging.WithContext(jobCtx, logger), "job failed", "job_failed",
			logging.String(logging.FieldJurisdiction, job.Jurisdiction),
			logging.Error(err),
		)
	}
}

func classify(operation string, err error) error {
	marker := services.ErrExternalTool
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrDrainTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		marker = services.ErrTransient
	}
	if errors.Is(err, nats.ErrBadSubject) {
		marker = services.ErrConfiguration
	}
	return services.Wrap(marker, "jobs", operation, "", err)
}
