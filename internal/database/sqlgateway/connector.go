package sqlgateway

import (
	"context"
	"time"

	"github.com/denismitr/tenants/internal/retry"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	DefaultConnectionAttempts    = 10
	DefaultConnectionTimeout     = 60 * time.Second
	DefaultConnectionAttemptStep = 500 * time.Millisecond
)

type ConnectOptions struct {
	MaxAttempts int
	MaxTimeout  time.Duration
	RetryStep   time.Duration
}

func NewDefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		MaxAttempts: DefaultConnectionAttempts,
		MaxTimeout:  DefaultConnectionTimeout,
		RetryStep:   DefaultConnectionAttemptStep,
	}
}

type Connector interface {
	Connect(ctx context.Context, db *sqlx.DB) (*sqlx.Conn, error)
}

type RetryingConnector struct {
	options *ConnectOptions
}

var _ Connector = (*RetryingConnector)(nil)

func NewRetryingConnector(options *ConnectOptions) *RetryingConnector {
	if options == nil {
		options = NewDefaultConnectOptions()
	}

	return &RetryingConnector{options: options}
}

// Connect takes a dedicated connection out of the pool and pings it,
// retrying with an incremental back off while the server is unreachable
func (c *RetryingConnector) Connect(ctx context.Context, db *sqlx.DB) (*sqlx.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.options.MaxTimeout)
	defer cancel()

	return retry.Incremental(ctx, c.options.RetryStep, c.options.MaxAttempts, func(attempt int) (*sqlx.Conn, error) {
		conn, err := db.Connx(ctx)
		if err != nil {
			return nil, retry.Error(errors.Wrap(err, "could not establish DB connection"), attempt)
		}

		if err := conn.PingContext(ctx); err != nil {
			_ = conn.Close()
			return nil, retry.Error(errors.Wrap(err, "db ping failed"), attempt)
		}

		return conn, nil
	})
}
