// Package grpcclient provides a client for a remote OCR engine served
// over gRPC.
package grpcclient

import (
	"context"
	"errors"

	apperrors "github.com/GriffinCanCode/study-scanner/internal/errors"
	"github.com/GriffinCanCode/study-scanner/internal/resilience"
	"github.com/GriffinCanCode/study-scanner/internal/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client wraps the OCR service connection
type Client struct {
	conn    *grpc.ClientConn
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

type options struct {
	dial    []grpc.DialOption
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// Option configures a Client.
type Option func(*options)

// WithDialOptions appends extra dial options (e.g. a custom dialer).
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.dial = append(o.dial, opts...) }
}

// WithBreaker replaces the default OCR circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(o *options) { o.breaker = b }
}

// WithRetry replaces the default OCR retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(o *options) { o.retry = cfg }
}

// New creates a new OCR client
func New(addr string, opts ...Option) (*Client, error) {
	o := options{
		breaker: resilience.New(resilience.OCRConfig()),
		retry:   resilience.OCRRetryConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	dial := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
	}, o.dial...)

	conn, err := grpc.NewClient(addr, dial...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, breaker: o.breaker, retry: o.retry}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// ExtractText performs OCR on an encoded image.
func (c *Client) ExtractText(ctx context.Context, imageData []byte, format string) (string, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, FormatKey, format)

	text, err := resilience.ExecuteWithResult(c.breaker, func() (string, error) {
		var out string
		err := resilience.Retry(ctx, c.retry, func() error {
			resp := new(wrapperspb.StringValue)
			if err := c.conn.Invoke(ctx, ExtractTextMethod, wrapperspb.Bytes(imageData), resp); err != nil {
				return err
			}
			out = resp.GetValue()
			return nil
		})
		return out, err
	})
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			return "", apperrors.Wrap(err, apperrors.CodeUnavailable, "ocr engine unavailable")
		}
		return "", apperrors.FromGRPCError(err)
	}
	return text, nil
}
