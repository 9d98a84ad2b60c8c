package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gocv.io/x/gocv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// PredictMethod is the full gRPC method name served by the model service.
// The request is a google.protobuf.BytesValue holding a JPEG frame and the
// response a google.protobuf.ListValue of NumLabels numbers.
const PredictMethod = "/drivewatch.classifier.v1.Classifier/Predict"

// DefaultTimeout bounds a single remote prediction.
const DefaultTimeout = 5 * time.Second

const maxMessageSize = 16 * 1024 * 1024

// RemoteClassifier calls a model service over gRPC.
type RemoteClassifier struct {
	conn    *grpc.ClientConn
	address string
	timeout time.Duration
}

// NewRemoteClassifier connects to the model service at address.
func NewRemoteClassifier(address string, timeoutSeconds int) (*RemoteClassifier, error) {
	timeout := DefaultTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return newRemoteClassifier(address, timeout)
}

func newRemoteClassifier(address string, timeout time.Duration, extra ...grpc.DialOption) (*RemoteClassifier, error) {
	if address == "" {
		return nil, fmt.Errorf("classifier address is required")
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMessageSize),
			grpc.MaxCallSendMsgSize(maxMessageSize),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to classifier at %s: %w", address, err)
	}

	slog.Info("classifier service configured", "address", address, "timeout", timeout)

	return &RemoteClassifier{
		conn:    conn,
		address: address,
		timeout: timeout,
	}, nil
}

// Predict encodes the frame as JPEG and asks the service to score it.
func (c *RemoteClassifier) Predict(frame *gocv.Mat) (Prediction, error) {
	if frame == nil || frame.Empty() {
		return Prediction{}, fmt.Errorf("predict: empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return Prediction{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	return c.predictJPEG(buf.GetBytes())
}

func (c *RemoteClassifier) predictJPEG(data []byte) (Prediction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var resp structpb.ListValue
	if err := c.conn.Invoke(ctx, PredictMethod, wrapperspb.Bytes(data), &resp); err != nil {
		return Prediction{}, fmt.Errorf("remote predict: %w", err)
	}

	values := make([]float64, 0, len(resp.GetValues()))
	for i, v := range resp.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return Prediction{}, fmt.Errorf("value %d is not a number: %w", i, ErrBadOutput)
		}
		values = append(values, n.NumberValue)
	}

	return FromSlice(values)
}

// Close closes the connection.
func (c *RemoteClassifier) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
