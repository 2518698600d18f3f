package middleware

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/smartbank-server/internal/logger"
)

func TestLogging_HandleGRPC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		handler   grpc.UnaryHandler
		wantCode  codes.Code
		wantLevel string
		wantMsg   string
	}{
		{
			name: "success path",
			handler: func(ctx context.Context, req any) (any, error) {
				return "ok", nil
			},
			wantCode:  codes.OK,
			wantLevel: "INFO",
			wantMsg:   "gRPC request completed",
		},
		{
			name: "client error logged as rejection",
			handler: func(ctx context.Context, req any) (any, error) {
				return nil, status.Error(codes.InvalidArgument, "bad input")
			},
			wantCode:  codes.InvalidArgument,
			wantLevel: "INFO",
			wantMsg:   "gRPC request rejected",
		},
		{
			name: "non-grpc error logged as failure",
			handler: func(ctx context.Context, req any) (any, error) {
				return nil, errors.New("boom")
			},
			wantCode:  codes.Unknown,
			wantLevel: "ERROR",
			wantMsg:   "gRPC request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			lg := NewLogging(logger.NewWithWriter(&buf, 0, "text"))

			info := &grpc.UnaryServerInfo{FullMethod: "/smartbank.Ledger/Deposit"}
			resp, err := lg.HandleGRPC(context.Background(), struct{}{}, info, tt.handler)

			assert.Equal(t, tt.wantCode, status.Code(err))
			if tt.wantCode == codes.OK {
				assert.Equal(t, "ok", resp)
			}
			out := buf.String()
			assert.Contains(t, out, "level="+tt.wantLevel)
			assert.Contains(t, out, tt.wantMsg)
			assert.Contains(t, out, "method=/smartbank.Ledger/Deposit")
		})
	}
}
