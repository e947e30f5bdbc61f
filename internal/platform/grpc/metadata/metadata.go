// Package metadata defines the headers that carry caller identity and request
// correlation across gRPC boundaries.
package metadata

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/unveil/internal/platform/id"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UserIDHeader carries the acting user for a call.
const UserIDHeader = "x-unveil-user-id"

// RequestIDHeader carries the correlation ID for a call.
const RequestIDHeader = "x-unveil-request-id"

// LocaleHeader carries the caller's preferred locale, e.g. "pt-BR".
const LocaleHeader = "x-unveil-locale"

type contextKey string

const requestIDContextKey contextKey = "unveil-request-id"

// UserIDFromContext returns the acting user from incoming metadata.
func UserIDFromContext(ctx context.Context) string {
	return valueFromIncomingContext(ctx, UserIDHeader)
}

// LocaleFromContext returns the caller locale from incoming metadata.
func LocaleFromContext(ctx context.Context) string {
	return valueFromIncomingContext(ctx, LocaleHeader)
}

// RequestIDFromContext returns the request ID stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey).(string)
	return value
}

// WithUserID returns a context with user-id outgoing metadata when userID is non-empty.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, UserIDHeader, userID)
}

// IsPrintableASCII reports whether a string contains only printable ASCII characters.
func IsPrintableASCII(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

// FirstMetadataValue returns the first printable ASCII metadata value for a key.
func FirstMetadataValue(md metadata.MD, key string) string {
	for mdKey, values := range md {
		if !strings.EqualFold(mdKey, key) {
			continue
		}
		for _, value := range values {
			if IsPrintableASCII(value) {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}

// UnaryServerInterceptor assigns a request ID to every call, echoes it as a
// response header, and logs failed calls with their trace ID.
func UnaryServerInterceptor(idGenerator func() (string, error)) grpc.UnaryServerInterceptor {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := valueFromIncomingContext(ctx, RequestIDHeader)
		if requestID == "" {
			generated, err := idGenerator()
			if err != nil {
				return nil, status.Errorf(codes.Internal, "generate request id: %v", err)
			}
			requestID = generated
		}
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)
		if err := grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			code := status.Code(err)
			if code == codes.Internal || code == codes.Unknown {
				log.Printf("grpc %s failed code=%s user=%q request=%s trace=%s elapsed=%s: %v",
					info.FullMethod, code, UserIDFromContext(ctx), requestID, traceID(ctx), time.Since(start), err)
			}
		}
		return resp, err
	}
}

func traceID(ctx context.Context) string {
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		return sc.TraceID().String()
	}
	return "-"
}

func valueFromIncomingContext(ctx context.Context, key string) string {
	if ctx == nil {
		return ""
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	return FirstMetadataValue(md, key)
}
