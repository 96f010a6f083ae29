package transport

import (
	"context"

	"connectrpc.com/connect"
)

// APIKeyHeader carries the credential on every call.
const APIKeyHeader = "x-api-key"

// AuthInterceptor stamps every outgoing call with the API key and forwards it.
// Errors from the rest of the chain are returned untouched.
func AuthInterceptor(apiKey string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			req.Header().Set(APIKeyHeader, apiKey)
			return next(ctx, req)
		}
	}
}
