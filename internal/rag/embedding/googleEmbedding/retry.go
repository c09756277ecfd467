package googleEmbedding

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func isRateLimited(err error) bool {
	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.ResourceExhausted
	}
	return false
}
