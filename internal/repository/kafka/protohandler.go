package kafka

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// ErrUndecodable marks a message that can never be handled. The consumer
// commits past it instead of retrying.
var ErrUndecodable = errors.New("undecodable message")

// ProtoHandler decodes each value into a fresh M before calling handle.
func ProtoHandler[M proto.Message](ctor func() M, handle func(context.Context, []byte, M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		msg := ctor()
		if err := proto.Unmarshal(value, msg); err != nil {
			return fmt.Errorf("%w: %T: %v", ErrUndecodable, msg, err)
		}
		return handle(ctx, key, msg)
	}
}
