package rpcapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// SubscribeRequest is the (empty) request that opens a notification
// stream. It exists as a named type, rather than a raw nil payload,
// because the JSON codec needs something concrete to decode into.
type SubscribeRequest struct{}

const (
	serviceName     = "registrarverifier.Notifications"
	subscribeMethod = "/" + serviceName + "/Subscribe"
	subscribeStream = "Subscribe"
)

// NotificationServer is the interface a gRPC server hands its Subscribe
// streams to. Server, below, is the only production implementation.
type NotificationServer interface {
	Subscribe(*SubscribeRequest, grpc.ServerStream) error
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	var req SubscribeRequest
	if err := stream.RecvMsg(&req); err != nil {
		return fmt.Errorf("rpcapi: receiving subscribe request: %w", err)
	}
	return srv.(NotificationServer).Subscribe(&req, stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*NotificationServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    subscribeStream,
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "rpcapi/notifications",
}

// Server streams every Broadcaster notification to connected gRPC
// clients. It is grpc-ecosystem/go-grpc-prometheus's StreamServerInterceptor
// that the cmd entrypoint wraps around it, the same way
// cmd/boulder-publisher wires metrics.Scope into bgrpc.NewServer.
type Server struct {
	broadcaster *Broadcaster
}

// NewServer builds a Server backed by broadcaster.
func NewServer(broadcaster *Broadcaster) *Server {
	return &Server{broadcaster: broadcaster}
}

// Subscribe streams notifications to stream until the client disconnects
// or a send fails.
func (s *Server) Subscribe(_ *SubscribeRequest, stream grpc.ServerStream) error {
	ch, unsubscribe := s.broadcaster.subscribe()
	defer unsubscribe()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(&msg); err != nil {
				return fmt.Errorf("rpcapi: sending notification: %w", err)
			}
		case <-stream.Context().Done():
			return stream.Context().Err()
		}
	}
}

// Register attaches the notification service to a *grpc.Server.
func Register(s *grpc.Server, srv NotificationServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Subscribe opens a client-side notification stream against conn. Callers
// must range over the returned channel (closed when the stream ends) and
// should cancel ctx to stop it early.
func Subscribe(ctx context.Context, conn *grpc.ClientConn) (<-chan NotificationMessage, error) {
	stream, err := conn.NewStream(ctx, &serviceDesc.Streams[0], subscribeMethod, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, fmt.Errorf("rpcapi: opening subscribe stream: %w", err)
	}
	if err := stream.SendMsg(&SubscribeRequest{}); err != nil {
		return nil, fmt.Errorf("rpcapi: sending subscribe request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("rpcapi: closing subscribe send side: %w", err)
	}

	out := make(chan NotificationMessage)
	go func() {
		defer close(out)
		for {
			var msg NotificationMessage
			if err := stream.RecvMsg(&msg); err != nil {
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
