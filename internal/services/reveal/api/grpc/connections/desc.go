package connections

import (
	"context"

	"github.com/louisbranch/unveil/internal/platform/grpc/jsoncodec"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "unveil.connections.v1.ConnectionService"

// ConnectionServiceServer is the server API for ConnectionService.
type ConnectionServiceServer interface {
	CreateStrangerRequest(context.Context, *CreateStrangerRequestRequest) (*ConnectionResponse, error)
	CreateKnownRequest(context.Context, *CreateKnownRequestRequest) (*ConnectionResponse, error)
	RegenerateCode(context.Context, *ConnectionRef) (*ConnectionResponse, error)
	RedeemCode(context.Context, *RedeemCodeRequest) (*ConnectionResponse, error)
	RespondToRequest(context.Context, *RespondToRequestRequest) (*ConnectionResponse, error)
	CancelRequest(context.Context, *ConnectionRef) (*ConnectionResponse, error)
	Disconnect(context.Context, *ConnectionRef) (*ConnectionResponse, error)
	Block(context.Context, *BlockRequest) (*ConnectionsResponse, error)
	GetConnection(context.Context, *ConnectionRef) (*ConnectionResponse, error)
	ListActiveConnections(context.Context, *Empty) (*ConnectionsResponse, error)
	ListIncomingRequests(context.Context, *Empty) (*ConnectionsResponse, error)
	RequestStageConsent(context.Context, *RequestStageConsentRequest) (*ConnectionResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*MessageResponse, error)
	FetchMessages(context.Context, *FetchMessagesRequest) (*MessagesResponse, error)
	MarkRead(context.Context, *ConnectionRef) (*MarkReadResponse, error)
	SetTyping(context.Context, *SetTypingRequest) (*TypingResponse, error)
	ListTyping(context.Context, *ConnectionRef) (*TypingListResponse, error)
	GetVisibleProfile(context.Context, *ConnectionRef) (*ProfileResponse, error)
}

// ServiceDesc describes ConnectionService for grpc.Server registration.
// Messages are plain structs carried by the JSON codec.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConnectionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateStrangerRequest", ConnectionServiceServer.CreateStrangerRequest),
		unary("CreateKnownRequest", ConnectionServiceServer.CreateKnownRequest),
		unary("RegenerateCode", ConnectionServiceServer.RegenerateCode),
		unary("RedeemCode", ConnectionServiceServer.RedeemCode),
		unary("RespondToRequest", ConnectionServiceServer.RespondToRequest),
		unary("CancelRequest", ConnectionServiceServer.CancelRequest),
		unary("Disconnect", ConnectionServiceServer.Disconnect),
		unary("Block", ConnectionServiceServer.Block),
		unary("GetConnection", ConnectionServiceServer.GetConnection),
		unary("ListActiveConnections", ConnectionServiceServer.ListActiveConnections),
		unary("ListIncomingRequests", ConnectionServiceServer.ListIncomingRequests),
		unary("RequestStageConsent", ConnectionServiceServer.RequestStageConsent),
		unary("SendMessage", ConnectionServiceServer.SendMessage),
		unary("FetchMessages", ConnectionServiceServer.FetchMessages),
		unary("MarkRead", ConnectionServiceServer.MarkRead),
		unary("SetTyping", ConnectionServiceServer.SetTyping),
		unary("ListTyping", ConnectionServiceServer.ListTyping),
		unary("GetVisibleProfile", ConnectionServiceServer.GetVisibleProfile),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "unveil/connections/v1/service",
}

// Register attaches srv to server.
func Register(server grpc.ServiceRegistrar, srv ConnectionServiceServer) {
	server.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req any, Resp any](name string, call func(ConnectionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(ConnectionServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			})
		},
	}
}

// Client calls ConnectionService over the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsoncodec.Name)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateStrangerRequest(ctx context.Context, in *CreateStrangerRequestRequest, opts ...grpc.CallOption) (*ConnectionResponse, error) {
	return invoke[ConnectionResponse](ctx, c.cc, "CreateStrangerRequest", in, opts)
}

func (c *Client) CreateKnownRequest(ctx context.Context, in *CreateKnownRequestRequest, opts ...grpc.CallOption) (*ConnectionResponse, error) {
	return invoke[ConnectionResponse](ctx, c.cc, "CreateKnownRequest", in, opts)
}

func (c *Client) RegenerateCode(ctx context.Context, in *ConnectionRef, opts ...grpc.CallOption) (*ConnectionResponse, error) {
	return invoke[ConnectionResponse](ctx, c.cc, "RegenerateCode", in, opts)
}

func (c *Client) RedeemCode(ctx context.Context, in *RedeemCodeRequest, opts ...grpc.CallOption) (*ConnectionResponse, error) {
	return invoke[ConnectionResponse](ctx, c.cc, "RedeemCode", in, opts)
}

func (c *Client) RespondToRequest(ctx context.Context, in *RespondToRequestRequest, opts ...grpc.CallOption) (*ConnectionResponse, error) {
	return invoke[ConnectionResponse](ctx, c.cc, "RespondToRequest", in, opts)
}

func (c *Client) CancelRequest(ctx context.Context, in *ConnectionRef, opts ...grpc.CallOption) (*ConnectionResponse, error) {
	return invoke[ConnectionResponse](ctx, c.cc, "CancelRequest", in, opts)
}

func (c *Client) Disconnect(ctx context.Context, in *ConnectionRef, opts ...grpc.CallOption) (*ConnectionResponse, error) {
	return invoke[ConnectionResponse](ctx, c.cc, "Disconnect", in, opts)
}

func (c *Client) Block(ctx context.Context, in *BlockRequest, opts ...grpc.CallOption) (*ConnectionsResponse, error) {
	return invoke[ConnectionsResponse](ctx, c.cc, "Block", in, opts)
}

func (c *Client) GetConnection(ctx context.Context, in *ConnectionRef, opts ...grpc.CallOption) (*ConnectionResponse, error) {
	return invoke[ConnectionResponse](ctx, c.cc, "GetConnection", in, opts)
}

func (c *Client) ListActiveConnections(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ConnectionsResponse, error) {
	return invoke[ConnectionsResponse](ctx, c.cc, "ListActiveConnections", in, opts)
}

func (c *Client) ListIncomingRequests(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ConnectionsResponse, error) {
	return invoke[ConnectionsResponse](ctx, c.cc, "ListIncomingRequests", in, opts)
}

func (c *Client) RequestStageConsent(ctx context.Context, in *RequestStageConsentRequest, opts ...grpc.CallOption) (*ConnectionResponse, error) {
	return invoke[ConnectionResponse](ctx, c.cc, "RequestStageConsent", in, opts)
}

func (c *Client) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c.cc, "SendMessage", in, opts)
}

func (c *Client) FetchMessages(ctx context.Context, in *FetchMessagesRequest, opts ...grpc.CallOption) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c.cc, "FetchMessages", in, opts)
}

func (c *Client) MarkRead(ctx context.Context, in *ConnectionRef, opts ...grpc.CallOption) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c.cc, "MarkRead", in, opts)
}

func (c *Client) SetTyping(ctx context.Context, in *SetTypingRequest, opts ...grpc.CallOption) (*TypingResponse, error) {
	return invoke[TypingResponse](ctx, c.cc, "SetTyping", in, opts)
}

func (c *Client) ListTyping(ctx context.Context, in *ConnectionRef, opts ...grpc.CallOption) (*TypingListResponse, error) {
	return invoke[TypingListResponse](ctx, c.cc, "ListTyping", in, opts)
}

func (c *Client) GetVisibleProfile(ctx context.Context, in *ConnectionRef, opts ...grpc.CallOption) (*ProfileResponse, error) {
	return invoke[ProfileResponse](ctx, c.cc, "GetVisibleProfile", in, opts)
}
