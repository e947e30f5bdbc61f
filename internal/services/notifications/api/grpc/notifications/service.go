// Package notifications exposes the recipient inbox as the
// unveil.notifications.v1.NotificationService gRPC API.
package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/unveil/internal/platform/grpc/jsoncodec"
	grpcmeta "github.com/louisbranch/unveil/internal/platform/grpc/metadata"
	"github.com/louisbranch/unveil/internal/services/notifications/domain"
	"github.com/louisbranch/unveil/internal/services/notifications/render"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "unveil.notifications.v1.NotificationService"

type domainService interface {
	CreateIntent(ctx context.Context, input domain.CreateIntentInput) (domain.Notification, error)
	ListInbox(ctx context.Context, input domain.ListInboxInput) (domain.NotificationPage, error)
	MarkRead(ctx context.Context, input domain.MarkReadInput) (domain.Notification, error)
	GetUnreadStatus(ctx context.Context, input domain.GetUnreadStatusInput) (domain.UnreadStatus, error)
}

// Notification is the wire form of one inbox item with copy rendered for the
// caller's locale.
type Notification struct {
	ID              string     `json:"id"`
	RecipientUserID string     `json:"recipient_user_id"`
	MessageType     string     `json:"message_type"`
	PayloadJSON     string     `json:"payload_json,omitempty"`
	Source          string     `json:"source,omitempty"`
	Title           string     `json:"title"`
	Body            string     `json:"body"`
	CreatedAt       time.Time  `json:"created_at"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
}

type CreateNotificationIntentRequest struct {
	RecipientUserID string `json:"recipient_user_id"`
	MessageType     string `json:"message_type"`
	PayloadJSON     string `json:"payload_json,omitempty"`
	DedupeKey       string `json:"dedupe_key,omitempty"`
	Source          string `json:"source,omitempty"`
}

type NotificationResponse struct {
	Notification Notification `json:"notification"`
}

type ListNotificationsRequest struct {
	PageSize  int    `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

type ListNotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type MarkNotificationReadRequest struct {
	NotificationID string `json:"notification_id"`
}

type GetUnreadNotificationStatusRequest struct{}

type GetUnreadNotificationStatusResponse struct {
	HasUnread   bool `json:"has_unread"`
	UnreadCount int  `json:"unread_count"`
}

// Service serves recipient inbox calls. Recipients always come from call
// metadata.
type Service struct {
	inbox domainService
}

// NewService creates a notification service over the inbox domain.
func NewService(svc domainService) *Service {
	return &Service{inbox: svc}
}

// CreateNotificationIntent records one notification for a recipient.
// Producers inside the process use the domain directly; this call serves
// producers in other processes.
func (s *Service) CreateNotificationIntent(ctx context.Context, in *CreateNotificationIntentRequest) (*NotificationResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "create notification intent request is required")
	}
	if s == nil || s.inbox == nil {
		return nil, status.Error(codes.Internal, "notification service is not configured")
	}
	created, err := s.inbox.CreateIntent(ctx, domain.CreateIntentInput{
		RecipientUserID: in.RecipientUserID,
		MessageType:     in.MessageType,
		PayloadJSON:     in.PayloadJSON,
		DedupeKey:       in.DedupeKey,
		Source:          in.Source,
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	return &NotificationResponse{Notification: toWire(printerFor(ctx), created)}, nil
}

// ListNotifications returns one page of the caller's inbox, newest first.
func (s *Service) ListNotifications(ctx context.Context, in *ListNotificationsRequest) (*ListNotificationsResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "list notifications request is required")
	}
	recipientUserID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	page, err := s.inbox.ListInbox(ctx, domain.ListInboxInput{
		RecipientUserID: recipientUserID,
		PageSize:        in.PageSize,
		PageToken:       in.PageToken,
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	printer := printerFor(ctx)
	resp := &ListNotificationsResponse{
		Notifications: make([]Notification, 0, len(page.Notifications)),
		NextPageToken: page.NextPageToken,
	}
	for _, item := range page.Notifications {
		resp.Notifications = append(resp.Notifications, toWire(printer, item))
	}
	return resp, nil
}

// MarkNotificationRead acknowledges one of the caller's notifications.
func (s *Service) MarkNotificationRead(ctx context.Context, in *MarkNotificationReadRequest) (*NotificationResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "mark notification read request is required")
	}
	recipientUserID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := s.inbox.MarkRead(ctx, domain.MarkReadInput{
		RecipientUserID: recipientUserID,
		NotificationID:  in.NotificationID,
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	return &NotificationResponse{Notification: toWire(printerFor(ctx), updated)}, nil
}

// GetUnreadNotificationStatus summarizes the caller's unread inbox.
func (s *Service) GetUnreadNotificationStatus(ctx context.Context, _ *GetUnreadNotificationStatusRequest) (*GetUnreadNotificationStatusResponse, error) {
	recipientUserID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := s.inbox.GetUnreadStatus(ctx, domain.GetUnreadStatusInput{RecipientUserID: recipientUserID})
	if err != nil {
		return nil, mapDomainError(err)
	}
	return &GetUnreadNotificationStatusResponse{HasUnread: summary.HasUnread, UnreadCount: summary.UnreadCount}, nil
}

func (s *Service) caller(ctx context.Context) (string, error) {
	if s == nil || s.inbox == nil {
		return "", status.Error(codes.Internal, "notification service is not configured")
	}
	userID := strings.TrimSpace(grpcmeta.UserIDFromContext(ctx))
	if userID == "" {
		return "", status.Error(codes.PermissionDenied, "missing user identity")
	}
	return userID, nil
}

func printerFor(ctx context.Context) *message.Printer {
	tag := language.English
	if raw := strings.TrimSpace(grpcmeta.LocaleFromContext(ctx)); raw != "" {
		if parsed, err := language.Parse(raw); err == nil {
			tag = parsed
		}
	}
	return message.NewPrinter(tag)
}

func toWire(printer *message.Printer, n domain.Notification) Notification {
	rendered := render.Render(printer, render.Input{
		MessageType: n.MessageType,
		PayloadJSON: n.PayloadJSON,
		Channel:     render.ChannelInApp,
	})
	return Notification{
		ID:              n.ID,
		RecipientUserID: n.RecipientUserID,
		MessageType:     n.MessageType,
		PayloadJSON:     n.PayloadJSON,
		Source:          n.Source,
		Title:           rendered.Title,
		Body:            rendered.BodyText,
		CreatedAt:       n.CreatedAt,
		ReadAt:          n.ReadAt,
	}
}

func mapDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrRecipientUserIDRequired),
		errors.Is(err, domain.ErrMessageTypeRequired),
		errors.Is(err, domain.ErrNotificationIDRequired),
		errors.Is(err, domain.ErrInvalidPageToken):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Errorf(codes.Internal, "notifications: %v", err)
	}
}

// NotificationServiceServer is the server API for NotificationService.
type NotificationServiceServer interface {
	CreateNotificationIntent(context.Context, *CreateNotificationIntentRequest) (*NotificationResponse, error)
	ListNotifications(context.Context, *ListNotificationsRequest) (*ListNotificationsResponse, error)
	MarkNotificationRead(context.Context, *MarkNotificationReadRequest) (*NotificationResponse, error)
	GetUnreadNotificationStatus(context.Context, *GetUnreadNotificationStatusRequest) (*GetUnreadNotificationStatusResponse, error)
}

var _ NotificationServiceServer = (*Service)(nil)

// ServiceDesc describes NotificationService for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NotificationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateNotificationIntent", NotificationServiceServer.CreateNotificationIntent),
		unary("ListNotifications", NotificationServiceServer.ListNotifications),
		unary("MarkNotificationRead", NotificationServiceServer.MarkNotificationRead),
		unary("GetUnreadNotificationStatus", NotificationServiceServer.GetUnreadNotificationStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "unveil/notifications/v1/service",
}

// Register attaches srv to server.
func Register(server grpc.ServiceRegistrar, srv NotificationServiceServer) {
	server.RegisterService(&ServiceDesc, srv)
}

func unary[Req any, Resp any](name string, call func(NotificationServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(NotificationServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			})
		},
	}
}

// Client calls NotificationService over the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) call(ctx context.Context, name string, in any, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsoncodec.Name)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+name, in, out, opts...)
}

func (c *Client) ListNotifications(ctx context.Context, in *ListNotificationsRequest, opts ...grpc.CallOption) (*ListNotificationsResponse, error) {
	out := new(ListNotificationsResponse)
	if err := c.call(ctx, "ListNotifications", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, in *MarkNotificationReadRequest, opts ...grpc.CallOption) (*NotificationResponse, error) {
	out := new(NotificationResponse)
	if err := c.call(ctx, "MarkNotificationRead", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUnreadNotificationStatus(ctx context.Context, opts ...grpc.CallOption) (*GetUnreadNotificationStatusResponse, error) {
	out := new(GetUnreadNotificationStatusResponse)
	if err := c.call(ctx, "GetUnreadNotificationStatus", &GetUnreadNotificationStatusRequest{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
