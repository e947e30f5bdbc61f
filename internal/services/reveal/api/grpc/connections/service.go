// Package connections exposes the reveal engine as the
// unveil.connections.v1.ConnectionService gRPC API.
package connections

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
	"github.com/louisbranch/unveil/internal/platform/errors/i18n"
	grpcmeta "github.com/louisbranch/unveil/internal/platform/grpc/metadata"
	"github.com/louisbranch/unveil/internal/services/reveal/api/wire"
	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	revealservice "github.com/louisbranch/unveil/internal/services/reveal/service"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service adapts the reveal engine to gRPC. The acting user always comes
// from call metadata, never from the request body.
type Service struct {
	engine *revealservice.Service
}

// NewService creates a gRPC service over engine.
func NewService(engine *revealservice.Service) *Service {
	return &Service{engine: engine}
}

var _ ConnectionServiceServer = (*Service)(nil)

func (s *Service) CreateStrangerRequest(ctx context.Context, in *CreateStrangerRequestRequest) (*ConnectionResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	connection, err := s.engine.CreateStrangerRequest(ctx, userID, in.RecipientUserID, in.Message)
	return connectionResponse(ctx, connection, err)
}

func (s *Service) CreateKnownRequest(ctx context.Context, in *CreateKnownRequestRequest) (*ConnectionResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	connection, err := s.engine.CreateKnownRequest(ctx, userID, in.RecipientUserID)
	return connectionResponse(ctx, connection, err)
}

func (s *Service) RegenerateCode(ctx context.Context, in *ConnectionRef) (*ConnectionResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	connection, err := s.engine.RegenerateCode(ctx, in.ConnectionID, userID)
	return connectionResponse(ctx, connection, err)
}

func (s *Service) RedeemCode(ctx context.Context, in *RedeemCodeRequest) (*ConnectionResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	connection, err := s.engine.RedeemCode(ctx, in.Code, userID)
	return connectionResponse(ctx, connection, err)
}

func (s *Service) RespondToRequest(ctx context.Context, in *RespondToRequestRequest) (*ConnectionResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	decision, ok := domain.ParseDecision(in.Decision)
	if !ok {
		return nil, toStatus(ctx, apperrors.New(apperrors.CodeInvalidArgument, "decision must be accept or decline"))
	}
	connection, err := s.engine.RespondToRequest(ctx, in.ConnectionID, userID, decision)
	return connectionResponse(ctx, connection, err)
}

func (s *Service) CancelRequest(ctx context.Context, in *ConnectionRef) (*ConnectionResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	connection, err := s.engine.CancelRequest(ctx, in.ConnectionID, userID)
	return connectionResponse(ctx, connection, err)
}

func (s *Service) Disconnect(ctx context.Context, in *ConnectionRef) (*ConnectionResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	connection, err := s.engine.Disconnect(ctx, in.ConnectionID, userID)
	return connectionResponse(ctx, connection, err)
}

// Block returns the connections the block closed.
func (s *Service) Block(ctx context.Context, in *BlockRequest) (*ConnectionsResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	closed, err := s.engine.Block(ctx, userID, in.TargetUserID)
	return connectionsResponse(ctx, closed, err)
}

func (s *Service) GetConnection(ctx context.Context, in *ConnectionRef) (*ConnectionResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	connection, err := s.engine.GetConnection(ctx, in.ConnectionID, userID)
	return connectionResponse(ctx, connection, err)
}

func (s *Service) ListActiveConnections(ctx context.Context, _ *Empty) (*ConnectionsResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	connections, err := s.engine.ListActiveConnections(ctx, userID)
	return connectionsResponse(ctx, connections, err)
}

func (s *Service) ListIncomingRequests(ctx context.Context, _ *Empty) (*ConnectionsResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	connections, err := s.engine.ListIncomingRequests(ctx, userID)
	return connectionsResponse(ctx, connections, err)
}

func (s *Service) RequestStageConsent(ctx context.Context, in *RequestStageConsentRequest) (*ConnectionResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	stage, ok := domain.ParseStage(in.Stage)
	if !ok {
		return nil, toStatus(ctx, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "unknown stage", map[string]string{"stage": in.Stage}))
	}
	decision, ok := domain.ParseDecision(in.Decision)
	if !ok {
		return nil, toStatus(ctx, apperrors.New(apperrors.CodeInvalidArgument, "decision must be accept or decline"))
	}
	connection, err := s.engine.RequestStageConsent(ctx, in.ConnectionID, userID, stage, decision)
	return connectionResponse(ctx, connection, err)
}

func (s *Service) SendMessage(ctx context.Context, in *SendMessageRequest) (*MessageResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := s.engine.SendMessage(ctx, in.ConnectionID, userID, in.Content, in.ClientMessageID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &MessageResponse{Message: wire.FromMessage(msg)}, nil
}

func (s *Service) FetchMessages(ctx context.Context, in *FetchMessagesRequest) (*MessagesResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var before domain.MessageCursor
	if in.Before != nil {
		before = domain.MessageCursor{CreatedAt: *in.Before, ID: in.BeforeID}
	}
	page, err := s.engine.FetchMessages(ctx, in.ConnectionID, userID, before, in.Limit)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	out := &MessagesResponse{Messages: make([]wire.Message, 0, len(page))}
	for _, msg := range page {
		out.Messages = append(out.Messages, wire.FromMessage(msg))
	}
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, in *ConnectionRef) (*MarkReadResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	changed, err := s.engine.MarkRead(ctx, in.ConnectionID, userID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &MarkReadResponse{Changed: changed}, nil
}

func (s *Service) SetTyping(ctx context.Context, in *SetTypingRequest) (*TypingResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	state, err := s.engine.SetTyping(ctx, in.ConnectionID, userID, in.IsTyping)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &TypingResponse{State: wire.FromTyping(state)}, nil
}

func (s *Service) ListTyping(ctx context.Context, in *ConnectionRef) (*TypingListResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	states, err := s.engine.ListTyping(ctx, in.ConnectionID, userID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	out := &TypingListResponse{States: make([]wire.TypingState, 0, len(states))}
	for _, state := range states {
		out.States = append(out.States, wire.FromTyping(state))
	}
	return out, nil
}

func (s *Service) GetVisibleProfile(ctx context.Context, in *ConnectionRef) (*ProfileResponse, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := s.engine.GetVisibleProfile(ctx, in.ConnectionID, userID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &ProfileResponse{Profile: profile}, nil
}

func (s *Service) caller(ctx context.Context) (string, error) {
	if s == nil || s.engine == nil {
		return "", status.Error(codes.Internal, "reveal engine is not configured")
	}
	userID := strings.TrimSpace(grpcmeta.UserIDFromContext(ctx))
	if userID == "" {
		return "", status.Error(codes.PermissionDenied, "missing user identity")
	}
	return userID, nil
}

func connectionResponse(ctx context.Context, connection domain.Connection, err error) (*ConnectionResponse, error) {
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &ConnectionResponse{Connection: wire.FromConnection(connection)}, nil
}

func connectionsResponse(ctx context.Context, connections []domain.Connection, err error) (*ConnectionsResponse, error) {
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &ConnectionsResponse{Connections: wire.FromConnections(connections)}, nil
}

// toStatus converts engine errors into gRPC statuses carrying a message
// localized for the caller.
func toStatus(ctx context.Context, err error) error {
	var coded *apperrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &coded):
		catalog := i18n.GetCatalog(grpcmeta.LocaleFromContext(ctx))
		return coded.ToGRPCStatus(catalog.Locale(), catalog.Format(string(coded.Code), coded.Metadata))
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Errorf(codes.Internal, "reveal: %v", err)
	}
}
