package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/foodloop/foodloop-api/internal/dto"
	"github.com/foodloop/foodloop-api/internal/models"
	"github.com/foodloop/foodloop-api/internal/observability"
	"github.com/foodloop/foodloop-api/internal/repository"
)

const (
	chatPreviewTTL     = 30 * time.Minute
	chatSendBufferSize = 32
)

var (
	// ErrChatNotFound indicates the chat does not exist.
	ErrChatNotFound = errors.New("chat not found")
	// ErrNotParticipant indicates the caller does not belong to the chat.
	ErrNotParticipant = errors.New("caller is not a chat participant")
	// ErrChatArchived indicates the linked delivery reached a terminal
	// state; the chat persists but no longer accepts messages.
	ErrChatArchived = errors.New("chat is archived because its delivery has ended")
	// ErrForbiddenContact indicates the counterpart is not linked to any of
	// the caller's active claimed records.
	ErrForbiddenContact = errors.New("contact is not linked to an active delivery")
	// ErrUnknownUser indicates the requested counterpart does not exist.
	ErrUnknownUser = errors.New("user not found")
	// ErrMessageEmpty indicates the text vanished after sanitization.
	ErrMessageEmpty = errors.New("message text is empty")
)

// StreamOptions wraps metadata extracted during the websocket upgrade.
type StreamOptions struct {
	ChatID  uint
	Caller  Caller
	Context context.Context
}

// ChatService is the delivery-linked messaging gate. Chats are created
// lazily per unordered user pair; sending is gated by the archival state of
// the linked record and by the contact-eligibility predicate, both
// re-evaluated on every attempt.
type ChatService interface {
	OpenChat(ctx context.Context, caller Caller, payload dto.ChatOpenRequest) (dto.ChatResponse, error)
	ListForUser(ctx context.Context, caller Caller) ([]dto.ChatResponse, error)
	Send(ctx context.Context, chatID uint, caller Caller, payload dto.ChatSendRequest) (dto.MessageResponse, error)
	History(ctx context.Context, chatID uint, caller Caller, query dto.ChatHistoryQuery) ([]dto.MessageResponse, error)
	IsContactAllowed(ctx context.Context, caller Caller, otherID string, otherRole models.Role) (bool, error)
	ServeConnection(conn *websocket.Conn, opts StreamOptions)
	Start(ctx context.Context)
}

type chatService struct {
	chats     repository.ChatRepository
	surpluses repository.SurplusRepository
	users     repository.UserRepository
	redis     *redis.Client
	redisChan string
	redisKey  string
	nats      *nats.Conn
	natsSubj  string
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	hub       *chatHub
	nodeID    string
	now       func() time.Time
}

type chatHub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*chatStream]struct{}
	log   zerolog.Logger
}

type chatStream struct {
	conn    *websocket.Conn
	send    chan dto.MessageResponse
	options StreamOptions
	service *chatService
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context
}

type chatEvent struct {
	Source  string              `json:"source"`
	Message dto.MessageResponse `json:"message"`
	SentAt  time.Time           `json:"sent_at"`
}

// NewChatService creates the messaging gate. redisClient and natsConn may be
// nil; preview caching and cross-node fanout are then disabled.
func NewChatService(chats repository.ChatRepository, surpluses repository.SurplusRepository, users repository.UserRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	hub := &chatHub{
		rooms: make(map[uint]map[*chatStream]struct{}),
		log:   logger.With().Str("component", "chat_hub").Logger(),
	}

	redisChan := ""
	redisKey := ""
	natsSubj := ""
	if channelBase != "" {
		redisChan = channelBase + ":chat"
		redisKey = channelBase + ":chat:last"
		natsSubj = strings.ReplaceAll(channelBase, ":", ".") + ".chat"
	}

	return &chatService{
		chats:     chats,
		surpluses: surpluses,
		users:     users,
		redis:     redisClient,
		redisChan: redisChan,
		redisKey:  redisKey,
		nats:      natsConn,
		natsSubj:  natsSubj,
		validator: validate,
		sanitizer: sanitizer,
		logger:    logger.With().Str("component", "chat_service").Logger(),
		tracer:    otel.Tracer("github.com/foodloop/foodloop-api/internal/service/chat"),
		hub:       hub,
		nodeID:    uuid.NewString(),
		now:       time.Now,
	}
}

func (s *chatService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChan != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubj != "" {
		go s.consumeNATS(ctx)
	}
}

// OpenChat returns the existing chat for the unordered (caller, other) pair
// or creates one, linking the supplied record on creation only.
func (s *chatService) OpenChat(ctx context.Context, caller Caller, payload dto.ChatOpenRequest) (dto.ChatResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChatResponse{}, err
	}
	if payload.OtherUserID == caller.ID {
		return dto.ChatResponse{}, fmt.Errorf("%w: cannot open a chat with yourself", ErrUnknownUser)
	}

	other, err := s.users.GetByID(ctx, payload.OtherUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChatResponse{}, ErrUnknownUser
		}
		return dto.ChatResponse{}, err
	}

	existing, err := s.chats.GetByPair(ctx, caller.ID, other.ID)
	if err == nil {
		return dto.NewChatResponse(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ChatResponse{}, err
	}

	a, b := models.OrderPair(caller.ID, other.ID)
	now := s.now()
	chat := models.Chat{
		ParticipantA: a,
		ParticipantB: b,
		ParticipantTypes: map[string]interface{}{
			caller.ID: string(caller.Role),
			other.ID:  string(other.NormalizedRole()),
		},
		ParticipantNames: map[string]interface{}{
			caller.ID: caller.Name,
			other.ID:  other.DisplayName(),
		},
		DeliverySurplusID: payload.DeliverySurplusID,
		LastMessageAt:     now,
	}

	if err := s.chats.Create(ctx, &chat); err != nil {
		// A concurrent opener may have won the unique pair index.
		if retry, lookupErr := s.chats.GetByPair(ctx, caller.ID, other.ID); lookupErr == nil {
			return dto.NewChatResponse(retry), nil
		}
		return dto.ChatResponse{}, err
	}

	s.logger.Info().Uint("chat_id", chat.ID).Str("participant_a", a).Str("participant_b", b).Msg("chat created")

	return dto.NewChatResponse(chat), nil
}

// ListForUser returns the caller's chats, newest activity first. Drivers do
// not see chats whose linked record has ended; canteens and NGOs keep their
// full history.
func (s *chatService) ListForUser(ctx context.Context, caller Caller) ([]dto.ChatResponse, error) {
	chats, err := s.chats.ListByParticipant(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	if caller.Role != models.RoleDriver {
		return dto.NewChatResponseSlice(chats), nil
	}

	linked := make([]uint, 0, len(chats))
	for _, chat := range chats {
		if chat.DeliverySurplusID != nil {
			linked = append(linked, *chat.DeliverySurplusID)
		}
	}

	terminal := make(map[uint]bool, len(linked))
	if len(linked) > 0 {
		records, err := s.surpluses.GetByIDs(ctx, linked)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			terminal[record.ID] = record.Terminal()
		}
	}

	visible := chats[:0]
	for _, chat := range chats {
		if chat.DeliverySurplusID != nil && terminal[*chat.DeliverySurplusID] {
			continue
		}
		visible = append(visible, chat)
	}

	return dto.NewChatResponseSlice(visible), nil
}

// Send appends a message after re-checking the archival state and the
// contact-eligibility predicate. The message and the chat preview commit in
// one transaction.
func (s *chatService) Send(ctx context.Context, chatID uint, caller Caller, payload dto.ChatSendRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrChatNotFound
		}
		return dto.MessageResponse{}, err
	}
	if !chat.HasParticipant(caller.ID) {
		return dto.MessageResponse{}, ErrNotParticipant
	}

	if err := s.checkArchived(ctx, chat); err != nil {
		return dto.MessageResponse{}, err
	}

	otherID := chat.OtherParticipant(caller.ID)
	otherRole := s.participantRole(chat, otherID)
	allowed, err := s.IsContactAllowed(ctx, caller, otherID, otherRole)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if !allowed {
		return dto.MessageResponse{}, ErrForbiddenContact
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(payload.Text))
	if clean == "" {
		return dto.MessageResponse{}, ErrMessageEmpty
	}

	ctx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.Int("chat.id", int(chatID)),
		attribute.String("chat.sender_id", caller.ID),
	))
	defer span.End()

	message := models.Message{
		ChatID:     chatID,
		SenderID:   caller.ID,
		SenderType: string(caller.Role),
		Text:       clean,
		CreatedAt:  s.now(),
	}

	if err := s.chats.AppendMessage(ctx, &message); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(message)
	s.cachePreview(ctx, response)
	s.hub.broadcast(chatID, response)
	if err := s.publish(ctx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish chat event")
	}

	observability.ChatMessagesSent().WithLabelValues(string(caller.Role)).Inc()

	return response, nil
}

func (s *chatService) History(ctx context.Context, chatID uint, caller Caller, query dto.ChatHistoryQuery) ([]dto.MessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if !chat.HasParticipant(caller.ID) {
		return nil, ErrNotParticipant
	}

	before := time.Time{}
	if query.Before != nil {
		before = *query.Before
	}

	messages, err := s.chats.ListMessages(ctx, chatID, before, query.Limit)
	if err != nil {
		return nil, err
	}

	return dto.NewMessageResponseSlice(messages), nil
}

// IsContactAllowed is the contact-eligibility predicate: true iff a record
// with status claimed links the caller and the counterpart through one of
// {canteenId, claimedBy, assignedDriverId} in a cross-role pairing. It runs
// fresh on every send, so eligibility ends the moment the record leaves the
// claimed state.
func (s *chatService) IsContactAllowed(ctx context.Context, caller Caller, otherID string, otherRole models.Role) (bool, error) {
	if otherID == "" || caller.Role == otherRole {
		return false, nil
	}

	var records []models.FoodSurplus
	var err error
	switch caller.Role {
	case models.RoleNGO:
		records, err = s.surpluses.ListByClaimer(ctx, caller.ID)
	case models.RoleCanteen:
		records, err = s.surpluses.ListByCanteen(ctx, caller.ID)
	case models.RoleDriver:
		records, err = s.surpluses.ListByDriver(ctx, caller.ID)
	default:
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for _, record := range records {
		if record.Status != models.SurplusClaimed {
			continue
		}
		if linksParticipant(record, otherID, otherRole) {
			return true, nil
		}
	}

	return false, nil
}

func linksParticipant(record models.FoodSurplus, otherID string, otherRole models.Role) bool {
	switch otherRole {
	case models.RoleCanteen:
		return record.CanteenID == otherID
	case models.RoleNGO:
		return record.ClaimedBy != nil && *record.ClaimedBy == otherID
	case models.RoleDriver:
		return record.AssignedDriverID != nil && *record.AssignedDriverID == otherID
	default:
		return false
	}
}

// ServeConnection attaches a websocket client to a chat room after
// re-running the participation and archival checks.
func (s *chatService) ServeConnection(conn *websocket.Conn, opts StreamOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	chat, err := s.chats.GetByID(baseCtx, opts.ChatID)
	if err != nil || !chat.HasParticipant(opts.Caller.ID) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "not a participant"))
		_ = conn.Close()
		return
	}
	if err := s.checkArchived(baseCtx, chat); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "chat archived"))
		_ = conn.Close()
		return
	}

	client := &chatStream{
		conn:    conn,
		send:    make(chan dto.MessageResponse, chatSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
	}

	s.hub.register(client)
	observability.ChatConnections().Inc()

	if last := s.fetchPreview(baseCtx, opts.ChatID); last != nil {
		select {
		case client.send <- *last:
		default:
		}
	}

	go client.writer()
	client.reader()
}

func (s *chatService) checkArchived(ctx context.Context, chat models.Chat) error {
	if chat.DeliverySurplusID == nil {
		return nil
	}

	record, err := s.surpluses.GetByID(ctx, *chat.DeliverySurplusID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if record.Terminal() {
		return ErrChatArchived
	}
	return nil
}

func (s *chatService) participantRole(chat models.Chat, userID string) models.Role {
	if chat.ParticipantTypes == nil {
		return ""
	}
	if raw, ok := chat.ParticipantTypes[userID]; ok {
		if str, ok := raw.(string); ok {
			return models.NormalizeRole(str)
		}
	}
	return ""
}

func (s *chatService) cachePreview(ctx context.Context, message dto.MessageResponse) {
	if s.redis == nil || s.redisKey == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal chat preview")
		return
	}

	key := fmt.Sprintf("%s:%d", s.redisKey, message.ChatID)
	if err := s.redis.Set(ctx, key, payload, chatPreviewTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache chat preview")
	}
}

func (s *chatService) fetchPreview(ctx context.Context, chatID uint) *dto.MessageResponse {
	if s.redis == nil || s.redisKey == "" {
		return nil
	}

	key := fmt.Sprintf("%s:%d", s.redisKey, chatID)
	result, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}

	var message dto.MessageResponse
	if err := json.Unmarshal([]byte(result), &message); err != nil {
		return nil
	}

	return &message
}

func (s *chatService) publish(ctx context.Context, message dto.MessageResponse) error {
	event := chatEvent{
		Source:  s.nodeID,
		Message: message,
		SentAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChan != "" {
		if err := s.redis.Publish(ctx, s.redisChan, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubj != "" {
		if err := s.nats.Publish(s.natsSubj, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *chatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChan)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *chatService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubj, "foodloop-chat", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

func (s *chatService) handleEvent(data []byte) {
	var event chatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid chat event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.hub.broadcast(event.Message.ChatID, event.Message)
}

func (h *chatHub) register(client *chatStream) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.ChatID
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*chatStream]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.log.Debug().Uint("chat_id", room).Str("user_id", client.options.Caller.ID).Msg("chat client connected")
}

func (h *chatHub) unregister(client *chatStream) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.ChatID
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.Debug().Uint("chat_id", room).Str("user_id", client.options.Caller.ID).Msg("chat client disconnected")
}

func (h *chatHub) broadcast(chatID uint, message dto.MessageResponse) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[chatID] {
		select {
		case client.send <- message:
		default:
			h.log.Warn().Uint("chat_id", chatID).Str("user_id", client.options.Caller.ID).Msg("dropping chat message for slow client")
		}
	}
}

func (c *chatStream) reader() {
	defer c.close()

	for {
		var payload dto.ChatSendRequest
		if err := c.conn.ReadJSON(&payload); err != nil {
			c.service.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}

		// Send re-runs the archival and eligibility gates, so a stream
		// opened before the linked delivery ended cannot outlive it.
		if _, err := c.service.Send(c.baseCtx, c.options.ChatID, c.options.Caller, payload); err != nil {
			c.service.logger.Warn().Err(err).Msg("failed to process streamed chat message")
			if errors.Is(err, ErrChatArchived) || errors.Is(err, ErrForbiddenContact) {
				return
			}
		}
	}
}

func (c *chatStream) writer() {
	defer c.close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *chatStream) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		observability.ChatConnections().Dec()
		_ = c.conn.Close()
	})
}
