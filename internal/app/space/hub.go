/*
Package space contains the core logic of the shared-space relay.

This file defines the Hub, the single logical sequencer of the relay. One run
goroutine owns the presence Registry and the History store outright: every
connect, disconnect, and inbound protocol event is funneled through its
channels and applied one at a time, so no two state-mutating operations ever
interleave and a read-then-write sequence is atomic with respect to a
concurrent disconnect of the same connection.
*/
package space

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"hiroba/internal/app/user"
	"hiroba/internal/configs"
	"hiroba/internal/pkg/errs"
	"hiroba/internal/pkg/logx"
	"hiroba/internal/pkg/randx"
)

const commandChannelBuffer = 1024

// Join and leave notices broadcast to every observer.
const (
	joinedMessageFormat = "%s が入室しました"
	leftMessageFormat   = "%s が退室しました"
)

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdEvent
	cmdUsers
)

// command is one unit of work for the sequencer. Connects, disconnects, and
// protocol events all travel the same channel, so the order the Gateway
// dispatched them in is the order they are applied.
type command struct {
	kind     commandKind
	client   *Client
	envelope Envelope

	// usersReply carries the answer to a cmdUsers query.
	usersReply chan []user.User
}

// Hub coordinates all live connections of the shared space. The exported
// methods only hand work to the run goroutine; all state lives behind it.
type Hub struct {
	config *configs.AppConfig

	// registry is the authoritative presence store. Only the run goroutine
	// touches it.
	registry *Registry

	// history is the process-lifetime message store. Only the run goroutine
	// touches it.
	history *History

	// clients holds every open connection, keyed by connection id. A closed
	// connection is removed before any later event is processed.
	clients map[string]*Client

	// commands is the single mailbox feeding the run goroutine.
	commands chan command

	// done signals the run goroutine to stop.
	done chan struct{}

	// wg waits for the run goroutine during shutdown.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewHub constructs a Hub and starts its run goroutine.
func NewHub(cfg *configs.AppConfig, history *History) *Hub {
	h := &Hub{
		config:   cfg,
		registry: NewRegistry(),
		history:  history,
		clients:  make(map[string]*Client),
		commands: make(chan command, commandChannelBuffer),
		done:     make(chan struct{}),
		logger:   logx.Logger().With().Str("component", "Hub").Logger(),
	}

	h.wg.Add(1)
	go h.run()

	return h
}

// Register hands an accepted connection to the Hub.
func (h *Hub) Register(c *Client) {
	h.submit(command{kind: cmdConnect, client: c})
}

// Unregister reports a closed connection to the Hub. Safe to call more than
// once for the same connection.
func (h *Hub) Unregister(c *Client) {
	h.submit(command{kind: cmdDisconnect, client: c})
}

// Dispatch queues an inbound protocol event for sequential processing.
func (h *Hub) Dispatch(c *Client, envelope Envelope) {
	h.submit(command{kind: cmdEvent, client: c, envelope: envelope})
}

// Users returns the current presence snapshot, computed on the sequencer
// after everything submitted before this call.
func (h *Hub) Users() []user.User {
	reply := make(chan []user.User, 1)
	h.submit(command{kind: cmdUsers, usersReply: reply})

	select {
	case users := <-reply:
		return users
	case <-h.done:
		return nil
	}
}

// submit queues one command for the run goroutine, giving up when the Hub is
// shutting down.
func (h *Hub) submit(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.done:
	}
}

// Shutdown stops the run goroutine and releases every connection.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down Hub...")

	select {
	case <-h.done:
	default:
		close(h.done)
	}

	h.wg.Wait()

	h.logger.Info().Msg("Hub shutdown complete.")
}

// run is the sequencer loop. Everything that mutates the Registry, the
// History, or a connection's session state happens here and nowhere else.
func (h *Hub) run() {
	defer func() {
		for _, c := range h.clients {
			c.state = stateClosed
			close(c.send)
		}
		h.clients = make(map[string]*Client)

		h.wg.Done()
	}()

	h.logger.Info().Msg("Hub sequencer started.")

	for {
		select {
		case cmd := <-h.commands:
			switch cmd.kind {
			case cmdConnect:
				h.handleConnect(cmd.client)

			case cmdDisconnect:
				h.handleDisconnect(cmd.client)

			case cmdEvent:
				h.handleEvent(cmd.client, cmd.envelope)

			case cmdUsers:
				cmd.usersReply <- h.registry.Snapshot()
			}

		case <-h.done:
			h.logger.Info().Msg("Hub sequencer stopped.")
			return
		}
	}
}

// handleConnect admits an accepted connection. The connection stays invisible
// to other participants until its login is processed.
func (h *Hub) handleConnect(c *Client) {
	h.clients[c.id] = c

	h.logger.Info().
		Str("connection_id", c.id).
		Int("total_connections", len(h.clients)).
		Msg("Connection accepted.")
}

// handleDisconnect drives the terminal lifecycle transition. It is
// unconditional and immediate: the Registry entry (if any) is removed before
// any later event for any connection is processed, and a second disconnect
// for the same connection is a no-op.
func (h *Hub) handleDisconnect(c *Client) {
	if c.state == stateClosed {
		return
	}

	wasRegistered := c.state == stateRegistered
	c.state = stateClosed

	delete(h.clients, c.id)

	// state was not stateClosed, so the channel cannot have been closed yet.
	close(c.send)

	if !wasRegistered {
		h.logger.Info().
			Str("connection_id", c.id).
			Msg("Connection closed before login. No departure broadcast.")
		return
	}

	removed := h.registry.Remove(c.id)
	if removed == nil {
		return
	}

	h.logger.Info().
		Str("connection_id", c.id).
		Str("display_name", removed.DisplayName).
		Int("total_users", h.registry.Len()).
		Msg("Participant left.")

	h.announce(fmt.Sprintf(leftMessageFormat, removed.DisplayName))
	h.broadcastSnapshot()
}

// handleEvent routes one inbound frame. Events for a closed connection are
// ignored; an unknown event name is logged and dropped, never fatal.
func (h *Hub) handleEvent(c *Client, envelope Envelope) {
	if c.state == stateClosed {
		h.logger.Debug().
			Str("connection_id", c.id).
			Str("event_type", string(envelope.Type)).
			Msg("Event for closed connection ignored.")
		return
	}

	switch envelope.Type {
	case EventLogin:
		h.handleLogin(c, envelope.Payload)

	case EventMessageSend:
		h.handleMessageSend(c, envelope.Payload)

	case EventMove:
		h.handleMove(c, envelope.Payload)

	case EventTyping:
		h.handleTyping(c, envelope.Payload)

	case EventCheckName:
		h.handleCheckName(c, envelope.Payload)

	case EventHistoryFetch:
		h.handleHistoryFetch(c, envelope.Payload)

	case EventReactionAdd:
		h.handleReaction(c, envelope.Payload, true)

	case EventReactionDel:
		h.handleReaction(c, envelope.Payload, false)

	case EventMessageDelete:
		h.handleMessageDelete(c, envelope.Payload)

	case EventHistoryClear:
		h.handleHistoryClear(c)

	default:
		h.logger.Warn().
			Str("connection_id", c.id).
			Str("event_type", string(envelope.Type)).
			Msg("Client sent unsupported event type")
	}
}

// handleLogin drives the Connected to Registered transition. Login is
// idempotent: a second login on the same open connection overwrites the
// record without a second join notice.
func (h *Hub) handleLogin(c *Client, payload []byte) {
	var login LoginPayload
	if err := unmarshalPayload(payload, &login); err != nil {
		h.logger.Warn().Err(err).Str("connection_id", c.id).Msg("Client sent invalid login payload")
		c.enqueueError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	displayName := strings.TrimSpace(login.DisplayName)
	if displayName == "" {
		generated, err := randx.GuestName()
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to generate guest name")
			c.enqueueError(errs.NewError(errs.ErrUnknown))
			return
		}
		displayName = generated
	}

	if len(displayName) > MaxDisplayNameBytes {
		c.enqueueError(errs.NewError(errs.ErrNameInvalid))
		return
	}

	if h.config.EnforceUniqueNames && h.registry.NameInUse(displayName, c.id) {
		h.logger.Info().
			Str("connection_id", c.id).
			Str("display_name", displayName).
			Msg("Login rejected: display name already in use.")
		c.enqueueError(errs.NewError(errs.ErrNameTaken))
		return
	}

	status := login.Status
	if !status.IsValid() {
		status = user.StatusOnline
	}

	record := user.User{
		ConnectionID: c.id,
		DisplayName:  displayName,
		Status:       status,
		Position:     login.Position,
		Color:        login.Color,
		AvatarRef:    login.AvatarRef,
	}

	alreadyRegistered := c.state == stateRegistered

	h.registry.Upsert(c.id, record)
	c.displayName = displayName
	c.admin = h.config.AdminKey != "" && login.AdminKey == h.config.AdminKey

	if alreadyRegistered {
		h.logger.Info().
			Str("connection_id", c.id).
			Str("display_name", displayName).
			Msg("Repeated login on open connection. Record overwritten, no join notice.")
		h.broadcastSnapshot()
		return
	}

	c.state = stateRegistered

	h.logger.Info().
		Str("connection_id", c.id).
		Str("display_name", displayName).
		Bool("admin", c.admin).
		Int("total_users", h.registry.Len()).
		Msg("Participant joined.")

	h.announce(fmt.Sprintf(joinedMessageFormat, displayName))
	h.broadcastSnapshot()
}

// handleMessageSend assigns the server-side id and timestamp, stores the
// message, and broadcasts it to every connection including the sender.
func (h *Hub) handleMessageSend(c *Client, payload []byte) {
	if c.state != stateRegistered {
		c.enqueueError(errs.NewError(errs.ErrNotLoggedIn))
		return
	}

	if !c.msgLimiter.Allow() {
		h.logger.Warn().
			Str("connection_id", c.id).
			Msg("Message dropped: per-connection rate exceeded.")
		c.enqueueError(errs.NewError(errs.ErrMessageRateExceeded))
		return
	}

	var send SendPayload
	if err := unmarshalPayload(payload, &send); err != nil {
		h.logger.Warn().Err(err).Str("connection_id", c.id).Msg("Client sent invalid message payload")
		c.enqueueError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	content := strings.TrimSpace(send.Content)
	if content == "" {
		c.enqueueError(errs.NewError(errs.ErrInvalidParams))
		return
	}
	if len(content) > MaxContentBytes {
		c.enqueueError(errs.NewError(errs.ErrMessageContentTooLong))
		return
	}

	msg := newUserMessage(c.displayName, c.id, content)

	if send.ReplyTo != "" {
		target, err := h.history.Get(send.ReplyTo)
		if err != nil {
			if errors.Is(err, ErrMessageUnknown) {
				c.enqueueError(errs.NewError(errs.ErrMessageNotFound))
				return
			}
			h.logger.Error().Err(err).Msg("Failed to load reply target")
			c.enqueueError(errs.NewError(errs.ErrUnknown))
			return
		}

		msg.ReplyTo = target.ID
		msg.ReplyContext = &ReplyContext{
			Sender:  target.Sender,
			Content: target.Content,
		}
	}

	if err := h.history.Append(msg); err != nil {
		// The relay's prime obligation is delivery; a store failure is
		// logged but does not suppress the broadcast.
		h.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to store message")
	}

	h.broadcast(EventMessageNew, msg)
}

// handleMove mutates the sender's position and broadcasts the full presence
// snapshot, never a delta. A move for an unregistered connection is the
// expected arrives-after-disconnect race and is silently dropped.
func (h *Hub) handleMove(c *Client, payload []byte) {
	if c.state != stateRegistered {
		h.logger.Debug().
			Str("connection_id", c.id).
			Msg("Move for unregistered connection dropped.")
		return
	}

	var move MovePayload
	if err := unmarshalPayload(payload, &move); err != nil {
		h.logger.Warn().Err(err).Str("connection_id", c.id).Msg("Client sent invalid move payload")
		return
	}

	mutated := h.registry.Mutate(c.id, func(u *user.User) {
		u.Position = user.Position{X: move.X, Y: move.Y}
	})

	if mutated {
		h.broadcastSnapshot()
	}
}

// handleTyping relays the typing state to every connection except the sender.
// Typing state is never stored.
func (h *Hub) handleTyping(c *Client, payload []byte) {
	if c.state != stateRegistered {
		h.logger.Debug().
			Str("connection_id", c.id).
			Msg("Typing for unregistered connection dropped.")
		return
	}

	var typing TypingPayload
	if err := unmarshalPayload(payload, &typing); err != nil {
		h.logger.Warn().Err(err).Str("connection_id", c.id).Msg("Client sent invalid typing payload")
		return
	}

	h.relayExcept(c, EventUserTyping, TypingEvent{
		ConnectionID: c.id,
		DisplayName:  c.displayName,
		IsTyping:     typing.IsTyping,
	})
}

// handleCheckName answers a name availability query. The reply goes only to
// the requester and causes no state change; whether login enforces the
// answer is a separate, configurable decision.
func (h *Hub) handleCheckName(c *Client, payload []byte) {
	var check CheckNamePayload
	if err := unmarshalPayload(payload, &check); err != nil {
		h.logger.Warn().Err(err).Str("connection_id", c.id).Msg("Client sent invalid check_name payload")
		c.enqueueError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	displayName := strings.TrimSpace(check.DisplayName)

	reply := NameAvailability{DisplayName: displayName, Available: true}

	switch {
	case displayName == "" || len(displayName) > MaxDisplayNameBytes:
		reply.Available = false
		reply.Reason = "invalid"
	case h.registry.NameInUse(displayName, c.id):
		reply.Available = false
		reply.Reason = "taken"
	}

	h.sendTo(c, EventNameAvailability, reply)
}

// handleHistoryFetch returns one cursor page of stored messages to the
// requester. Pre-login connections may fetch; history is observer state.
func (h *Hub) handleHistoryFetch(c *Client, payload []byte) {
	var fetch HistoryFetchPayload
	if err := unmarshalPayload(payload, &fetch); err != nil {
		h.logger.Warn().Err(err).Str("connection_id", c.id).Msg("Client sent invalid history fetch payload")
		c.enqueueError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	messages, hasMore, nextCursor, err := h.history.Page(fetch.Before, fetch.Limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load history page")
		c.enqueueError(errs.NewError(errs.ErrUnknown))
		return
	}

	h.sendTo(c, EventHistoryPage, HistoryPage{
		Messages:   messages,
		HasMore:    hasMore,
		NextCursor: nextCursor,
	})
}

// handleReaction applies a reaction mutation and broadcasts the complete
// updated reaction map for the message.
func (h *Hub) handleReaction(c *Client, payload []byte, add bool) {
	if c.state != stateRegistered {
		c.enqueueError(errs.NewError(errs.ErrNotLoggedIn))
		return
	}

	var reaction ReactionPayload
	if err := unmarshalPayload(payload, &reaction); err != nil {
		h.logger.Warn().Err(err).Str("connection_id", c.id).Msg("Client sent invalid reaction payload")
		c.enqueueError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	if reaction.MessageID == "" || reaction.Emoji == "" {
		c.enqueueError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	reactions, err := h.history.React(reaction.MessageID, reaction.Emoji, c.displayName, add)
	if err != nil {
		if errors.Is(err, ErrMessageUnknown) {
			c.enqueueError(errs.NewError(errs.ErrMessageNotFound))
			return
		}
		h.logger.Error().Err(err).Str("message_id", reaction.MessageID).Msg("Failed to apply reaction")
		c.enqueueError(errs.NewError(errs.ErrUnknown))
		return
	}

	if reactions == nil {
		reactions = map[string][]string{}
	}

	h.broadcast(EventMessageReactions, ReactionsEvent{
		MessageID: reaction.MessageID,
		Reactions: reactions,
	})
}

// handleMessageDelete removes a message. Participants may delete their own
// messages; admin connections may delete any.
func (h *Hub) handleMessageDelete(c *Client, payload []byte) {
	if c.state != stateRegistered {
		c.enqueueError(errs.NewError(errs.ErrNotLoggedIn))
		return
	}

	var del MessageDeletePayload
	if err := unmarshalPayload(payload, &del); err != nil {
		h.logger.Warn().Err(err).Str("connection_id", c.id).Msg("Client sent invalid delete payload")
		c.enqueueError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	target, err := h.history.Get(del.MessageID)
	if err != nil {
		if errors.Is(err, ErrMessageUnknown) {
			c.enqueueError(errs.NewError(errs.ErrMessageNotFound))
			return
		}
		h.logger.Error().Err(err).Str("message_id", del.MessageID).Msg("Failed to load message for delete")
		c.enqueueError(errs.NewError(errs.ErrUnknown))
		return
	}

	if target.SenderID != c.id && !c.admin {
		c.enqueueError(errs.NewError(errs.ErrNotPermitted))
		return
	}

	if err := h.history.Delete(del.MessageID); err != nil && !errors.Is(err, ErrMessageUnknown) {
		h.logger.Error().Err(err).Str("message_id", del.MessageID).Msg("Failed to delete message")
		c.enqueueError(errs.NewError(errs.ErrUnknown))
		return
	}

	h.logger.Info().
		Str("connection_id", c.id).
		Str("message_id", del.MessageID).
		Bool("admin", c.admin).
		Msg("Message deleted.")

	h.broadcast(EventMessageDeleted, MessageDeletedEvent{MessageID: del.MessageID})
}

// handleHistoryClear wipes the message store. Admin connections only.
func (h *Hub) handleHistoryClear(c *Client) {
	if c.state != stateRegistered || !c.admin {
		c.enqueueError(errs.NewError(errs.ErrNotPermitted))
		return
	}

	if err := h.history.Clear(); err != nil {
		h.logger.Error().Err(err).Msg("Failed to clear history")
		c.enqueueError(errs.NewError(errs.ErrUnknown))
		return
	}

	h.logger.Info().Str("connection_id", c.id).Msg("History cleared by admin.")

	h.broadcast(EventHistoryCleared, struct{}{})
}

// announce stores and broadcasts a synthetic system message.
func (h *Hub) announce(content string) {
	msg := newSystemMessage(content)

	if err := h.history.Append(msg); err != nil {
		h.logger.Error().Err(err).Msg("Failed to store system message")
	}

	h.broadcast(EventMessageNew, msg)
}

// broadcastSnapshot sends the full ordered user list to every connection.
func (h *Hub) broadcastSnapshot() {
	h.broadcast(EventUsersUpdate, h.registry.Snapshot())
}

// broadcast delivers one event to every open connection. Delivery is
// best-effort: a connection that cannot take the frame is unregistered after
// the loop so the clients map is never mutated mid-iteration.
func (h *Hub) broadcast(eventType EventType, payload any) {
	var stalled []*Client

	for _, c := range h.clients {
		if !c.enqueue(eventType, payload) {
			stalled = append(stalled, c)
		}
	}

	for _, c := range stalled {
		h.handleDisconnect(c)
	}
}

// relayExcept delivers one event to every open connection except the origin.
func (h *Hub) relayExcept(origin *Client, eventType EventType, payload any) {
	var stalled []*Client

	for _, c := range h.clients {
		if c.id == origin.id {
			continue
		}
		if !c.enqueue(eventType, payload) {
			stalled = append(stalled, c)
		}
	}

	for _, c := range stalled {
		h.handleDisconnect(c)
	}
}

// sendTo delivers one event to a single connection. A send to a connection
// that has already disconnected is a no-op, not an error.
func (h *Hub) sendTo(c *Client, eventType EventType, payload any) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}

	if !c.enqueue(eventType, payload) {
		h.handleDisconnect(c)
	}
}
