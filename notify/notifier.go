// Package notify stores per-user notifications and fans them out to live
// sessions and e-mail.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"ticketops/settings"
	"ticketops/store"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// EventNotification is the SSE event name for a new notification.
const EventNotification = "notification"

// Broadcaster pushes a live event to the connected sessions of a client.
type Broadcaster interface {
	Broadcast(clientID int64, event string, data any)
}

// Message is one notification addressed to several users.
type Message struct {
	ClientID   int64
	Type       string
	Severity   string
	Title      string
	Body       string
	EntityType string
	EntityID   int64
}

type outgoing struct {
	to, subject, body, eventType string
}

type Notifier struct {
	db       *store.DB
	settings *settings.Service
	mailer   Mailer
	hub      Broadcaster
	log      *zap.Logger
	mail     chan outgoing
	onSent   func(n int)
}

func New(db *store.DB, st *settings.Service, mailer Mailer, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		db:       db,
		settings: st,
		mailer:   mailer,
		log:      log.Named("notify"),
		mail:     make(chan outgoing, 256),
	}
}

// SetBroadcaster attaches the live event hub.
func (n *Notifier) SetBroadcaster(b Broadcaster) {
	n.hub = b
}

// OnSent registers a callback invoked with the number of rows each Send stored.
func (n *Notifier) OnSent(fn func(n int)) {
	n.onSent = fn
}

// Send stores msg for every distinct recipient, skipping unknown or
// inactive users and the user given in skip.
func (n *Notifier) Send(msg Message, skip int64, recipients ...int64) int {
	if msg.Severity == "" {
		msg.Severity = SeverityInfo
	}
	emailOn := n.mailer != nil && n.settings.Bool(settings.EmailEnabled)
	seen := make(map[int64]bool)
	sent := 0
	for _, uid := range recipients {
		if uid <= 0 || uid == skip || seen[uid] {
			continue
		}
		seen[uid] = true
		u, err := n.db.GetUser(uid)
		if err != nil || !u.Active {
			continue
		}
		row := &store.Notification{
			UserID:     uid,
			Type:       msg.Type,
			Severity:   msg.Severity,
			Title:      msg.Title,
			Message:    msg.Body,
			EntityType: msg.EntityType,
			EntityID:   msg.EntityID,
		}
		if msg.ClientID > 0 {
			row.ClientID = &msg.ClientID
		}
		if err := n.db.CreateNotification(row); err != nil {
			n.log.Error("store notification", zap.Int64("user", uid), zap.Error(err))
			continue
		}
		sent++
		if n.hub != nil {
			n.hub.Broadcast(msg.ClientID, EventNotification, row)
		}
		if emailOn && u.Email != "" {
			n.queueMail(outgoing{to: u.Email, subject: msg.Title, body: msg.Body, eventType: msg.Type})
		}
	}
	if sent > 0 && n.onSent != nil {
		n.onSent(sent)
	}
	return sent
}

func (n *Notifier) queueMail(m outgoing) {
	select {
	case n.mail <- m:
	default:
		n.log.Warn("mail queue full, dropping", zap.String("to", m.to), zap.String("subject", m.subject))
		n.db.LogEmail(m.to, m.subject, m.eventType, store.EmailFailed, "queue full")
	}
}

// Run delivers queued e-mail until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-n.mail:
			n.deliver(m)
		}
	}
}

func (n *Notifier) deliver(m outgoing) {
	status, errText := store.EmailSent, ""
	if err := n.mailer.Send(m.to, m.subject, m.body); err != nil {
		status, errText = store.EmailFailed, err.Error()
		n.log.Warn("send mail", zap.String("to", m.to), zap.Error(err))
	}
	if err := n.db.LogEmail(m.to, m.subject, m.eventType, status, errText); err != nil {
		n.log.Error("log email", zap.Error(err))
	}
}

// SendTest mails a one-off message synchronously and records it.
func (n *Notifier) SendTest(to string) error {
	if n.mailer == nil {
		return ErrMailNotConfigured
	}
	if to == "" {
		return errors.New("recipient required")
	}
	m := outgoing{to: to, subject: "TicketOps test e-mail", body: "SMTP delivery is working.", eventType: "test"}
	err := n.mailer.Send(m.to, m.subject, m.body)
	status, errText := store.EmailSent, ""
	if err != nil {
		status, errText = store.EmailFailed, err.Error()
	}
	if lerr := n.db.LogEmail(m.to, m.subject, m.eventType, status, errText); lerr != nil {
		n.log.Error("log email", zap.Error(lerr))
	}
	return err
}

// --- Inbox ---

func (n *Notifier) List(userID int64, unreadOnly bool, limit int) ([]*store.Notification, error) {
	return n.db.ListNotifications(userID, unreadOnly, limit)
}

func (n *Notifier) UnreadCount(userID int64) (int, error) {
	return n.db.CountUnreadNotifications(userID)
}

func (n *Notifier) MarkRead(userID, id int64) error {
	return n.db.MarkNotificationRead(userID, id)
}

func (n *Notifier) MarkAllRead(userID int64) (int64, error) {
	return n.db.MarkAllNotificationsRead(userID)
}
