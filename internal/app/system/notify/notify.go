// Package notify turns posting changes into real-time messages for the
// people who care about them: every admin, and the posting's owner.
package notify

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dalemusser/voluntahub/internal/app/system/normalize"
	"github.com/dalemusser/voluntahub/internal/app/system/pubsub"
	"github.com/dalemusser/voluntahub/internal/app/system/timeouts"
	"github.com/dalemusser/voluntahub/internal/domain/models"
)

// Event names sent to clients.
const (
	PostingCreated  = "posting_created"
	PostingUpdated  = "posting_updated"
	PostingDeleted  = "posting_deleted"
	PostingSelected = "posting_selected"
)

// AdminsChannel reaches every connected administrator.
const AdminsChannel = "admins"

const userChannelPrefix = "user:"

// UserChannel is the private channel of the user with email.
func UserChannel(email string) string {
	return userChannelPrefix + normalize.Email(email)
}

// ChannelsFor returns the channels a connection with this identity joins.
func ChannelsFor(email string, admin bool) []string {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	chans := []string{UserChannel(email)}
	if admin {
		chans = append(chans, AdminsChannel)
	}
	return chans
}

// Recipients returns the admins channel plus one private channel per
// distinct non-empty owner email.
func Recipients(owners ...string) []string {
	out := []string{AdminsChannel}
	seen := map[string]struct{}{}
	for _, o := range owners {
		e := normalize.Email(o)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, UserChannel(e))
	}
	return out
}

// Notifier publishes posting events through a Broker.
type Notifier struct {
	broker pubsub.Broker
	log    *zap.Logger
	newID  func() string
}

// New returns a Notifier publishing through broker.
func New(broker pubsub.Broker, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{broker: broker, log: logger, newID: uuid.NewString}
}

// Notify publishes event with payload to the admins channel and to each
// owner's private channel. It is fire-and-forget: failures are logged and
// never reported to the caller, whose change has already been committed.
func (n *Notifier) Notify(ctx context.Context, event string, payload any, owners ...string) {
	if n == nil || n.broker == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("notify: marshal payload", zap.String("event", event), zap.Error(err))
		return
	}

	// The request may already be finishing; publishing gets its own budget.
	ctx, cancel := timeouts.WithTimeout(context.WithoutCancel(ctx), timeouts.Short(), n.log, "notify "+event)
	defer cancel()

	msg := pubsub.Message{ID: n.newID(), Event: event, Data: data}
	for _, ch := range Recipients(owners...) {
		if err := n.broker.Publish(ctx, ch, msg); err != nil {
			n.log.Warn("notify: publish failed",
				zap.String("event", event),
				zap.String("channel", ch),
				zap.Error(err))
		}
	}
}

// PostingPayload is the body of posting_created: every stored field.
type PostingPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	OwnerEmail  string `json:"ownerEmail"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Image       string `json:"image,omitempty"`
}

// Created builds the posting_created payload.
func Created(p models.Posting) PostingPayload {
	return PostingPayload{
		ID:          p.ID.Hex(),
		Title:       p.Title,
		OwnerEmail:  p.OwnerEmail,
		Date:        p.Date,
		Description: p.Description,
		Kind:        string(p.Kind),
		Image:       p.Image,
	}
}

// Updated builds the posting_updated payload: the id plus only the fields
// the caller supplied.
func Updated(id string, patch models.PostingPatch) map[string]any {
	m := patch.Changes()
	if k, ok := m["kind"].(models.Kind); ok {
		m["kind"] = string(k)
	}
	m["id"] = id
	return m
}

// IDOnly builds the posting_deleted and posting_selected payloads.
func IDOnly(id string) map[string]string {
	return map[string]string{"id": id}
}
