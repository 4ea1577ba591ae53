package push

import (
	"fmt"
	"log/slog"

	"github.com/tegward/housepoints/internal/model"
	"github.com/tegward/housepoints/internal/store"
)

// Notifier fans a point notification out to the recipient's push
// subscriptions. A nil Notifier is valid and does nothing, which is how
// deployments without VAPID keys run.
type Notifier struct {
	service *Service
	subs    *store.PushStore
	logger  *slog.Logger
}

func NewNotifier(service *Service, subs *store.PushStore, logger *slog.Logger) *Notifier {
	return &Notifier{service: service, subs: subs, logger: logger}
}

// NotifyPointChange sends one push per device the recipient registered.
// Failures are logged and swallowed: push delivery is advisory, the
// in-forum feed is the record.
func (n *Notifier) NotifyPointChange(entry *model.NotifEntry) {
	if n == nil || entry == nil {
		return
	}

	subs, err := n.subs.ListByUser(entry.UserID)
	if err != nil {
		n.logger.Error("list subscriptions", "user_id", entry.UserID, "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	sign := "+"
	if entry.Delta < 0 {
		sign = ""
	}
	payload := Payload{
		Title: "Points updated",
		Body:  fmt.Sprintf("%s: %s%d for %s by %s", entry.Abbr, sign, entry.Delta, entry.Reason, entry.StaffName),
		URL:   fmt.Sprintf("/user/%d/notifications", entry.UserID),
		Tag:   "housepoints",
	}

	for i := range subs {
		sub := &subs[i]
		err := n.service.Send(sub, payload)
		if err == ErrExpired {
			// Push service dropped this endpoint; forget it.
			if derr := n.subs.DeleteByEndpoint(sub.Endpoint); derr != nil {
				n.logger.Error("delete expired subscription", "endpoint", sub.Endpoint, "error", derr)
			}
			continue
		}
		if err != nil {
			n.logger.Error("send push", "user_id", entry.UserID, "error", err)
		}
	}
}
