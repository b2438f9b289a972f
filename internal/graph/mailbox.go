package graph

import (
	"context"
	"fmt"
	"net/url"

	"oncallcheck/internal/model"
)

type graphMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	IsRead  bool   `json:"isRead"`
}

// UnreadMessages lists unread messages in the monitored mailbox. Filtering is
// done server-side.
func (c *Client) UnreadMessages(ctx context.Context) ([]model.VoicemailMessage, error) {
	q := url.Values{}
	q.Set("$filter", "IsRead eq false")
	q.Set("$select", "id,subject,isRead")
	u := fmt.Sprintf("%s/users/%s/messages?%s", c.baseURL, url.PathEscape(c.cfg.Mailbox), q.Encode())

	msgs, err := getAll[graphMessage](ctx, c, u, nil)
	if err != nil {
		return nil, fmt.Errorf("list unread messages: %w", err)
	}
	out := make([]model.VoicemailMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, model.VoicemailMessage{ID: m.ID, Subject: m.Subject, IsRead: m.IsRead})
	}
	return out, nil
}
