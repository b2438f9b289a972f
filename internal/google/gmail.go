package google

import (
	"context"
	"strings"

	"oncallcheck/internal/model"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// UnreadMessages lists unread mail for the monitored user and reads each
// message's Subject header. Messages are fetched one at a time; a poll only
// ever sees a handful.
func (p *Provider) UnreadMessages(ctx context.Context) ([]model.VoicemailMessage, error) {
	var ids []string
	err := p.gmail.Users.Messages.List(p.user).
		Q("is:unread").
		MaxResults(100).
		Pages(ctx, func(resp *gmailv1.ListMessagesResponse) error {
			for _, m := range resp.Messages {
				ids = append(ids, m.Id)
			}
			return nil
		})
	if err != nil {
		return nil, classify("list unread messages", err)
	}

	out := make([]model.VoicemailMessage, 0, len(ids))
	for _, id := range ids {
		msg, err := p.gmail.Users.Messages.Get(p.user, id).
			Format("metadata").
			MetadataHeaders("Subject").
			Context(ctx).
			Do()
		if err != nil {
			return out, classify("get message "+id, err)
		}
		out = append(out, toVoicemail(msg))
	}
	return out, nil
}

func toVoicemail(msg *gmailv1.Message) model.VoicemailMessage {
	var subject string
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			if strings.EqualFold(h.Name, "subject") {
				subject = h.Value
				break
			}
		}
	}
	return model.VoicemailMessage{
		ID:      msg.Id,
		Subject: subject,
		IsRead:  !contains(msg.LabelIds, "UNREAD"),
	}
}

func contains[T comparable](arr []T, v T) bool {
	for _, x := range arr {
		if x == v {
			return true
		}
	}
	return false
}
