package notify

import (
	"context"

	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/pkg/errors"
	pubnub "github.com/pubnub/go/v7"
)

// Pusher delivers realtime messages to a user's channel.
type Pusher interface {
	Push(ctx context.Context, userID string, message map[string]any) error
}

type PubNubPusher struct {
	pn *pubnub.PubNub
}

func NewPubNubPusher(cfg config.PubNubConfig) *PubNubPusher {
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey
	return &PubNubPusher{pn: pubnub.NewPubNub(pnConfig)}
}

// Channel is the per-user channel the frontend subscribes to.
func Channel(userID string) string {
	return "user-" + userID
}

func (p *PubNubPusher) Push(_ context.Context, userID string, message map[string]any) error {
	_, _, err := p.pn.Publish().
		Channel(Channel(userID)).
		Message(message).
		Execute()
	return errors.Wrap(err, "pubnub publish")
}
