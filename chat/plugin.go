package chat

import (
	"context"

	"github.com/onnwee/convbot/convert"
)

// Message is a chat line as seen by plugins.
type Message struct {
	ID      string
	Channel string
	User    string
	Text    string
}

// Plugin reacts to chat messages. Reply returns false when the plugin has
// nothing to say.
type Plugin interface {
	Name() string
	Reply(ctx context.Context, msg Message) (string, bool)
}

// ConversionPlugin answers conversion expressions like "100 usd to eur".
type ConversionPlugin struct {
	Converter *convert.Converter
}

func (ConversionPlugin) Name() string { return "convert" }

func (p ConversionPlugin) Reply(ctx context.Context, msg Message) (string, bool) {
	if p.Converter == nil {
		return "", false
	}
	reply := p.Converter.Handle(ctx, msg.Text)
	return reply.Text, !reply.Silent()
}
