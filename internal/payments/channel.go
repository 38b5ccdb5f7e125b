package payments

import (
	"fmt"
	"strings"
)

// Channel is how a bill gets settled.
type Channel string

const (
	ChannelCash        Channel = "cash"
	ChannelCard        Channel = "card"
	ChannelMpesa       Channel = "mpesa"
	ChannelFlutterwave Channel = "flutterwave"
)

// ParseChannel resolves a user-supplied channel name.
// Accepted aliases:
// - "cash", "manual"
// - "card", "stripe", "checkout"
// - "mpesa", "m-pesa", "stk"
// - "flutterwave", "flw", "transaction"
func ParseChannel(mode string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "cash", "manual":
		return ChannelCash, nil
	case "card", "stripe", "checkout":
		return ChannelCard, nil
	case "mpesa", "m-pesa", "stk":
		return ChannelMpesa, nil
	case "flutterwave", "flw", "transaction":
		return ChannelFlutterwave, nil
	default:
		return "", fmt.Errorf("payments: unknown channel %q", mode)
	}
}

// Async reports whether settlement is confirmed out of band and can be
// polled. Cash is confirmed by an admin instead.
func (c Channel) Async() bool {
	return c == ChannelCard || c == ChannelMpesa || c == ChannelFlutterwave
}
