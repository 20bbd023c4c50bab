package link

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// PeerPath is the route prefix an examiner node serves links on.
const PeerPath = "/peer/"

// Dial opens the participant's single outbound link to peerID at the
// examiner reachable through baseURL (http, https, ws or wss).
func Dial(ctx context.Context, baseURL, peerID string, log zerolog.Logger) (*Conn, error) {
	target, err := peerURL(baseURL, peerID)
	if err != nil {
		return nil, err
	}

	c, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: %s: %w", peerID, resp.Status, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", peerID, err)
	}
	return NewConn(c, log).ForPeer(peerID), nil
}

func peerURL(baseURL, peerID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parsing authority url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported authority url scheme %q", u.Scheme)
	}
	u.Path = u.Path + PeerPath + url.PathEscape(peerID)
	return u.String(), nil
}
