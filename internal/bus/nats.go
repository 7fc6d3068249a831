// Package bus carries extraction triggers over NATS request/reply.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"crmextract/internal/dispatch"
)

// DefaultSubject is the subject triggers are sent on.
const DefaultSubject = "crm.extract"

// Config locates the NATS server.
type Config struct {
	Endpoint string
	Subject  string
	Name     string
}

// HandlerFunc answers one trigger.
type HandlerFunc func(ctx context.Context, req dispatch.Request) dispatch.Response

// Connect dials the server with reconnects enabled forever.
func Connect(cfg Config) (*nats.Conn, error) {
	opt := nats.GetDefaultOptions()
	opt.Name = cfg.Name
	opt.Url = cfg.Endpoint
	opt.NoCallbacksAfterClientClose = true
	opt.ReconnectWait = 2 * time.Second
	opt.MaxReconnect = -1
	opt.AllowReconnect = true
	opt.ReconnectJitter = 500 * time.Millisecond
	opt.DisconnectedErrCB = func(conn *nats.Conn, err error) {
		if err != nil {
			zap.S().Debugf("nats disconnected: %s", err.Error())
		}
	}
	opt.ReconnectedCB = func(conn *nats.Conn) {
		zap.S().Debugf("nats reconnected")
	}
	opt.ConnectedCB = func(conn *nats.Conn) {
		zap.S().Debugf("nats connected to %s", conn.ConnectedUrl())
	}

	nc, err := opt.Connect()
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Endpoint, err)
	}
	nc.SetErrorHandler(func(conn *nats.Conn, sub *nats.Subscription, natsErr error) {
		switch {
		case errors.Is(natsErr, nats.ErrSlowConsumer):
			pms, _, pmsErr := sub.Pending()
			if pmsErr != nil {
				zap.S().Errorf("couldn't get pending messages: %v", pmsErr)
			} else {
				zap.S().Errorf("falling behind with %d pending messages on subject %q", pms, sub.Subject)
			}
		default:
			zap.S().Errorf("nats error: %v", natsErr)
		}
	})
	return nc, nil
}

// HandleMessage decodes a trigger payload, runs h and encodes the reply. An
// empty payload means {"action":"extract"}; a malformed one is answered with
// an error status without calling h.
func HandleMessage(ctx context.Context, data []byte, h HandlerFunc) []byte {
	req := dispatch.Request{Action: dispatch.ActionExtract}
	var resp dispatch.Response
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			resp = dispatch.Response{Status: dispatch.StatusError, Error: fmt.Sprintf("decode request: %v", err)}
		}
	}
	if resp.Status == "" {
		resp = h(ctx, req)
	}
	b, err := json.Marshal(resp)
	if err != nil {
		// Response only holds strings and ints.
		return []byte(`{"status":"error"}`)
	}
	return b
}

// Serve answers triggers on subject until ctx is done, then drains the
// subscription.
func Serve(ctx context.Context, nc *nats.Conn, subject string, h HandlerFunc) error {
	if subject == "" {
		subject = DefaultSubject
	}
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		reply := HandleMessage(ctx, msg.Data, h)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			zap.S().Errorf("reply on %s: %v", subject, err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	zap.S().Infof("listening for triggers on nats subject %q", subject)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		zap.S().Debugf("drain %s: %v", subject, err)
	}
	return nil
}

// Trigger sends one extract request and waits for the reply.
func Trigger(ctx context.Context, nc *nats.Conn, subject string) (dispatch.Response, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	payload, err := json.Marshal(dispatch.Request{Action: dispatch.ActionExtract})
	if err != nil {
		return dispatch.Response{}, err
	}
	msg, err := nc.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return dispatch.Response{}, fmt.Errorf("request %s: %w", subject, err)
	}
	var resp dispatch.Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return dispatch.Response{}, fmt.Errorf("decode reply: %w", err)
	}
	return resp, nil
}
