package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xraph/spool/stream"
	"github.com/xraph/spool/wire"
)

// Subscribe subscribes to a stream topic and returns a channel of events.
// The channel is closed when the client disconnects or Unsubscribe is called.
//
// Topics follow the stream convention:
//   - "job:<jobID>"         events for a specific job
//   - "printer:<printerID>" job and status events for one printer
//   - "jobs"                all job lifecycle events
//   - "printers"            all printer status events
//   - "firehose"            everything
//
// Passing types narrows every event this connection receives, not just
// this topic's.
func (c *Client) Subscribe(ctx context.Context, channel string, types ...stream.EventType) (<-chan *stream.Event, error) {
	req := wire.SubscribeRequest{Channel: channel}
	for _, t := range types {
		req.Types = append(req.Types, string(t))
	}
	_, err := c.request(ctx, wire.MethodSubscribe, req)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %q: %w", channel, err)
	}

	ch := make(chan *stream.Event, 64)
	c.subs.Store(channel, ch)

	return ch, nil
}

// Unsubscribe removes a subscription.
func (c *Client) Unsubscribe(ctx context.Context, channel string) error {
	_, err := c.request(ctx, wire.MethodUnsubscribe, wire.UnsubscribeRequest{
		Channel: channel,
	})

	// Close and remove the local channel regardless.
	if val, ok := c.subs.LoadAndDelete(channel); ok {
		ch := val.(chan *stream.Event) //nolint:errcheck // subs map always stores chan *stream.Event
		close(ch)
	}

	return err
}

// WatchJob subscribes to "job:<jobID>".
func (c *Client) WatchJob(ctx context.Context, jobID string) (<-chan *stream.Event, error) {
	return c.Subscribe(ctx, stream.JobTopic(jobID))
}

// WatchPrinter subscribes to "printer:<printerID>".
func (c *Client) WatchPrinter(ctx context.Context, printerID string) (<-chan *stream.Event, error) {
	return c.Subscribe(ctx, stream.PrinterTopic(printerID))
}

// Stats retrieves broker and connection statistics from the server.
func (c *Client) Stats(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.request(ctx, wire.MethodStats, nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// covers reports whether a subscription to topic receives evt.
func covers(topic string, evt *stream.Event) bool {
	switch topic {
	case stream.TopicFirehose:
		return true
	case stream.TopicJobs:
		return strings.HasPrefix(string(evt.Type), "job.")
	case stream.TopicPrinters:
		return strings.HasPrefix(string(evt.Type), "printer.")
	}
	if evt.Topic == topic {
		return true
	}
	if kind, printerID := stream.ParseTopicEntity(topic); kind == "printer" {
		var data struct {
			PrinterID string `json:"printer_id"`
		}
		return json.Unmarshal(evt.Data, &data) == nil && data.PrinterID == printerID
	}
	return false
}
