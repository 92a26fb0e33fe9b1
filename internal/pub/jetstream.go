package pub

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/joseerobless/blockexplorer/pkg/view"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// streamName is the name of the NATS JetStream stream
	streamName = "EXPLORER"
	// streamSubjectPattern is the subject pattern for explorer updates
	streamSubjectPattern = "EXPLORER.*"
	// feedSubject is the subject recent block windows are published on
	feedSubject = streamName + ".feed"
	// streamCreateTimeout is the timeout for stream creation
	streamCreateTimeout = 10 * time.Second
	// duplicateWindow is the time window for duplicate message detection
	duplicateWindow = 5 * time.Minute
)

var (
	// streamSubjects contains the subject patterns for the JetStream stream
	streamSubjects = []string{
		streamSubjectPattern,
	}
)

type (
	// JetStreamOpts contains configuration options for creating a new JetStream publisher.
	JetStreamOpts struct {
		Endpoint        string        // NATS server endpoint
		PersistDuration time.Duration // Message persistence duration
		Logg            *slog.Logger  // Structured logger
	}

	// jetStreamPub implements the Pub interface using NATS JetStream.
	jetStreamPub struct {
		js       jetstream.JetStream
		natsConn *nats.Conn
		logg     *slog.Logger
	}
)

// NewJetStreamPub creates a new JetStream publisher and initializes the stream.
// Feeds are only interesting while fresh, so the stream is kept in memory.
func NewJetStreamPub(o JetStreamOpts) (Pub, error) {
	natsConn, err := nats.Connect(o.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(natsConn)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamCreateTimeout)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   streamSubjects,
		MaxAge:     o.PersistDuration,
		Storage:    jetstream.MemoryStorage,
		Duplicates: duplicateWindow,
	})
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	o.Logg.Info("JetStream publisher initialized",
		"stream", streamName,
		"subjects", streamSubjects,
		"persist_duration", o.PersistDuration,
	)

	return &jetStreamPub{
		natsConn: natsConn,
		js:       js,
		logg:     o.Logg,
	}, nil
}

// Close closes the NATS connection.
func (p *jetStreamPub) Close() {
	if p.natsConn != nil {
		p.natsConn.Close()
		p.logg.Debug("NATS connection closed")
	}
}

// Send publishes a feed window. The head height is the message ID, so the
// same window published twice is deduplicated by the server.
func (p *jetStreamPub) Send(ctx context.Context, feed view.Feed) error {
	data, err := feed.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize feed: %w", err)
	}

	msgID := strconv.FormatUint(feed.Head, 10)

	_, err = p.js.Publish(ctx, feedSubject, data, jetstream.WithMsgID(msgID))
	if err != nil {
		return fmt.Errorf("failed to publish feed to %s: %w", feedSubject, err)
	}

	return nil
}
