// Package pubsub wraps the Pub/Sub v2 client around the single orders topic.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/foodapp-backend/pkg/config"
	"github.com/angelmondragon/foodapp-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub orders topic is required")
	errNotConnected      = errors.New("pubsub client not initialized")
)

// topicAdmin is the slice of the admin API used to verify the topic.
type topicAdmin interface {
	GetTopic(context.Context, *pubsubpb.GetTopicRequest, ...gax.CallOption) (*pubsubpb.Topic, error)
	CreateTopic(context.Context, *pubsubpb.Topic, ...gax.CallOption) (*pubsubpb.Topic, error)
}

type Client struct {
	client  *pubsub.Client
	admin   topicAdmin
	project string
	topic   string
	create  bool
}

// NewClient connects to Pub/Sub and checks the orders topic. With
// FOODAPP_PUBSUB_CREATE_TOPIC set a missing topic is created instead.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}

	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:  ps,
		admin:   ps.TopicAdminClient,
		project: project,
		topic:   strings.TrimSpace(cfg.OrdersTopic),
		create:  cfg.CreateTopic,
	}
	if err := c.verifyTopic(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", c.resourceName(c.topic)), "pubsub client ready")
	}
	return c, nil
}

func (c *Client) verifyTopic(ctx context.Context) error {
	name := c.resourceName(c.topic)
	if name == "" {
		return errNoTopic
	}

	_, err := c.admin.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		return fmt.Errorf("checking topic %q: %w", c.topic, err)
	case !c.create:
		return fmt.Errorf("topic %q does not exist", c.topic)
	}

	_, err = c.admin.CreateTopic(ctx, &pubsubpb.Topic{Name: name})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating topic %q: %w", c.topic, err)
	}
	return nil
}

// Publisher returns a handle for a topic ID or full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := c.resourceName(topic)
	if name == "" {
		return nil
	}
	return c.client.Publisher(name)
}

// OrdersTopic returns the configured topic ID.
func (c *Client) OrdersTopic() string {
	if c == nil {
		return ""
	}
	return c.topic
}

// Ping re-checks that the orders topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.admin == nil {
		return errNotConnected
	}
	return c.verifyTopic(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a topic ID to projects/<project>/topics/<id>.
// Names that are already fully qualified pass through.
func (c *Client) resourceName(topic string) string {
	if c == nil {
		return ""
	}
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/"):
		return topic
	case c.project == "":
		return ""
	}
	return "projects/" + c.project + "/topics/" + topic
}
