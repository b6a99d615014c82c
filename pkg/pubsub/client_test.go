package pubsub

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/foodapp-backend/pkg/config"
)

type fakeAdmin struct {
	getErr    error
	createErr error
	created   []string
}

func (f *fakeAdmin) GetTopic(_ context.Context, req *pubsubpb.GetTopicRequest, _ ...gax.CallOption) (*pubsubpb.Topic, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &pubsubpb.Topic{Name: req.GetTopic()}, nil
}

func (f *fakeAdmin) CreateTopic(_ context.Context, topic *pubsubpb.Topic, _ ...gax.CallOption) (*pubsubpb.Topic, error) {
	f.created = append(f.created, topic.GetName())
	if f.createErr != nil {
		return nil, f.createErr
	}
	return topic, nil
}

func TestResourceName(t *testing.T) {
	c := &Client{project: "campus-food"}
	cases := map[string]string{
		"order-events":            "projects/campus-food/topics/order-events",
		"  order-events ":         "projects/campus-food/topics/order-events",
		"projects/other/topics/x": "projects/other/topics/x",
		"":                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, c.resourceName(in), in)
	}
	assert.Empty(t, (&Client{}).resourceName("order-events"))
}

func TestVerifyTopic(t *testing.T) {
	notFound := status.Error(codes.NotFound, "no topic")

	t.Run("present", func(t *testing.T) {
		admin := &fakeAdmin{}
		c := &Client{admin: admin, project: "p", topic: "orders"}
		require.NoError(t, c.Ping(context.Background()))
		assert.Empty(t, admin.created)
	})

	t.Run("missing without create", func(t *testing.T) {
		c := &Client{admin: &fakeAdmin{getErr: notFound}, project: "p", topic: "orders"}
		assert.ErrorContains(t, c.verifyTopic(context.Background()), "does not exist")
	})

	t.Run("missing with create", func(t *testing.T) {
		admin := &fakeAdmin{getErr: notFound}
		c := &Client{admin: admin, project: "p", topic: "orders", create: true}
		require.NoError(t, c.verifyTopic(context.Background()))
		assert.Equal(t, []string{"projects/p/topics/orders"}, admin.created)
	})

	t.Run("created concurrently", func(t *testing.T) {
		admin := &fakeAdmin{getErr: notFound, createErr: status.Error(codes.AlreadyExists, "exists")}
		c := &Client{admin: admin, project: "p", topic: "orders", create: true}
		assert.NoError(t, c.verifyTopic(context.Background()))
	})

	t.Run("admin unavailable", func(t *testing.T) {
		c := &Client{admin: &fakeAdmin{getErr: status.Error(codes.Unavailable, "down")}, project: "p", topic: "orders", create: true}
		assert.ErrorContains(t, c.verifyTopic(context.Background()), "checking topic")
	})

	t.Run("no topic configured", func(t *testing.T) {
		c := &Client{admin: &fakeAdmin{}, project: "p"}
		assert.ErrorIs(t, c.verifyTopic(context.Background()), errNoTopic)
	})
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "  "}, config.PubSubConfig{OrdersTopic: "t"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("t"))
	assert.Empty(t, c.OrdersTopic())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotConnected)
}
