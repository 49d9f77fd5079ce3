package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
)

// Client is a thin Pub/Sub v2 handle bound to one project. It never creates
// resources: topics and subscriptions are provisioned outside the service.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub orders topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

// NewClient dials Pub/Sub and fails fast when the orders topic (or the optional
// subscription) is missing. PUBSUB_EMULATOR_HOST is honored by the library.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.OrdersTopic) == "" {
		return nil, errTopicRequired
	}

	inner, err := pubsub.NewClient(ctx, projectID, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("dial pubsub: %w", err)
	}

	c := &Client{client: inner, projectID: projectID, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = inner.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": projectID,
			"topic":   cfg.OrdersTopic,
		}), "pubsub client initialized")
	}
	return c, nil
}

func credentials(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Ping checks that the orders topic and, when configured, its subscription exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}

	topic := c.topicResourceName(c.cfg.OrdersTopic)
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
	if err := describeLookup(kindTopic, c.cfg.OrdersTopic, err); err != nil {
		return err
	}

	if strings.TrimSpace(c.cfg.OrdersSubscription) == "" {
		return nil
	}
	sub := c.subscriptionResourceName(c.cfg.OrdersSubscription)
	_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: sub})
	return describeLookup(kindSubscription, c.cfg.OrdersSubscription, err)
}

// describeLookup turns the admin API's gRPC status into an operator-facing error.
func describeLookup(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", strings.TrimSuffix(kind, "s"), name)
	default:
		return fmt.Errorf("look up %s %q: %w", strings.TrimSuffix(kind, "s"), name, err)
	}
}

// Publisher returns a batching publisher for a topic ID or full resource name.
// Callers own it and must Stop it to flush pending messages.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := c.topicResourceName(topic)
	if name == "" {
		return nil
	}
	return c.client.Publisher(name)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topicResourceName(name string) string {
	return c.qualify(kindTopic, name)
}

func (c *Client) subscriptionResourceName(name string) string {
	return c.qualify(kindSubscription, name)
}

// qualify expands a short ID to projects/<project>/<kind>/<id>. Names that are
// already qualified pass through untouched.
func (c *Client) qualify(kind, name string) string {
	if c == nil {
		return ""
	}
	id := strings.TrimSpace(name)
	switch {
	case id == "":
		return ""
	case strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/"):
		return id
	case c.projectID == "":
		return ""
	}
	return "projects/" + c.projectID + "/" + kind + "/" + id
}
