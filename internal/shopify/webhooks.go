// internal/shopify/webhooks.go
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"shopsync/pkg/topics"
)

// RegisterWebhooks subscribes every topic in the registry, pointing deliveries
// at publicURL + the topic's path. One bad topic must not abort an install, so
// failures are logged and skipped; returns how many registered. Re-installs
// hit the platform's duplicate-address 422, which counts as registered.
func (c *Client) RegisterWebhooks(ctx context.Context, shop, token, publicURL string, reg *topics.Registry) int {
	base := strings.TrimRight(publicURL, "/")
	n := 0
	for _, t := range reg.All() {
		if err := c.createWebhook(ctx, shop, token, t.Name, base+t.Path); err != nil {
			c.log.Warnw("webhook registration failed", "shop", shop, "topic", t.Name, "err", err)
			continue
		}
		n++
	}
	c.log.Infow("webhooks registered", "shop", shop, "registered", n, "topics", len(reg.All()))
	return n
}

func (c *Client) createWebhook(ctx context.Context, shop, token, topic, address string) error {
	payload, err := json.Marshal(map[string]any{
		"webhook": map[string]string{
			"topic":   topic,
			"address": address,
			"format":  "json",
		},
	})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/admin/api/%s/webhooks.json", c.BaseURL(shop), c.version)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusUnprocessableEntity:
		msg := snippet(resp.Body)
		if strings.Contains(msg, "already been taken") {
			return nil
		}
		return fmt.Errorf("%s: %s", resp.Status, msg)
	default:
		return fmt.Errorf("%s: %s", resp.Status, snippet(resp.Body))
	}
}
