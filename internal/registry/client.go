package registry

import (
	"context"
	"fmt"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/models"

	"github.com/go-resty/resty/v2"
)

const (
	devicesPath = "/getDevices"
	configPath  = "/getconfig"
)

type nodeRequest struct {
	UUID string `json:"uuid"`
}

// Client talks to the device registry and the user configuration API.
// Both endpoints take the node uuid and answer with a JSON array.
type Client struct {
	http *resty.Client
	uuid string
	log  *logger.Logger
}

func NewClient(baseURL, uuid string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		uuid: uuid,
		log:  log,
	}
}

// FetchDevices returns the node's devices. Invalid entries are logged and skipped.
func (c *Client) FetchDevices(ctx context.Context) ([]models.DeviceDescriptor, error) {
	body, err := c.post(ctx, devicesPath)
	if err != nil {
		return nil, err
	}
	devices, invalid, err := models.DecodeDevices(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParse, err)
	}
	for _, e := range invalid {
		c.log.Warnw("device_entry_skipped", "err", e)
	}
	return devices, nil
}

// FetchConfigRules returns the node's actuator schedule rules.
func (c *Client) FetchConfigRules(ctx context.Context) ([]models.ConfigRule, error) {
	body, err := c.post(ctx, configPath)
	if err != nil {
		return nil, err
	}
	rules, invalid, err := models.DecodeConfigRules(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParse, err)
	}
	for _, e := range invalid {
		c.log.Warnw("config_rule_skipped", "err", e)
	}
	return rules, nil
}

func (c *Client) post(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(nodeRequest{UUID: c.uuid}).
		Post(path)
	if err != nil {
		return nil, models.WrapTransport("POST "+path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("POST %s: %w: status %d: %s", path, models.ErrRemoteRejected, resp.StatusCode(), truncate(resp.String(), 200))
	}
	return resp.Body(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
