package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BatmanBruc/inkpay/types"
)

// GatewayReply is the gateway answer to a payment creation request.
type GatewayReply struct {
	Code    replyCode `json:"code"`
	Msg     string    `json:"msg"`
	TradeNo string    `json:"trade_no"`
	PayURL  string    `json:"payurl"`
	QRCode  string    `json:"qrcode"`
}

// replyCode accepts both 1 and "1".
type replyCode int

func (c *replyCode) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("gateway code %s: %w", string(b), err)
	}
	*c = replyCode(n)
	return nil
}

type Gateway interface {
	CreatePayment(ctx context.Context, params map[string]string) (*GatewayReply, error)
}

// HTTPGateway posts form-encoded requests to the payment provider.
type HTTPGateway struct {
	url    string
	client *http.Client
}

func NewHTTPGateway(apiURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		url:    apiURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) CreatePayment(ctx context.Context, params map[string]string) (*GatewayReply, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read reply: %v", types.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d", types.ErrGatewayUnavailable, resp.StatusCode)
	}

	var reply GatewayReply
	if err := json.Unmarshal(bytes.TrimSpace(body), &reply); err != nil {
		return nil, fmt.Errorf("%w: decode reply: %v", types.ErrGatewayUnavailable, err)
	}
	if reply.Code != 1 {
		msg := reply.Msg
		if msg == "" {
			msg = "payment creation refused"
		}
		return nil, fmt.Errorf("%w: %s", types.ErrGatewayUnavailable, msg)
	}
	return &reply, nil
}
