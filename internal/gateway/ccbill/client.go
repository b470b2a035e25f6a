// internal/gateway/ccbill/client.go
package ccbill

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fanpay-service/internal/config"
	xerrors "fanpay-service/internal/pkg/errors"

	"go.uber.org/zap"
)

const (
	flexformBaseURL = "https://api.ccbill.com/wap-frontflex/flexforms"
	datalinkURL     = "https://datalink.ccbill.com/utils/subscriptionManagement.cgi"

	currencyCodeUSD = "840"

	monthlyPeriodDays = "30"
	yearlyPeriodDays  = "365"
	singlePeriodDays  = "2"
)

// cancelResultMessages maps datalink result codes to operator-facing
// messages. The gateway returns these as bare numbers in a plain-text body;
// callers display the mapped message verbatim, so the table must stay
// enumerated rather than collapsed into a generic failure.
var cancelResultMessages = map[string]string{
	"0":   "The subscription could not be cancelled.",
	"-1":  "The username or password supplied for the datalink user is invalid.",
	"-2":  "The IP address used to access the service is not authorized.",
	"-3":  "No record was found for the given subscription.",
	"-4":  "The maximum number of requests per period has been exceeded, wait and retry.",
	"-5":  "The daily cancellation threshold for this account has been exceeded.",
	"-6":  "The subscription id is malformed.",
	"-7":  "The subscription belongs to a different client account.",
	"-8":  "The subscription has already been cancelled.",
	"-9":  "The subscription is not eligible for cancellation.",
	"-10": "A required parameter is missing from the request.",
	"-11": "The requested action is not supported for this account.",
	"-12": "The datalink user lacks permission for subscription management.",
	"-13": "The gateway reported a temporary failure, try again later.",
	"-14": "An internal gateway error occurred while processing the request.",
	"-15": "The client account is suspended.",
	"-16": "The gateway returned an unrecognized result.",
}

// Client talks to the recurring-billing gateway. The API is GET based and
// answers with quoted plain text rather than JSON.
type Client struct {
	settings config.CCBillSettings
	http     *http.Client
	datalink string
	logger   *zap.Logger
}

func NewClient(settings config.CCBillSettings, logger *zap.Logger) *Client {
	return &Client{
		settings: settings,
		http:     &http.Client{Timeout: 15 * time.Second},
		datalink: datalinkURL,
		logger:   logger,
	}
}

// SingleChargeParams builds the flexform redirect descriptor for a one-off
// charge. The transaction id travels as a passthrough field and comes back
// on the NewSaleSuccess webhook.
func (c *Client) SingleChargeParams(transactionID string, price float64) map[string]string {
	initialPrice := fmt.Sprintf("%.2f", price)

	return map[string]string{
		"clientAccnum":      c.settings.ClientAccnum,
		"clientSubacc":      c.settings.ClientSubacc,
		"flexId":            c.settings.SingleFlexformID,
		"initialPrice":      initialPrice,
		"initialPeriod":     singlePeriodDays,
		"currencyCode":      currencyCodeUSD,
		"formDigest":        c.singleDigest(initialPrice, singlePeriodDays),
		"X-transactionId":   transactionID,
		"redirectUrl":       flexformBaseURL + "/" + c.settings.SingleFlexformID,
	}
}

// RecurringParams builds the flexform redirect descriptor for a recurring
// subscription with 99 rebills (gateway convention for "until cancelled").
func (c *Client) RecurringParams(transactionID string, price float64, yearly bool) map[string]string {
	period := monthlyPeriodDays
	if yearly {
		period = yearlyPeriodDays
	}
	recurringPrice := fmt.Sprintf("%.2f", price)

	return map[string]string{
		"clientAccnum":    c.settings.ClientAccnum,
		"clientSubacc":    c.settings.ClientSubacc,
		"flexId":          c.settings.FlexformID,
		"initialPrice":    recurringPrice,
		"initialPeriod":   period,
		"recurringPrice":  recurringPrice,
		"recurringPeriod": period,
		"numRebills":      "99",
		"currencyCode":    currencyCodeUSD,
		"formDigest":      c.recurringDigest(recurringPrice, period, recurringPrice, period, "99"),
		"X-transactionId": transactionID,
		"redirectUrl":     flexformBaseURL + "/" + c.settings.FlexformID,
	}
}

// CancelSubscription cancels a gateway-side subscription over datalink.
// Anything other than result "1" is surfaced with the mapped message; local
// state must not change unless this returns nil.
func (c *Client) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	if c.settings.DatalinkUsername == "" || c.settings.DatalinkPassword == "" {
		return xerrors.ErrGatewayNotConfigured
	}

	params := url.Values{}
	params.Set("clientAccnum", c.settings.ClientAccnum)
	params.Set("usingSubacc", c.settings.ClientSubacc)
	params.Set("subscriptionId", gatewaySubscriptionID)
	params.Set("username", c.settings.DatalinkUsername)
	params.Set("password", c.settings.DatalinkPassword)
	params.Set("action", "cancelSubscription")
	params.Set("returnXML", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.datalink+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build datalink request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("datalink request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("failed to read datalink response: %w", err)
	}

	code, err := ParseResults(string(body))
	if err != nil {
		return err
	}

	if code == "1" {
		c.logger.Info("ccbill subscription cancelled",
			zap.String("subscription_id", gatewaySubscriptionID))
		return nil
	}

	msg, ok := cancelResultMessages[code]
	if !ok {
		msg = cancelResultMessages["-16"]
	}
	return xerrors.NewGatewayError("ccbill", code, msg)
}

// CancelResultMessage exposes the mapped message for a datalink result code.
func CancelResultMessage(code string) (string, bool) {
	msg, ok := cancelResultMessages[code]
	return msg, ok
}

// ParseResults parses the gateway's plain-text body, which looks like
//
//	"results"
//	"1"
//
// and returns the bare result code.
func ParseResults(body string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	values := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), `"`))
		if line != "" {
			values = append(values, line)
		}
	}

	if len(values) < 2 || !strings.EqualFold(values[0], "results") {
		return "", xerrors.NewGatewayError("ccbill", "", fmt.Sprintf("unexpected datalink response: %q", body))
	}

	return values[1], nil
}

func (c *Client) singleDigest(price, period string) string {
	return md5Hex(price + period + currencyCodeUSD + c.settings.Salt)
}

func (c *Client) recurringDigest(price, period, recurringPrice, recurringPeriod, rebills string) string {
	return md5Hex(price + period + recurringPrice + recurringPeriod + rebills + currencyCodeUSD + c.settings.Salt)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
