package telephony

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"careline/internal/config"
)

const defaultTwilioAPIBase = "https://api.twilio.com"

// CallControlClient speaks the small slice of the Twilio REST API we
// need: transitioning a live call to completed (hang up). No SDK; the
// endpoint is one form-encoded POST.
type CallControlClient struct {
	accountSID string
	authToken  string

	baseURL    string
	httpClient *http.Client
}

func NewCallControlClient(cfg config.TwilioConfig) *CallControlClient {
	return &CallControlClient{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		baseURL:    defaultTwilioAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// CompleteCall requests the provider end the call. Callers treat
// failure as best-effort: local call state transitions regardless.
func (cc *CallControlClient) CompleteCall(ctx context.Context, callSid string) error {
	if callSid == "" {
		return fmt.Errorf("call control: call sid required")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls/%s.json",
		cc.baseURL, url.PathEscape(cc.accountSID), url.PathEscape(callSid))

	form := url.Values{"Status": {"completed"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(cc.accountSID, cc.authToken)

	resp, err := cc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call control request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("call control: provider returned %d for call %s", resp.StatusCode, callSid)
	}
	return nil
}
