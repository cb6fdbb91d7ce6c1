package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const DemoProviderName = "demo-gateway"

// DemoProvider is the reference adapter: authenticated JSON over HTTP against
// a sandbox gateway. Provider-side rejections (4xx, status "rejected") are
// translated into a failure result so the orchestrator's error handling stays
// uniform; only transport/5xx problems surface as errors.
type DemoProvider struct {
	BaseURL string
	Client  *http.Client
}

func NewDemoProvider(baseURL string) *DemoProvider {
	return &DemoProvider{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *DemoProvider) Name() string { return DemoProviderName }

type demoPaymentRequest struct {
	Reference string            `json:"reference"`
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	Method    string            `json:"method"`
	ReturnURL string            `json:"return_url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type demoPaymentResponse struct {
	Status      string `json:"status"` // accepted|action_required|rejected
	PaymentRef  string `json:"payment_ref"`
	RedirectURL string `json:"redirect_url"`
	Error       struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *DemoProvider) InitiatePayment(ctx context.Context, creds Credentials, req InitiateRequest) (InitiateResult, error) {
	body := demoPaymentRequest{
		Reference: req.TransactionNumber,
		Amount:    req.Amount.StringFixed(2),
		Currency:  req.Currency,
		Method:    string(req.Method),
		ReturnURL: req.ReturnURL,
		Metadata:  req.Metadata,
	}

	var resp demoPaymentResponse
	status, err := p.post(ctx, creds, "/v1/payments", body, &resp)
	if err != nil {
		return InitiateResult{}, err
	}
	if status >= 400 || resp.Status == "rejected" {
		return InitiateResult{
			Success:      false,
			ErrorCode:    orDefault(resp.Error.Code, fmt.Sprintf("http_%d", status)),
			ErrorMessage: orDefault(resp.Error.Message, "payment rejected"),
		}, nil
	}

	return InitiateResult{
		Success:        true,
		GatewayRef:     resp.PaymentRef,
		RequiresAction: resp.Status == "action_required",
		RedirectURL:    resp.RedirectURL,
	}, nil
}

type demoRefundRequest struct {
	PaymentRef string `json:"payment_ref"`
	Reference  string `json:"reference"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Reason     string `json:"reason,omitempty"`
}

type demoRefundResponse struct {
	Status    string `json:"status"` // accepted|rejected
	RefundRef string `json:"refund_ref"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *DemoProvider) RefundPayment(ctx context.Context, creds Credentials, req RefundCallRequest) (RefundCallResult, error) {
	body := demoRefundRequest{
		PaymentRef: req.GatewayRef,
		Reference:  req.RefundNumber,
		Amount:     req.Amount.StringFixed(2),
		Currency:   req.Currency,
		Reason:     req.Reason,
	}

	var resp demoRefundResponse
	status, err := p.post(ctx, creds, "/v1/refunds", body, &resp)
	if err != nil {
		return RefundCallResult{}, err
	}
	if status >= 400 || resp.Status == "rejected" {
		return RefundCallResult{
			Success:      false,
			ErrorCode:    orDefault(resp.Error.Code, fmt.Sprintf("http_%d", status)),
			ErrorMessage: orDefault(resp.Error.Message, "refund rejected"),
		}, nil
	}
	return RefundCallResult{Success: true, RefundRef: resp.RefundRef}, nil
}

func (p *DemoProvider) CheckHealth(ctx context.Context, creds Credentials) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/v1/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+creds["api_key"])

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// post issues the call and decodes the provider's JSON shape. 5xx responses
// are transport-level failures; 4xx bodies still decode into the rejection
// shape and are returned with their status for the caller to classify.
func (p *DemoProvider) post(ctx context.Context, creds Credentials, path string, body, out any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds["api_key"])

	resp, err := p.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return resp.StatusCode, fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("malformed gateway response: %w", err)
	}
	return resp.StatusCode, nil
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}
