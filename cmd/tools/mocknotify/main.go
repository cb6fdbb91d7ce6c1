package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

type notificationPayload struct {
	TransactionID string `json:"transaction_id,omitempty"`
	GatewayRef    string `json:"gateway_ref,omitempty"`
	Outcome       string `json:"outcome"`
	FailureReason string `json:"failure_reason,omitempty"`
	FailureCode   string `json:"failure_code,omitempty"`
}

// Posts a gateway notification against a local server, for exercising the
// paid/failed/requires_action paths without a real gateway.
func main() {
	url := flag.String("url", "http://localhost:8080/api/payments/notifications/demo-gateway", "Notification URL")
	tenant := flag.String("tenant", os.Getenv("MOCK_TENANT_ID"), "Tenant id for the X-Tenant-ID header")
	txID := flag.String("transaction-id", "", "Internal transaction id")
	gatewayRef := flag.String("gateway-ref", "pay_"+randomHex(8), "Gateway-side payment reference")
	outcome := flag.String("outcome", "paid", "Outcome (paid, failed, requires_action)")
	failureReason := flag.String("failure-reason", "", "Failure reason (for failed)")
	failureCode := flag.String("failure-code", "", "Failure code (for failed)")
	dryRun := flag.Bool("dry-run", false, "Only print payload, don't send")

	flag.Parse()

	if *tenant == "" {
		fmt.Fprintf(os.Stderr, "Error: tenant not provided and MOCK_TENANT_ID not set\n")
		os.Exit(1)
	}

	payload := notificationPayload{
		TransactionID: *txID,
		GatewayRef:    *gatewayRef,
		Outcome:       *outcome,
		FailureReason: *failureReason,
		FailureCode:   *failureCode,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling payload: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Body: %s\n", string(body))
	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", *url)
	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", *tenant)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %s\nResponse: %s\n", resp.Status, string(respBody))
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
