// webhook-replay signs a payload with WEBHOOK_SECRET and posts it to a
// running service, for exercising the webhook path locally.
//
// Usage:
//   WEBHOOK_SECRET=topsecret go run ./cmd/webhook-replay \
//     -url http://localhost:8080/webhooks/siambooks -client client-1
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/utils"
)

func main() {
	url := flag.String("url", "http://localhost:8080/webhooks/siambooks", "webhook endpoint")
	clientId := flag.String("client", "", "client id to put in the payload")
	event := flag.String("event", "documents.created", "event name")
	flag.Parse()

	if strings.TrimSpace(*clientId) == "" {
		fmt.Fprintln(os.Stderr, "-client is required")
		os.Exit(2)
	}

	body, _ := json.Marshal(map[string]string{
		"event":     *event,
		"client_id": *clientId,
	})

	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret := strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")); secret != "" {
		req.Header.Set("X-Signature", "sha256="+utils.SignWebhookBody(body, secret))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s %s\n", resp.Status, strings.TrimSpace(string(out)))
}
