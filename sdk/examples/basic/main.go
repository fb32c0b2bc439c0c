package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adrelay/adrelay-go/sdk"
)

type decision struct {
	AdID         string `json:"ad_id"`
	Headline     string `json:"headline"`
	ClickURL     string `json:"click_url"`
	ImpressionID string `json:"impression_id"`
}

func main() {
	baseURL := os.Getenv("ADRELAY_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	metrics := sdk.NewMetricsCollector()
	config := sdk.DefaultConfig().
		WithBaseURL(baseURL).
		WithAPIKey(os.Getenv("ADRELAY_API_KEY")).
		WithTimeout(2 * time.Second).
		WithRetries(3).
		WithLogger(logger).
		WithObserver(sdk.NewCompositeObserver(metrics, sdk.NewLogObserver(logger)))

	client, err := sdk.NewClient(config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	// Example 1: Ask for a decision
	fmt.Println("--- Example 1: Decide ---")
	d, err := sdk.Post[decision](ctx, client, sdk.DecidePath, map[string]any{
		"placement": "article-footer",
		"context":   "beginner sourdough baking guide",
	}, "")
	if err != nil {
		report(err)
		return
	}
	fmt.Printf("✓ Ad %s: %q\n", d.AdID, d.Headline)

	// Example 2: Report the impression; the key makes retries safe
	fmt.Println("\n--- Example 2: Track impression ---")
	ack, err := client.TrackEvent(ctx, map[string]any{
		"type":          "impression",
		"ad_id":         d.AdID,
		"impression_id": d.ImpressionID,
	}, "imp-"+d.ImpressionID)
	if err != nil {
		report(err)
		return
	}
	fmt.Printf("✓ Server acknowledged: %s\n", ack)

	// Example 3: Force a transient failure against the mock API
	fmt.Println("\n--- Example 3: Retry ---")
	_, err = sdk.Request[json.RawMessage](ctx, client, sdk.MethodPost, sdk.EventsPath, &sdk.RequestOptions{
		Body:           map[string]any{"type": "click", "ad_id": d.AdID},
		Headers:        map[string]string{"X-Mock-Fail-Times": "2", "X-Mock-Status": "503"},
		IdempotencyKey: "click-" + d.ImpressionID,
	})
	if err != nil {
		report(err)
	} else {
		fmt.Println("✓ Click recorded after retries")
	}

	snapshot := metrics.Snapshot()
	fmt.Printf("\nRequests: %v\nAttempts: %v\nRetries: %v\n", snapshot.Requests, snapshot.Attempts, snapshot.Retries)
}

func report(err error) {
	var sdkErr *sdk.Error
	if !errors.As(err, &sdkErr) {
		log.Printf("✗ %v", err)
		return
	}
	switch sdkErr.Kind {
	case sdk.KindAPI:
		log.Printf("✗ API rejected request (%d %s): %s [request %s]",
			sdkErr.StatusCode, sdkErr.Body.Error, sdkErr.Body.Message, sdkErr.Body.RequestID)
	case sdk.KindTimeout:
		log.Printf("✗ Timed out after %d attempts", sdkErr.Attempt+1)
	case sdk.KindNetwork:
		log.Printf("✗ Could not reach %s: %v", sdkErr.URL, err)
	}
}
