package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/adrelay/adrelay-go/sdk/internal/sdktest"
)

func BenchmarkDecide(b *testing.B) {
	server := sdktest.NewMockServer()
	defer server.Close()
	server.Always("POST /v1/decide", http.StatusOK, sdktest.Fixtures.Decision)

	client, err := NewClient(DefaultConfig().WithBaseURL(server.URL))
	if err != nil {
		b.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()

	b.Run("raw", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := client.Decide(ctx, sdktest.Fixtures.Opportunity); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("typed", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := Post[sdktest.Decision](ctx, client, DecidePath, sdktest.Fixtures.Opportunity, ""); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("parallel", func(b *testing.B) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := client.Decide(ctx, sdktest.Fixtures.Opportunity); err != nil {
					b.Fatal(err)
				}
			}
		})
	})
}

func BenchmarkPrepare(b *testing.B) {
	client, err := NewClient(DefaultConfig().WithAPIKey("sk").WithAutoIdempotencyKeys())
	if err != nil {
		b.Fatal(err)
	}
	body := json.RawMessage(`{"placement":"sidebar","context":"hiking boots"}`)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := client.transport.prepare(MethodPost, EventsPath, &RequestOptions{Body: body}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExponentialBackoff(b *testing.B) {
	backoff := DefaultExponentialBackoff()
	for i := 0; i < b.N; i++ {
		_ = backoff.Delay(i % 8)
	}
}
