package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/teranos/threatbrief/ai/openai"
	"github.com/teranos/threatbrief/errors"
)

// rateLimitedClient paces Chat calls process-wide
type rateLimitedClient struct {
	AIClient
	limiter *rate.Limiter
}

// RateLimited wraps client so at most perMinute requests start per minute.
// Waiting honours ctx, so a cancelled run stops queueing.
func RateLimited(client AIClient, perMinute int) AIClient {
	if perMinute <= 0 {
		return client
	}
	return &rateLimitedClient{
		AIClient: client,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (r *rateLimitedClient) Chat(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}
	return r.AIClient.Chat(ctx, req)
}
