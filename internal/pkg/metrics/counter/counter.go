package counter

import (
	"context"
	"strconv"

	"github.com/clubops/supporter360/internal/pkg/cache"
)

const (
	receivedKey = "webhook:counters:received"
	rejectedKey = "webhook:counters:rejected"
)

// AddReceived increments the accepted-webhook counter for a provider.
func AddReceived(provider string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, receivedKey, provider, 1).Err()
}

// AddRejected increments the rejected-webhook counter (signature or shape
// failures) for a provider.
func AddRejected(provider string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, rejectedKey, provider, 1).Err()
}

// ReceivedCounts returns accepted-webhook counts per provider.
func ReceivedCounts(ctx context.Context) (map[string]int64, error) {
	return readCounts(ctx, receivedKey)
}

// RejectedCounts returns rejected-webhook counts per provider.
func RejectedCounts(ctx context.Context) (map[string]int64, error) {
	return readCounts(ctx, rejectedKey)
}

func readCounts(ctx context.Context, key string) (map[string]int64, error) {
	data, err := cache.GetClient().HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for provider, raw := range data {
		if n, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			out[provider] = n
		}
	}
	return out, nil
}
