package textanalysis

import (
	"context"
	"fmt"
	"time"

	"github.com/kelmah/review-verification/pkg/httpclient"
	"github.com/kelmah/review-verification/pkg/resilience"
)

// NLPClient calls an external text analysis endpoint
type NLPClient struct {
	client  *httpclient.Client
	apiKey  string
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

type nlpRequest struct {
	Text string `json:"text"`
}

// NewNLPClient creates a client that POSTs to endpoint. breaker may be nil.
// Transient 5xx/429 responses are retried once within timeout.
func NewNLPClient(endpoint, apiKey string, timeout time.Duration, breaker *resilience.CircuitBreaker) *NLPClient {
	return &NLPClient{
		client:  httpclient.NewClient(endpoint, timeout).Apply(httpclient.WithDefaultRetry()),
		apiKey:  apiKey,
		breaker: breaker,
		timeout: timeout,
	}
}

// Score implements Scorer
func (c *NLPClient) Score(ctx context.Context, text string) (*ExternalScores, error) {
	op := func(ctx context.Context) (interface{}, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		headers := map[string]string{}
		if c.apiKey != "" {
			headers["Authorization"] = "Bearer " + c.apiKey
		}

		var scores ExternalScores
		if err := c.client.PostJSON(ctx, "", nlpRequest{Text: text}, headers, &scores); err != nil {
			return nil, fmt.Errorf("text analysis request: %w", err)
		}
		return &scores, nil
	}

	var (
		result interface{}
		err    error
	)
	if c.breaker != nil {
		result, err = c.breaker.Execute(ctx, op)
	} else {
		result, err = op(ctx)
	}
	if err != nil {
		return nil, err
	}
	return result.(*ExternalScores), nil
}
