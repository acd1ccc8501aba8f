package station

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// pidMetricsLogEvery controls how many poll ticks elapse between
// PIDController.Metrics() debug log lines, so the adaptive loop's internal
// counters are observable without standing up a station-side metrics
// endpoint just for them.
const pidMetricsLogEvery = 50

// BufferStatus mirrors the JSON the tower's buffer status endpoint serves.
type BufferStatus struct {
	Capacity      int     `json:"capacity"`
	Count         int     `json:"count"`
	OverflowCount uint64  `json:"overflow_count"`
	Ratio         float64 `json:"ratio"`
}

// BufferClient polls the tower's GET /tower/buffer endpoint on a fixed
// interval with a tight timeout, feeding the result to a PIDController.
type BufferClient struct {
	baseURL string
	client  *http.Client
	pid     *PIDController
}

// NewBufferClient creates a client against the tower at baseURL (e.g.
// "http://127.0.0.1:8005"), polling with queryTimeout per request.
func NewBufferClient(baseURL string, queryTimeout time.Duration, pid *PIDController) *BufferClient {
	return &BufferClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: queryTimeout},
		pid:     pid,
	}
}

// Run polls at interval until ctx is cancelled, feeding every result (or
// failure) to the PIDController.
func (c *BufferClient) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var tick uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ratio, err := c.poll(ctx)
			c.pid.UpdateRatio(ratio, err == nil)

			tick++
			if tick%pidMetricsLogEvery == 0 {
				m := c.pid.Metrics()
				slog.Debug("pid controller metrics",
					"query_count", m.QueryCount,
					"query_failures", m.QueryFailures,
					"limit_hits", m.LimitHits,
					"windup_events", m.WindupEvents,
					"integral_sum", m.IntegralSum,
				)
			}
		}
	}
}

func (c *BufferClient) poll(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tower/buffer", nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("buffer status returned %d", resp.StatusCode)
	}

	var status BufferStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return 0, err
	}
	return status.Ratio, nil
}
