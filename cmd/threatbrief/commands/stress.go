package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/version"
)

// StressCmd load tests a running server in waves of concurrent clients
var StressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Load test a running server",
	Long: `Send waves of concurrent POST /generator/generate-report requests and
report success rate and latency per wave. Each wave starts after the
previous one has fully finished.

Examples:
  threatbrief stress
  threatbrief stress --clients 20 --waves 2 --input alert.json`,
	RunE: runStress,
}

var (
	stressURL     string
	stressClients int
	stressWaves   int
	stressInput   string
	stressTimeout time.Duration
)

// sampleRequest is sent when --input is not given
const sampleRequest = `{"threat":"Brute force","threat_data":{"source_ip":"203.0.113.7","target":"ssh","failed_logins":412,"window_seconds":60}}`

func init() {
	StressCmd.Flags().StringVar(&stressURL, "url", "", "Endpoint (default: http://localhost:<server.port>/generator/generate-report)")
	StressCmd.Flags().IntVar(&stressClients, "clients", 10, "Concurrent clients per wave")
	StressCmd.Flags().IntVar(&stressWaves, "waves", 4, "Number of waves")
	StressCmd.Flags().StringVar(&stressInput, "input", "", "JSON request body file (default: a built-in sample)")
	StressCmd.Flags().DurationVar(&stressTimeout, "timeout", 10*time.Minute, "Per-request timeout")
}

type stressResult struct {
	latency time.Duration
	status  int
	err     error
}

func (r stressResult) ok() bool {
	return r.err == nil && r.status >= 200 && r.status < 300
}

type waveStats struct {
	Total     int
	Succeeded int
	Min       time.Duration
	Avg       time.Duration
	Max       time.Duration
}

func (s waveStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return 100 * float64(s.Succeeded) / float64(s.Total)
}

func runStress(cmd *cobra.Command, args []string) error {
	if stressClients <= 0 || stressWaves <= 0 {
		return errors.New("clients and waves must be > 0")
	}

	url := stressURL
	if url == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		url = fmt.Sprintf("http://localhost:%d/generator/generate-report", cfg.Server.Port)
	}

	body := []byte(sampleRequest)
	if stressInput != "" {
		data, err := os.ReadFile(stressInput)
		if err != nil {
			return errors.Wrap(err, "failed to read request body")
		}
		body = data
	}

	client := &http.Client{Timeout: stressTimeout}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Stress test: %d waves x %d clients -> %s\n\n", stressWaves, stressClients, url)

	rows := [][]string{{"Wave", "Succeeded", "Success %", "Min", "Avg", "Max"}}
	var all []stressResult
	for wave := 1; wave <= stressWaves; wave++ {
		results, err := runWave(cmd.Context(), client, url, body, stressClients)
		if err != nil {
			return err
		}
		all = append(all, results...)
		s := summarize(results)
		rows = append(rows, statsRow(fmt.Sprint(wave), s))
		pterm.Info.Printfln("Wave %d: %d/%d succeeded, avg %s", wave, s.Succeeded, s.Total, s.Avg.Round(time.Millisecond))
	}
	rows = append(rows, statsRow("all", summarize(all)))

	return pterm.DefaultTable.WithHasHeader().WithData(rows).WithWriter(w).Render()
}

func statsRow(label string, s waveStats) []string {
	return []string{
		label,
		fmt.Sprintf("%d/%d", s.Succeeded, s.Total),
		fmt.Sprintf("%.1f", s.SuccessRate()),
		s.Min.Round(time.Millisecond).String(),
		s.Avg.Round(time.Millisecond).String(),
		s.Max.Round(time.Millisecond).String(),
	}
}

// runWave fires n concurrent requests and waits for all of them.
// Request failures are recorded, not returned.
func runWave(ctx context.Context, client *http.Client, url string, body []byte, n int) ([]stressResult, error) {
	results := make([]stressResult, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			results[i] = send(gctx, client, url, body)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}

func send(ctx context.Context, client *http.Client, url string, body []byte) stressResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return stressResult{latency: time.Since(start), err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return stressResult{latency: time.Since(start), err: err}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return stressResult{latency: time.Since(start), status: resp.StatusCode}
}

// summarize computes latency stats over all results; failures count toward
// latency but not toward Succeeded
func summarize(results []stressResult) waveStats {
	s := waveStats{Total: len(results)}
	if len(results) == 0 {
		return s
	}
	var total time.Duration
	s.Min = results[0].latency
	for _, r := range results {
		if r.ok() {
			s.Succeeded++
		}
		total += r.latency
		if r.latency < s.Min {
			s.Min = r.latency
		}
		if r.latency > s.Max {
			s.Max = r.latency
		}
	}
	s.Avg = total / time.Duration(len(results))
	return s
}
