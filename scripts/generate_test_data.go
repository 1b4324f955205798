// Generates synthetic mobile telemetry and posts it to a running
// monitor instance. Useful for populating a dev environment.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"
)

var (
	appIDs = []string{
		"com.example.banking", "com.example.fitness", "com.example.chat",
		"com.example.maps", "com.example.shopping", "com.example.news",
	}
	eventTypes = []string{"network_activity", "data_access", "permission_change", "background_task"}
	endpoints  = []string{"api.example.com", "cdn.example.com", "unknown-tracker.io", "ads.thirdparty.net"}
)

func main() {
	baseURL := os.Getenv("APPGUARD_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	count := 200
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	fmt.Printf("Posting %d synthetic events to %s...\n", count, baseURL)

	client := &http.Client{Timeout: 10 * time.Second}
	posted := 0
	for i := 0; i < count; i++ {
		payload := map[string]interface{}{
			"device_id":  fmt.Sprintf("device-%03d", rng.Intn(50)),
			"app_id":     appIDs[rng.Intn(len(appIDs))],
			"event_type": eventTypes[rng.Intn(len(eventTypes))],
			"data":       randomEventData(rng),
		}

		body, _ := json.Marshal(payload)
		resp, err := client.Post(baseURL+"/api/v1/events", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Fprintf(os.Stderr, "post failed: %v\n", err)
			os.Exit(1)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			fmt.Fprintf(os.Stderr, "unexpected status %d on event %d\n", resp.StatusCode, i)
			continue
		}
		posted++
	}

	fmt.Printf("Done. %d/%d events accepted.\n", posted, count)
}

func randomEventData(rng *rand.Rand) map[string]interface{} {
	data := map[string]interface{}{
		"network_bytes_sent":     rng.Intn(100_000),
		"network_bytes_received": rng.Intn(200_000),
		"api_calls_count":        rng.Intn(40),
		"file_access_count":      rng.Intn(10),
	}

	// Roughly one in ten events looks hostile: heavy exfiltration plus
	// sensor access without consent.
	if rng.Intn(10) == 0 {
		data["network_bytes_sent"] = 1_200_000 + rng.Intn(500_000)
		data["suspicious_patterns"] = 1 + rng.Intn(3)
		data["location_access"] = true
		data["contacts_access"] = rng.Intn(2) == 0
		data["unknown_endpoints"] = []string{
			endpoints[2], endpoints[3],
		}
	} else if rng.Intn(4) == 0 {
		data["location_access"] = true
		data["location_consent"] = true
	}

	return data
}
