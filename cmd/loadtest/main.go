// Load client for the ledger HTTP API: floods the transfer endpoint with
// concurrent requests and reports throughput. Each request carries a
// fresh idempotency key so retries on the server side stay observable.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "ledger base URL")
		subject     = flag.String("subject", "owner-1", "sender owner id, resolved to the sender account")
		to          = flag.String("to", "886987654321", "receiver account number")
		amount      = flag.String("amount", "0.01", "amount per transfer")
		total       = flag.Int("n", 10000, "total requests")
		concurrency = flag.Int("c", 100, "concurrent requests")
	)
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	wg.Add(*total)
	sem := make(chan struct{}, *concurrency)

	var ok, failed int64
	var mu sync.Mutex

	startTime := time.Now()

	for i := 0; i < *total; i++ {
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			body, _ := json.Marshal(map[string]string{
				"to":      *to,
				"amount":  *amount,
				"remarks": "loadtest",
			})
			req, err := http.NewRequest(http.MethodPost, *baseURL+"/v1/api/transfer", bytes.NewReader(body))
			if err != nil {
				log.Fatalf("build request: %v", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Caller-Subject", *subject)
			req.Header.Set("Idempotency-Key", uuid.New().String())

			resp, err := client.Do(req)
			mu.Lock()
			if err != nil || resp.StatusCode != http.StatusOK {
				failed++
				if err != nil && idx%1000 == 0 {
					log.Printf("transfer %d failed: %v", idx, err)
				}
			} else {
				ok++
			}
			mu.Unlock()
			if resp != nil {
				resp.Body.Close()
			}
		}(i)
	}

	wg.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("Completed %d requests in %v (%d ok, %d failed)\n", *total, elapsed, ok, failed)
	fmt.Printf("TPS: %.2f\n", float64(*total)/elapsed.Seconds())
}
