package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Small liveness probe for the ledger service, usable from cron or a
// container healthcheck.

func main() {
	addr := flag.String("addr", "http://localhost:8080", "base URL of the ledger service")
	flag.Parse()

	fmt.Println("ahLedgerApp Health Check Utility")
	fmt.Println("--------------------------------")

	healthy, err := checkServiceHealth(*addr + "/health")
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}

	if healthy {
		fmt.Println("Service is healthy!")
		return
	}
	fmt.Println("Service is NOT healthy!")
	os.Exit(1)
}

func checkServiceHealth(url string) (bool, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body["status"] == "ok", nil
}
