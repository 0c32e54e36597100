package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
)

// Manual check for the push webhook endpoint: signs a sample payload the way
// a forge would and POSTs it at a locally running daemon.
//
//	DOCSHIP_WEBHOOK_SECRET=... go run debug_webhook.go [url]
func main() {
	url := "http://localhost:8081/hooks/push"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	secret := os.Getenv("DOCSHIP_WEBHOOK_SECRET")

	payload := []byte(`{"ref": "refs/heads/master", "after": "a106f0f224a237ffcfd5b2f424231e235ad2cc62", "repository": {"name": "d3d12-rs", "full_name": "gfx-rs/d3d12-rs", "clone_url": "https://github.com/gfx-rs/d3d12-rs.git"}}`)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	} else {
		fmt.Println("DOCSHIP_WEBHOOK_SECRET not set, sending unsigned")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("send push: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s\n%s\n", resp.Status, body)
}
