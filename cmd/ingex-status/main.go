package main

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/quic-go/quic-go/http3"

	"github.com/zsiec/ingex/pkg/version"
)

func main() {
	var (
		base     string
		path     string
		useHTTP3 bool
		insecure bool
		headers  bool
	)
	flag.StringVar(&base, "url", "http://localhost:8080", "Status server base URL")
	flag.StringVar(&path, "path", "/api/v1/session", "API path to fetch")
	flag.BoolVar(&useHTTP3, "http3", false, "Use HTTP/3 (requires an https URL)")
	flag.BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")
	flag.BoolVar(&headers, "headers", false, "Print response headers")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	if useHTTP3 {
		rt := &http3.RoundTripper{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure}, // #nosec G402 -- opt-in for self-signed dev certs
		}
		defer rt.Close()
		client.Transport = rt
	}

	url := strings.TrimRight(base, "/") + path
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Fatalf("Invalid URL: %v", err)
	}
	req.Header.Set("User-Agent", version.GetInfo().UserAgent("ingex-status"))
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}

	fmt.Printf("%s %s (%s)\n", resp.Proto, resp.Status, url)
	if headers {
		for k, v := range resp.Header {
			fmt.Printf("  %s: %v\n", k, v)
		}
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}
