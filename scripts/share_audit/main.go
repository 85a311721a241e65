// share_audit reconciles the published network share against the API. The
// publish copy lands on the share before the approval transaction commits, so
// a crashed approval can leave an orphan copy behind; the reverse direction, a
// published file with no copy on the share, is a broken download link and makes
// the audit fail.
//
// Usage:
//
//	go run ./scripts/share_audit -share-dir /mnt/share -api-base http://localhost:8080 -token $TOKEN
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type publishedFile struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	PublicURL    string `json:"publicNetworkUrl"`
}

type listEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    []publishedFile `json:"data"`
}

type finding struct {
	Kind   string
	FileID string
	Entry  string
}

func main() {
	var (
		shareDir string
		apiBase  string
		token    string
		timeout  time.Duration
		remove   bool
	)

	flag.StringVar(&shareDir, "share-dir", "/mnt/share/approved", "Published share directory")
	flag.StringVar(&apiBase, "api-base", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", os.Getenv("APPROVAL_API_TOKEN"), "Admin access token")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.BoolVar(&remove, "remove", false, "Delete orphan share entries instead of only reporting them")
	flag.Parse()

	if token == "" {
		log.Fatal("an admin access token is required (-token or APPROVAL_API_TOKEN)")
	}

	client := &http.Client{Timeout: timeout}
	published, err := fetchPublished(client, apiBase, token)
	if err != nil {
		log.Fatalf("failed to list published files: %v", err)
	}

	entries, err := os.ReadDir(shareDir)
	if err != nil {
		log.Fatalf("failed to read share directory: %v", err)
	}

	findings := reconcile(published, entries)
	printReport(shareDir, len(published), len(entries), findings)

	var missing, orphans int
	for _, f := range findings {
		switch f.Kind {
		case "missing":
			missing++
		case "orphan":
			orphans++
			if remove {
				if err := os.Remove(filepath.Join(shareDir, f.Entry)); err != nil {
					log.Printf("remove %s: %v", f.Entry, err)
				}
			}
		}
	}

	fmt.Printf("Missing publishes: %d, Orphan copies: %d\n", missing, orphans)
	if missing > 0 {
		os.Exit(1)
	}
}

// fetchPublished pages through the published listing until a short page.
func fetchPublished(client *http.Client, apiBase, token string) ([]publishedFile, error) {
	const pageSize = 200
	var all []publishedFile
	for offset := 0; ; offset += pageSize {
		url := fmt.Sprintf("%s/api/v1/files?stage=published&limit=%d&offset=%d",
			strings.TrimRight(apiBase, "/"), pageSize, offset)
		page, err := fetchPage(client, url, token)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func fetchPage(client *http.Client, url, token string) ([]publishedFile, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("API reported failure: %s", envelope.Message)
	}
	return envelope.Data, nil
}

// reconcile matches share entries to published files by the file ID prefix the
// publisher stamps onto every copied name.
func reconcile(published []publishedFile, entries []os.DirEntry) []finding {
	byID := make(map[string]publishedFile, len(published))
	for _, f := range published {
		byID[f.ID] = f
	}

	covered := make(map[string]bool, len(published))
	var findings []finding
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, _, ok := strings.Cut(entry.Name(), "_")
		if ok {
			if _, known := byID[id]; known {
				covered[id] = true
				continue
			}
		}
		findings = append(findings, finding{Kind: "orphan", Entry: entry.Name()})
	}

	for _, f := range published {
		if !covered[f.ID] {
			findings = append(findings, finding{Kind: "missing", FileID: f.ID, Entry: f.OriginalName})
		}
	}
	return findings
}

func printReport(shareDir string, published, entries int, findings []finding) {
	fmt.Println("Share Audit Report")
	fmt.Println("==================")
	fmt.Printf("Share: %s (%d entries), API: %d published files\n", shareDir, entries, published)
	for _, f := range findings {
		switch f.Kind {
		case "missing":
			fmt.Printf("[MISSING] %s (%s) has no copy on the share\n", f.FileID, f.Entry)
		case "orphan":
			fmt.Printf("[ORPHAN]  %s matches no published file\n", f.Entry)
		}
	}
	if len(findings) == 0 {
		fmt.Println("Share and API agree.")
	}
}
