package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var strategies = [2]string{"intersection", "chained"}

type target struct {
	Query    string `json:"query"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type listResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type comparison struct {
	Target       target
	Intersection []string
	Chained      []string
	OnlyA        []string
	OnlyB        []string
	Error        error
	DurationA    time.Duration
	DurationB    time.Duration
}

func (c comparison) match() bool {
	return len(c.OnlyA) == 0 && len(c.OnlyB) == 0
}

func main() {
	var (
		base        string
		prefix      string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&prefix, "prefix", "/api/v1", "API route prefix")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "strategy_compare", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	endpoint := strings.TrimRight(base, "/") + "/" + strings.Trim(prefix, "/") + "/students"

	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)
	for _, t := range targets {
		comp := compareTarget(client, endpoint, t)
		if comp.Error != nil || !comp.match() {
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func compareTarget(client *http.Client, endpoint string, tgt target) comparison {
	comp := comparison{Target: tgt}

	var err error
	comp.Intersection, comp.DurationA, err = fetchIDs(client, endpoint, strategies[0], tgt.Query)
	if err != nil {
		comp.Error = fmt.Errorf("%s request failed: %w", strategies[0], err)
		return comp
	}
	comp.Chained, comp.DurationB, err = fetchIDs(client, endpoint, strategies[1], tgt.Query)
	if err != nil {
		comp.Error = fmt.Errorf("%s request failed: %w", strategies[1], err)
		return comp
	}

	comp.OnlyA = difference(comp.Intersection, comp.Chained)
	comp.OnlyB = difference(comp.Chained, comp.Intersection)
	return comp
}

func fetchIDs(client *http.Client, endpoint, strategy, query string) ([]string, time.Duration, error) {
	if client == nil {
		return nil, 0, errors.New("nil client")
	}
	url := endpoint + "?strategy=" + strategy
	if q := strings.TrimLeft(strings.TrimSpace(query), "?&"); q != "" {
		url += "&" + q
	}

	start := time.Now()
	resp, err := client.Get(url)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, elapsed, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, elapsed, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload listResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, elapsed, fmt.Errorf("decode body: %w", err)
	}
	ids := make([]string, 0, len(payload.Data))
	for _, s := range payload.Data {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids, elapsed, nil
}

func difference(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, id := range b {
		seen[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func printReport(results []comparison) {
	fmt.Println("Strategy Compare Report")
	fmt.Println("=======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.match() {
			status = "DIFF"
		}
		query := res.Target.Query
		if query == "" {
			query = "(no filter)"
		}
		fmt.Printf("[%s] %s\n", status, query)
		fmt.Printf("  %s: %d students (%s)\n", strategies[0], len(res.Intersection), res.DurationA)
		fmt.Printf("  %s: %d students (%s)\n", strategies[1], len(res.Chained), res.DurationB)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		if !res.match() {
			fmt.Printf("  Only %s: %s\n", strategies[0], strings.Join(res.OnlyA, ", "))
			fmt.Printf("  Only %s: %s\n", strategies[1], strings.Join(res.OnlyB, ", "))
		}
		fmt.Printf("  Critical: %t\n", res.Target.Critical)
	}
}
