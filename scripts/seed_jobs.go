// seed_jobs.go — standalone script to parse a jobs CSV and submit job
// requests via the dispatch API.
//
// CSV columns:
//
//	service_type,skills,hours,pickup_lat,pickup_lng,delivery_lat,delivery_lng,date,urgency,segment,volume_m3
//
// Usage:
//
//	go run scripts/seed_jobs.go -jobs jobs.csv -api http://localhost:8700 -mode assign
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
)

type coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type jobRequest struct {
	ServiceType     string     `json:"service_type"`
	RequiredSkills  []string   `json:"required_skills"`
	EstimatedHours  float64    `json:"estimated_hours"`
	Pickup          coordinate `json:"pickup"`
	Delivery        coordinate `json:"delivery"`
	RequestedDate   string     `json:"requested_date"`
	Urgency         string     `json:"urgency,omitempty"`
	CustomerSegment string     `json:"customer_segment,omitempty"`
	VolumeM3        float64    `json:"volume_m3,omitempty"`
}

func main() {
	jobsPath := flag.String("jobs", "jobs.csv", "path to jobs CSV file")
	apiURL := flag.String("api", "http://localhost:8700", "dispatch API base URL")
	mode := flag.String("mode", "assign", "assign or quote")
	dryRun := flag.Bool("dry-run", false, "print jobs without posting")
	flag.Parse()

	path := "/api/v1/assignments"
	if *mode == "quote" {
		path = "/api/v1/quotes"
	} else if *mode != "assign" {
		log.Fatalf("unknown mode %q", *mode)
	}

	f, err := os.Open(*jobsPath)
	if err != nil {
		log.Fatalf("open jobs file: %v", err)
	}
	defer f.Close()

	jobs, err := parseJobs(f)
	if err != nil {
		log.Fatalf("parse jobs: %v", err)
	}
	log.Printf("parsed %d jobs from %s", len(jobs), *jobsPath)

	if *dryRun {
		for _, j := range jobs {
			out, _ := json.MarshalIndent(j, "", "  ")
			fmt.Println(string(out))
		}
		return
	}

	posted := 0
	for i, j := range jobs {
		if err := post(*apiURL+path, j); err != nil {
			log.Printf("job %d failed: %v", i+1, err)
			continue
		}
		posted++
	}
	log.Printf("submitted %d/%d jobs", posted, len(jobs))
}

func parseJobs(r io.Reader) ([]jobRequest, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var jobs []jobRequest
	for i, rec := range records {
		if i == 0 && rec[0] == "service_type" {
			continue // header row
		}
		if len(rec) < 11 {
			return nil, fmt.Errorf("row %d: expected 11 columns, got %d", i+1, len(rec))
		}
		job := jobRequest{
			ServiceType:     rec[0],
			RequiredSkills:  strings.Split(rec[1], ";"),
			RequestedDate:   rec[7],
			Urgency:         rec[8],
			CustomerSegment: rec[9],
		}
		job.EstimatedHours, err = strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d hours: %w", i+1, err)
		}
		job.Pickup.Lat, _ = strconv.ParseFloat(rec[3], 64)
		job.Pickup.Lng, _ = strconv.ParseFloat(rec[4], 64)
		job.Delivery.Lat, _ = strconv.ParseFloat(rec[5], 64)
		job.Delivery.Lng, _ = strconv.ParseFloat(rec[6], 64)
		job.VolumeM3, _ = strconv.ParseFloat(rec[10], 64)
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func post(url string, job jobRequest) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%d: %s", resp.StatusCode, string(body))
	}
	return nil
}
