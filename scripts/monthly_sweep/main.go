// Command monthly_sweep materializes ledger rows for a billing month by
// calling the ensure endpoint for every student/fee pair in a roster file.
// Run it after month rollover so dashboards aggregate over real rows
// instead of projections.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type rosterEntry struct {
	StudentID string   `json:"student_id"`
	FeeIDs    []string `json:"fee_ids"`
}

type roster struct {
	SchoolID       string        `json:"school_id"`
	AcademicYearID string        `json:"academic_year_id"`
	Students       []rosterEntry `json:"students"`
}

type ensurePayload struct {
	SchoolID       string `json:"school_id"`
	AcademicYearID string `json:"academic_year_id"`
	FeeID          string `json:"fee_id"`
	Year           int    `json:"year"`
	Month          int    `json:"month"`
}

type sweepResult struct {
	StudentID string
	FeeID     string
	Status    int
	Created   bool
	Error     error
	Duration  time.Duration
}

func main() {
	var (
		baseURL    string
		token      string
		rosterPath string
		year       int
		month      int
		timeout    time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&token, "token", os.Getenv("SWEEP_TOKEN"), "Bearer token with staff access")
	flag.StringVar(&rosterPath, "roster", filepath.Join("scripts", "monthly_sweep", "roster.json"), "Path to JSON roster file")
	flag.IntVar(&year, "year", time.Now().Year(), "Billing year")
	flag.IntVar(&month, "month", int(time.Now().Month()), "Billing month (1-12)")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	r, err := loadRoster(rosterPath)
	if err != nil {
		log.Fatalf("failed to load roster: %v", err)
	}
	if token == "" {
		log.Fatal("missing token: pass -token or set SWEEP_TOKEN")
	}

	client := &http.Client{Timeout: timeout}
	var (
		results []sweepResult
		created int
		skipped int
		failed  int
	)

	for _, student := range r.Students {
		for _, feeID := range student.FeeIDs {
			res := ensureRow(client, baseURL, token, r, student.StudentID, feeID, year, month)
			switch {
			case res.Error != nil:
				failed++
			case res.Created:
				created++
			default:
				skipped++
			}
			results = append(results, res)
		}
	}

	printReport(results, year, month)

	fmt.Printf("Created: %d, Already present: %d, Failed: %d\n", created, skipped, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func loadRoster(path string) (*roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r roster
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.SchoolID == "" || r.AcademicYearID == "" {
		return nil, fmt.Errorf("roster %s must set school_id and academic_year_id", path)
	}
	if len(r.Students) == 0 {
		return nil, fmt.Errorf("no students defined in %s", path)
	}
	return &r, nil
}

func ensureRow(client *http.Client, baseURL, token string, r *roster, studentID, feeID string, year, month int) sweepResult {
	res := sweepResult{StudentID: studentID, FeeID: feeID}

	payload, err := json.Marshal(ensurePayload{
		SchoolID:       r.SchoolID,
		AcademicYearID: r.AcademicYearID,
		FeeID:          feeID,
		Year:           year,
		Month:          month,
	})
	if err != nil {
		res.Error = err
		return res
	}

	url := strings.TrimRight(baseURL, "/") + "/students/" + studentID + "/ledger/ensure"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		res.Error = err
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	switch resp.StatusCode {
	case http.StatusCreated:
		res.Created = true
	case http.StatusOK:
		// Row already existed for this month.
	default:
		var envelope struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != nil {
			res.Error = fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		} else {
			res.Error = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	}
	return res
}

func printReport(results []sweepResult, year, month int) {
	fmt.Printf("Monthly Sweep Report %04d-%02d\n", year, month)
	fmt.Println("==============================")
	for _, res := range results {
		status := "EXISTS"
		if res.Error != nil {
			status = "ERROR"
		} else if res.Created {
			status = "CREATED"
		}
		fmt.Printf("[%s] student=%s fee=%s\n", status, res.StudentID, res.FeeID)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Status: %d (%s)\n", res.Status, res.Duration)
		}
	}
}
