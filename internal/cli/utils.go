// Package cli provides CLI output utilities for Irodori.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/naild/irodori/internal/ingest"
	"github.com/naild/irodori/internal/metasearch"
	"github.com/naild/irodori/internal/models"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one result per line, grep-friendly.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a -output flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "compact":
		return OutputCompact, nil
	case "json":
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%d\t%.4f\t%s\n", r.Rank, r.FusedScore, r.ID)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\n%s (%dms)\n\n", response.Message, response.Stats.TimingMS["total"])
	for _, r := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f (Vector: %.4f, Color: %.4f)\n",
			r.Rank, r.FusedScore, r.VectorScore, r.ColorScore)
		fmt.Fprintf(w, "Image: %s\n", r.ID)
		if r.Metadata != nil {
			if r.Metadata.Artist != "" {
				fmt.Fprintf(w, "Artist: %s\n", r.Metadata.Artist)
			}
			if r.Metadata.Style != "" {
				fmt.Fprintf(w, "Style: %s\n", r.Metadata.Style)
			}
			if r.Metadata.Colors != "" {
				fmt.Fprintf(w, "Colors: %s\n", r.Metadata.Colors)
			}
			if r.Metadata.PublicURL != "" {
				fmt.Fprintf(w, "URL: %s\n", r.Metadata.PublicURL)
			}
		}
		fmt.Fprintln(w)
	}
}

// WriteIngestReport writes an ingestion report to w in the given format.
func WriteIngestReport(w io.Writer, report *ingest.Report, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintf(w, "job:      %s\n", report.JobID)
	fmt.Fprintf(w, "total:    %d\n", report.Total)
	fmt.Fprintf(w, "ingested: %d\n", report.Ingested)
	fmt.Fprintf(w, "skipped:  %d   # unchanged content\n", report.Skipped)
	fmt.Fprintf(w, "failed:   %d\n", report.Failed)
	for path, reason := range report.Failures {
		fmt.Fprintf(w, "  %s: %s\n", path, reason)
	}
	return nil
}

// WriteMetaResults writes metadata search hits to w.
func WriteMetaResults(w io.Writer, hits []*metasearch.Result, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	for i, h := range hits {
		fmt.Fprintf(w, "%d\t%.4f\t%s\n", i+1, h.Score, h.Filename)
	}
	return nil
}
