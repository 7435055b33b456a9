package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/pano/internal/pipeline"
)

// formatBatchResults formats the batch processing results in the specified format.
func formatBatchResults(items []Item, format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		return formatJSON(items)
	case "csv":
		return formatCSV(items)
	case "", "text", "txt":
		return formatText(items)
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

type jsonItem struct {
	File   string           `json:"file"`
	Error  string           `json:"error,omitempty"`
	Result *pipeline.Result `json:"result,omitempty"`
}

// formatJSON formats results as JSON.
func formatJSON(items []Item) (string, error) {
	out := struct {
		Sequences []jsonItem `json:"sequences"`
	}{Sequences: make([]jsonItem, len(items))}

	for i, it := range items {
		out.Sequences[i] = jsonItem{File: it.Path, Result: it.Result}
		if it.Err != nil {
			out.Sequences[i].Error = it.Err.Error()
		}
	}

	bts, err := json.MarshalIndent(out, "", "  ")
	return string(bts), err
}

// formatCSV writes one row per image transform.
func formatCSV(items []Item) (string, error) {
	csvData := [][]string{{
		"file", "image", "reference", "h00", "h01", "h02", "h10", "h11", "h12", "h20", "h21", "h22", "error",
	}}

	for _, it := range items {
		if it.Err != nil || it.Result == nil {
			row := make([]string, 13)
			row[0] = it.Path
			if it.Err != nil {
				row[12] = it.Err.Error()
			}
			csvData = append(csvData, row)
			continue
		}
		for _, tr := range it.Result.Transforms {
			row := []string{
				it.Path,
				strconv.Itoa(tr.Index),
				strconv.FormatBool(tr.Index == it.Result.Reference),
			}
			for _, v := range tr.Homography {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			}
			csvData = append(csvData, append(row, ""))
		}
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.WriteAll(csvData); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// formatText formats results as plain text.
func formatText(items []Item) (string, error) {
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		_, _ = fmt.Fprintf(&sb, "== %s ==\n", it.Path)
		if it.Err != nil {
			_, _ = fmt.Fprintf(&sb, "Error: %v\n", it.Err)
			continue
		}
		if it.Result == nil {
			sb.WriteString("No result\n")
			continue
		}
		text, err := pipeline.ToPlainText(it.Result)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
