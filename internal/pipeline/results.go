package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"gopkg.in/yaml.v3"
)

// ToJSON serializes a result to pretty JSON.
func ToJSON(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAML serializes a result to YAML.
func ToYAML(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToPlainText renders a human-readable summary.
func ToPlainText(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Images: %d  Reference: %d  Seed: %d\n", res.Images, res.Reference, res.Seed)
	for _, p := range res.Pairs {
		fmt.Fprintf(&sb, "Pair %d-%d: %d/%d inliers (%.1f%%), rmse %.3f px, %d iterations\n",
			p.Index, p.Index+1, p.Inliers, p.Total, p.InlierRatio*100, p.RMSE, p.Iterations)
	}
	for _, t := range res.Transforms {
		label := strconv.Itoa(t.Index)
		if t.Name != "" {
			label += " (" + t.Name + ")"
		}
		fmt.Fprintf(&sb, "Image %s: %s\n", label, t.Homography)
	}
	if c := res.Canvas; c != nil {
		fmt.Fprintf(&sb, "Canvas: %dx%d origin (%.1f, %.1f)\n", c.Width, c.Height, c.MinX, c.MinY)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

var matrixHeader = []string{"h00", "h01", "h02", "h10", "h11", "h12", "h20", "h21", "h22"}

func matrixFields(h geometry.Homography) []string {
	out := make([]string, len(h))
	for i, v := range h {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

// ToCSV exports the per-image transforms, one row per image.
func ToCSV(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(append([]string{"image", "name", "reference"}, matrixHeader...))
	for _, t := range res.Transforms {
		row := []string{strconv.Itoa(t.Index), t.Name, strconv.FormatBool(t.Index == res.Reference)}
		_ = w.Write(append(row, matrixFields(t.Homography)...))
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ToPairsCSV exports the per-pair estimation statistics.
func ToPairsCSV(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"pair", "inliers", "total", "inlier_ratio", "rmse", "iterations", "degenerate"}
	_ = w.Write(append(header, matrixHeader...))
	for _, p := range res.Pairs {
		row := []string{
			strconv.Itoa(p.Index),
			strconv.Itoa(p.Inliers),
			strconv.Itoa(p.Total),
			fmt.Sprintf("%.4f", p.InlierRatio),
			fmt.Sprintf("%.4f", p.RMSE),
			strconv.Itoa(p.Iterations),
			strconv.Itoa(p.Degenerate),
		}
		_ = w.Write(append(row, matrixFields(p.Homography)...))
	}
	w.Flush()
	return buf.String(), w.Error()
}

// Format renders a result in the named format: json, yaml, text or csv.
func Format(res *Result, format string) (string, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return ToJSON(res)
	case "yaml", "yml":
		return ToYAML(res)
	case "text", "txt":
		return ToPlainText(res)
	case "csv":
		return ToCSV(res)
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// ValidateResult performs consistency checks on a result.
func ValidateResult(res *Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	if len(res.Transforms) != res.Images {
		return fmt.Errorf("%d transforms for %d images", len(res.Transforms), res.Images)
	}
	if res.Images > 0 && len(res.Pairs) != res.Images-1 {
		return fmt.Errorf("%d pairs for %d images", len(res.Pairs), res.Images)
	}
	if res.Reference < 0 || res.Reference >= res.Images {
		return fmt.Errorf("reference %d out of range", res.Reference)
	}
	if !res.Transforms[res.Reference].Homography.IsIdentity() {
		return fmt.Errorf("reference transform is not the identity")
	}
	for _, p := range res.Pairs {
		if p.Inliers > p.Total {
			return fmt.Errorf("pair %d has %d inliers of %d", p.Index, p.Inliers, p.Total)
		}
		if p.InlierRatio < 0 || p.InlierRatio > 1 {
			return fmt.Errorf("pair %d inlier ratio out of range", p.Index)
		}
	}
	return nil
}

// FormatPair renders a single pair estimate in the named format.
func FormatPair(pr *PairResult, format string) (string, error) {
	if pr == nil {
		return "", errors.New("nil pair result")
	}
	switch strings.ToLower(format) {
	case "json", "":
		b, err := json.MarshalIndent(pr, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	case "yaml", "yml":
		b, err := yaml.Marshal(pr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case "text", "txt":
		return fmt.Sprintf("Pair %d-%d: %d/%d inliers (%.1f%%), rmse %.3f px, %d iterations, seed %d\nHomography: %s",
			pr.Index, pr.Index+1, pr.Inliers, pr.Total, pr.InlierRatio*100, pr.RMSE, pr.Iterations, pr.Seed,
			pr.Homography), nil
	case "csv":
		return ToPairsCSV(&Result{Pairs: []PairResult{*pr}})
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}
