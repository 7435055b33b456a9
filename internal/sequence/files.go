package sequence

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"gopkg.in/yaml.v3"
)

// Format is a file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// IsSequenceFile reports whether path has an extension a sequence file can use.
func IsSequenceFile(path string) bool {
	f, err := FormatFromPath(path)
	return err == nil && f != FormatCSV
}

func decode(data []byte, format Format, v interface{}) error {
	switch format {
	case FormatJSON:
		return json.Unmarshal(data, v)
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func encode(format Format, v interface{}) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(v, "", "  ")
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Parse decodes and validates a sequence document.
func Parse(data []byte, format Format) (*Sequence, error) {
	var seq Sequence
	if err := decode(data, format, &seq); err != nil {
		return nil, fmt.Errorf("failed to parse sequence: %w", err)
	}
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return &seq, nil
}

// Load reads a sequence file and probes missing image dimensions.
func Load(path string) (*Sequence, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if format == FormatCSV {
		return nil, fmt.Errorf("%w: sequences cannot be CSV", ErrUnsupportedFormat)
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided sequence path
	if err != nil {
		return nil, fmt.Errorf("failed to read sequence file: %w", err)
	}
	seq, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	seq.Dir = filepath.Dir(path)
	if err := seq.ProbeDimensions(); err != nil {
		return nil, err
	}
	return seq, nil
}

// Marshal encodes a sequence.
func Marshal(seq *Sequence, format Format) ([]byte, error) {
	return encode(format, seq)
}

// Save writes a sequence file, choosing the format by extension.
func Save(path string, seq *Sequence) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Marshal(seq, format)
	if err != nil {
		return fmt.Errorf("failed to encode sequence: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ParsePairs decodes a correspondence set. JSON and YAML files hold a list
// of [x, y, u, v] rows, optionally wrapped as {"correspondences": [...]}.
func ParsePairs(data []byte, format Format) ([]geometry.Correspondence, error) {
	if format == FormatCSV {
		return parseCSV(bytes.NewReader(data))
	}
	var rows [][]float64
	if err := decode(data, format, &rows); err != nil {
		var wrapped Pair
		if werr := decode(data, format, &wrapped); werr != nil {
			return nil, fmt.Errorf("failed to parse correspondences: %w", err)
		}
		rows = wrapped.Correspondences
	}
	return rowsToCorrespondences(rows)
}

// LoadPairs reads a correspondence file.
func LoadPairs(path string) ([]geometry.Correspondence, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided pair path
	if err != nil {
		return nil, fmt.Errorf("failed to read correspondence file: %w", err)
	}
	set, err := ParsePairs(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// parseCSV reads x,y,u,v rows. A first row that does not parse as numbers
// is treated as a header.
func parseCSV(r io.Reader) ([]geometry.Correspondence, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []geometry.Correspondence
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		var vals [4]float64
		var perr error
		for i, field := range rec {
			if vals[i], perr = strconv.ParseFloat(strings.TrimSpace(field), 64); perr != nil {
				break
			}
		}
		if perr != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("CSV line %d: %w", line, perr)
		}
		out = append(out, geometry.NewCorrespondence(vals[0], vals[1], vals[2], vals[3]))
	}
	return out, nil
}

// Chain is a homography chain document used by compose.
type Chain struct {
	Reference *int                  `json:"reference,omitempty" yaml:"reference,omitempty"`
	Images    []Image               `json:"images,omitempty"    yaml:"images,omitempty"`
	Pairs     []geometry.Homography `json:"pairs"               yaml:"pairs"`
}

// ParseChain decodes a chain document.
func ParseChain(data []byte, format Format) (*Chain, error) {
	var c Chain
	if err := decode(data, format, &c); err != nil {
		return nil, fmt.Errorf("failed to parse chain: %w", err)
	}
	if len(c.Images) > 0 && len(c.Pairs) != len(c.Images)-1 {
		return nil, fmt.Errorf("%w: %d images need %d pairs, got %d",
			ErrInvalidSequence, len(c.Images), len(c.Images)-1, len(c.Pairs))
	}
	return &c, nil
}

// LoadChain reads a chain file.
func LoadChain(path string) (*Chain, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided chain path
	if err != nil {
		return nil, fmt.Errorf("failed to read chain file: %w", err)
	}
	c, err := ParseChain(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
