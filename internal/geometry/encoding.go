package geometry

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalJSON encodes h as three rows of three numbers.
func (h Homography) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Rows())
}

// UnmarshalJSON accepts either three rows of three numbers or a flat list
// of nine numbers in row-major order.
func (h *Homography) UnmarshalJSON(data []byte) error {
	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err == nil {
		return h.setRows(rows)
	}
	var flat []float64
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("homography: %w", err)
	}
	return h.setFlat(flat)
}

// MarshalYAML encodes h as three rows of three numbers.
func (h Homography) MarshalYAML() (interface{}, error) {
	rows := h.Rows()
	return [][]float64{rows[0][:], rows[1][:], rows[2][:]}, nil
}

// UnmarshalYAML accepts the same shapes as UnmarshalJSON.
func (h *Homography) UnmarshalYAML(value *yaml.Node) error {
	var rows [][]float64
	if err := value.Decode(&rows); err == nil {
		return h.setRows(rows)
	}
	var flat []float64
	if err := value.Decode(&flat); err != nil {
		return fmt.Errorf("homography: %w", err)
	}
	return h.setFlat(flat)
}

func (h *Homography) setRows(rows [][]float64) error {
	if len(rows) != 3 {
		return fmt.Errorf("homography: expected 3 rows, got %d", len(rows))
	}
	for r, row := range rows {
		if len(row) != 3 {
			return fmt.Errorf("homography: row %d has %d entries, expected 3", r, len(row))
		}
		copy(h[r*3:r*3+3], row)
	}
	return nil
}

func (h *Homography) setFlat(flat []float64) error {
	if len(flat) != 9 {
		return fmt.Errorf("homography: expected 9 entries, got %d", len(flat))
	}
	copy(h[:], flat)
	return nil
}
