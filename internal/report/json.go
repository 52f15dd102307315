package report

import (
	"encoding/json"
	"io"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
)

// WriteJSON writes the run as an indented JSON document.
func WriteJSON(w io.Writer, run *scan.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Build(run))
}
