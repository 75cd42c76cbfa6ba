package benchpipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// readResults reads a two-column (scenario name, double) CSV produced by the
// benchmark runner into a name -> value map.
func readResults(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open results file %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2

	results := make(map[string]float64)
	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("malformed results file %s: %w", path, err)
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed result value for scenario %s in %s: %w", record[0], path, err)
		}
		results[record[0]] = value
	}
	return results, nil
}
