// Package roster reads the list of DAGs to watch from a CSV file.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const idColumn = "dag_id"

// ReadFile reads the roster at path.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a roster. When the first record has a dag_id column, that
// column is used; otherwise the first column of every record is a DAG id.
// Blank ids and duplicates are dropped, lines starting with # are comments.
func Read(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	column := 0
	seen := map[string]bool{}
	var ids []string
	for line := 0; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse roster: %w", err)
		}
		if line == 0 {
			if idx := headerIndex(record); idx >= 0 {
				column = idx
				continue
			}
		}
		if column >= len(record) {
			continue
		}
		id := strings.TrimSpace(record[column])
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func headerIndex(record []string) int {
	for i, field := range record {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(field, "\ufeff")), idColumn) {
			return i
		}
	}
	return -1
}
