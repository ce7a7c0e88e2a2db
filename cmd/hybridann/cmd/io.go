package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hybridann/hybridann/config"
	"github.com/hybridann/hybridann/engine"
)

// loadParams reads configPath via the config package, or returns
// engine.DefaultParameters when configPath is empty.
func loadParams() (engine.Parameters, error) {
	if configPath == "" {
		return engine.DefaultParameters(), nil
	}
	return config.LoadFile(configPath)
}

// loadVectors reads one vector per line from path, each line a
// comma-separated list of float32 values.
func loadVectors(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vectors [][]float32
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		row := make([]float32, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
			if err != nil {
				return nil, fmt.Errorf("parsing vector: %w", err)
			}
			row[i] = float32(v)
		}
		vectors = append(vectors, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// loadPayloads reads one payload per line from path, as raw bytes.
func loadPayloads(path string) ([][]byte, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var payloads [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		payloads = append(payloads, []byte(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return payloads, nil
}

// formatIDRanges collapses a sorted run of ids into a compact comma-separated
// list of single ids and closed ranges (e.g. "1,3-5,9").
func formatIDRanges(ids []uint32) string {
	if len(ids) == 0 {
		return ""
	}
	var parts []string
	start, prev := ids[0], ids[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.FormatUint(uint64(start), 10))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, id := range ids[1:] {
		if id == prev+1 {
			prev = id
			continue
		}
		flush()
		start, prev = id, id
	}
	flush()
	return strings.Join(parts, ",")
}

// parseQuery parses a single comma-separated vector from a flag value.
func parseQuery(s string) ([]float32, error) {
	fields := strings.Split(s, ",")
	row := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, fmt.Errorf("parsing query vector: %w", err)
		}
		row[i] = float32(v)
	}
	return row, nil
}
