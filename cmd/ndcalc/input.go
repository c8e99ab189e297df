package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// splitNames splits a comma-separated variable list.
func splitNames(s string) []string {
	var names []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// fields splits a line on commas and whitespace.
func fields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// parseVector parses a point such as "1,2.5,-3" or "1 2.5 -3".
func parseVector(s string) ([]float64, error) {
	f := fields(s)
	v := make([]float64, len(f))
	for i, field := range f {
		x, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %q is not a number", i+1, field)
		}
		v[i] = x
	}
	return v, nil
}

// readBatch reads one point per line into one column per variable.
// Blank lines and lines starting with '#' are skipped.
func readBatch(r io.Reader, nvars int) ([][]float64, error) {
	columns := make([][]float64, nvars)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		point, err := parseVector(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(point) != nvars {
			return nil, fmt.Errorf("line %d: expected %d values, got %d", line, nvars, len(point))
		}
		for j, x := range point {
			columns[j] = append(columns[j], x)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return columns, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatRow(row []float64) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, " ")
}
