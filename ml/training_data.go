package ml

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Dataset labelled feature rows read from a CSV file
type Dataset struct {
	Columns  []string
	Features [][]float64
	Labels   []int
}

// Len number of rows
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// LoadDataset reads a CSV with a header row. The delimiter (';' or ',') is taken from the
// header; columns are matched case-insensitively and may be quoted.
func LoadDataset(path string, columns []string, labelColumn string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadDataset(file, columns, labelColumn)
}

func ReadDataset(r io.Reader, columns []string, labelColumn string) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, errors.New("no feature columns requested")
	}
	buffered := bufio.NewReader(r)
	headerLine, err := buffered.Peek(buffered.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read header: %w", err)
	}

	reader := csv.NewReader(buffered)
	reader.Comma = sniffDelimiter(string(headerLine))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.ToLower(strings.TrimSpace(name))] = i
	}

	featureIdx := make([]int, len(columns))
	for i, column := range columns {
		idx, ok := positions[strings.ToLower(column)]
		if !ok {
			return nil, fmt.Errorf("dataset is missing column %q", column)
		}
		featureIdx[i] = idx
	}
	labelIdx, ok := positions[strings.ToLower(labelColumn)]
	if !ok {
		return nil, fmt.Errorf("dataset is missing label column %q", labelColumn)
	}

	dataset := &Dataset{Columns: append([]string(nil), columns...)}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make([]float64, len(featureIdx))
		for i, idx := range featureIdx {
			value, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, columns[i], err)
			}
			row[i] = value
		}
		labelValue, err := strconv.ParseFloat(strings.TrimSpace(record[labelIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d column %q: %w", line, labelColumn, err)
		}
		if labelValue != math.Trunc(labelValue) {
			return nil, fmt.Errorf("line %d: label %v is not an integer", line, labelValue)
		}
		dataset.Features = append(dataset.Features, row)
		dataset.Labels = append(dataset.Labels, int(labelValue))
	}
	if dataset.Len() == 0 {
		return nil, errors.New("dataset has no rows")
	}
	return dataset, nil
}

func sniffDelimiter(head string) rune {
	if idx := strings.IndexByte(head, '\n'); idx >= 0 {
		head = head[:idx]
	}
	if strings.Count(head, ";") > strings.Count(head, ",") {
		return ';'
	}
	return ','
}

// Table a page of raw dataset rows for display
type Table struct {
	Header []string
	Rows   [][]string
	Total  int
}

// ReadTable returns rows [offset, offset+limit) of a CSV file as text, plus the total row count.
func ReadTable(path string, offset, limit int) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buffered := bufio.NewReader(file)
	head, err := buffered.Peek(buffered.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	reader := csv.NewReader(buffered)
	reader.Comma = sniffDelimiter(string(head))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	table := &Table{Header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", table.Total+2, err)
		}
		if table.Total >= offset && (limit <= 0 || len(table.Rows) < limit) {
			table.Rows = append(table.Rows, record)
		}
		table.Total++
	}
	return table, nil
}
