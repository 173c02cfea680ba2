package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// listExtensions are the file extensions ListFiles reports.
var listExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

// FromFile returns the first field of every row of the list file at path.
//
// Rows whose first field is blank are skipped. Nothing else is validated:
// a malformed address is looked up like any other. A missing file yields a
// *NotFoundError.
func FromFile(path string) ([]string, error) {
	payload, err := os.ReadFile(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = parseExcel(payload)
	case ".csv", ".txt", "":
		rows, err = parseCSV(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return firstFields(rows), nil
}

// FromManualEntry wraps a single typed address. Surrounding whitespace is
// removed. Blank input returns ErrEmptyAddress.
func FromManualEntry(raw string) ([]string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return nil, ErrEmptyAddress
	}
	return []string{email}, nil
}

// Resolve locates a list file. A path that exists as given is returned
// unchanged; otherwise the name is looked up inside dir. When neither
// exists the original path is returned so FromFile reports it.
func Resolve(path, dir string) string {
	if _, err := os.Stat(path); err == nil || dir == "" || filepath.IsAbs(path) {
		return path
	}
	candidate := filepath.Join(dir, path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}

// ListFiles returns the sorted names of the list files in dir.
// A missing directory yields an empty list.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		if listExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func parseCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func parseExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

func firstFields(rows [][]string) []string {
	emails := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		email := strings.TrimSpace(row[0])
		if email == "" {
			continue
		}
		emails = append(emails, email)
	}
	return emails
}
