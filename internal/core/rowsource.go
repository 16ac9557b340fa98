package core

// rowsource.go provides a uniform lazy iterator over the rows of a
// spreadsheet or delimited-text catalog file. Format is chosen by file
// extension. Rows are always strings; all interpretation is deferred to
// the transform engine.
//
// The iterator is single-pass and non-restartable. Close releases the
// underlying file handle and must be called even on early abandonment.

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// textFallbackHeaders is the fixed synthetic header used when a delimited
// file is empty and has no header line to read.
var textFallbackHeaders = []string{"col_1", "col_2", "col_3", "col_4"}

// RowSource streams rows of one catalog file.
type RowSource struct {
	headers []string
	next    func() ([]string, error)
	close   func() error
	counter *countingReader
	closed  bool
}

// Headers returns the ordered header names rows are aligned to.
func (s *RowSource) Headers() []string { return s.headers }

// Next returns the next data row, padded to header width.
// Returns io.EOF on clean exhaustion.
func (s *RowSource) Next() ([]string, error) {
	if s.closed {
		return nil, io.EOF
	}
	return s.next()
}

// Close releases the underlying file. Safe to call more than once.
func (s *RowSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Percent reports byte-based read progress (0-100), 0 when unknown.
// Spreadsheet sources have no byte counter (the zip container is random
// access, not a forward stream) and always report 0 until completion.
func (s *RowSource) Percent() int {
	if s.counter == nil {
		return 0
	}
	return s.counter.percent()
}

// OpenRowSource opens path with the reader matching its extension.
// bufferSize is the read buffer for delimited files; <= 0 uses 64KB.
func OpenRowSource(path string, bufferSize int) (*RowSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return openSpreadsheet(path)
	default:
		return openDelimited(path, bufferSize)
	}
}

// openSpreadsheet reads the first sheet, values only, via the excelize
// streaming row iterator. Header is row 1, or synthesized spreadsheet
// column letters when row 1 is entirely blank.
func openSpreadsheet(path string) (*RowSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, &ParseError{Path: path, Err: errors.New("workbook has no sheets")}
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, &ParseError{Path: path, Err: err}
	}

	src := &RowSource{
		close: func() error {
			rows.Close()
			return f.Close()
		},
	}

	// Header detection: row 1 is the header unless entirely blank, in
	// which case letters are synthesized and the first non-blank row is
	// delivered as data.
	var pending []string
	havePending := false

	if rows.Next() {
		first, err := rows.Columns()
		if err != nil {
			src.Close()
			return nil, &ParseError{Path: path, Err: err}
		}
		if isBlankRow(first) {
			// Advance to the first non-blank row; styled-but-empty rows
			// below a blank row 1 are not data either.
			for rows.Next() {
				data, err := rows.Columns()
				if err != nil {
					src.Close()
					return nil, &ParseError{Path: path, Err: err}
				}
				if isBlankRow(data) {
					continue
				}
				pending = data
				havePending = true
				src.headers = columnLetters(len(data))
				break
			}
		} else {
			src.headers = first
		}
	}

	width := len(src.headers)
	src.next = func() ([]string, error) {
		if havePending {
			havePending = false
			return padRow(pending, width), nil
		}
		for rows.Next() {
			cells, err := rows.Columns()
			if err != nil {
				return nil, &ParseError{Path: path, Err: err}
			}
			if isBlankRow(cells) {
				continue
			}
			return padRow(cells, width), nil
		}
		if err := rows.Error(); err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		return nil, io.EOF
	}

	return src, nil
}

// openDelimited streams a delimited-text file. The first line is the
// header; an empty file gets the fixed synthetic header and zero rows.
// The reader stack skips a UTF-8 BOM and sanitizes invalid UTF-8.
func openDelimited(path string, bufferSize int) (*RowSource, error) {
	if bufferSize <= 0 {
		bufferSize = 64 * 1024
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var total int64
	if st, err := f.Stat(); err == nil {
		total = st.Size()
	}

	counter := newCountingReader(f, total)
	br := bufio.NewReaderSize(newUTF8SanitizeReader(counter), bufferSize)

	// Skip UTF-8 BOM (0xEF 0xBB 0xBF) commonly added by Windows exports
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.Comma = sniffDelimiter(br)

	src := &RowSource{
		counter: counter,
		close:   f.Close,
	}

	header, err := cr.Read()
	switch {
	case err == io.EOF:
		src.headers = textFallbackHeaders
		src.next = func() ([]string, error) { return nil, io.EOF }
		return src, nil
	case err != nil:
		src.Close()
		return nil, &ParseError{Path: path, Err: err}
	}

	for i, h := range header {
		header[i] = CleanCell(h)
	}
	src.headers = header

	width := len(header)
	src.next = func() ([]string, error) {
		for {
			rec, err := cr.Read()
			if err == io.EOF {
				return nil, io.EOF
			}
			if err != nil {
				return nil, &ParseError{Path: path, Err: err}
			}
			if isBlankRow(rec) {
				continue
			}
			return padRow(rec, width), nil
		}
	}

	return src, nil
}

// sniffDelimiter inspects the buffered first line and prefers ';' when it
// outnumbers ',' there, as German catalog exports commonly use semicolons.
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(4096)
	line := string(peek)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// padRow aligns a row to the header width, truncating extra cells.
func padRow(row []string, width int) []string {
	if width <= 0 || len(row) == width {
		return row
	}
	if len(row) > width {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

// columnLetters synthesizes spreadsheet-style column headers A, B, ... Z,
// AA, AB, ... for files whose first row is blank.
func columnLetters(n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			name = fmt.Sprintf("COL%d", i+1)
		}
		out[i] = name
	}
	return out
}
