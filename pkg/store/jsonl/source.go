// Package jsonl streams records from a newline-delimited JSON file. One
// object per line; blank lines are skipped. The file must already be sorted
// by the report's group keys.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/accountex-org/ash-reports-sub007/pkg/models/store"
)

type Source struct {
	f       *os.File
	scanner *bufio.Scanner
	cur     store.Record
	line    int
	err     error
}

// Open opens path for streaming. The scanner buffer allows records up to
// 1 MiB per line.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file: %w", err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Source{f: f, scanner: scanner}, nil
}

func (s *Source) Next() bool {
	if s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" {
			continue
		}
		var rec store.Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			s.err = fmt.Errorf("line %d: %w", s.line, err)
			return false
		}
		s.cur = rec
		return true
	}
	s.err = s.scanner.Err()
	return false
}

func (s *Source) Record() store.Record {
	return s.cur
}

func (s *Source) Err() error {
	return s.err
}

func (s *Source) Close() error {
	return s.f.Close()
}
