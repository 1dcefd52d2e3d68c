// Package replay drives decoded chain transactions through the engines in
// chain order.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/holiman/uint256"
)

// Call is one inner invocation of a multicall transaction.
type Call struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Transaction is a decoded chain transaction ready to be replayed. amounts
// and prices are carried as strings so 256-bit values survive JSON.
type Transaction struct {
	Hash           string          `json:"hash"`
	BlockNumber    uint64          `json:"block_number"`
	BlockTimestamp uint32          `json:"block_timestamp"`
	Sender         string          `json:"sender"`
	Success        bool            `json:"success"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params"`
	Multicall      []Call          `json:"multicall,omitempty"`
}

// parseU256 reads a decimal or 0x-prefixed hex quantity. Empty strings mean
// "not provided" and return nil.
func parseU256(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	if len(s) > 1 && (s[:2] == "0x" || s[:2] == "0X") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}

// requireU256 is parseU256 for fields that must be present.
func requireU256(field, s string) (*uint256.Int, error) {
	v, err := parseU256(s)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", field, err)
	}
	if v == nil {
		return nil, fmt.Errorf("missing %s", field)
	}
	return v, nil
}

// Source yields transactions in chain order. Next returns io.EOF when the
// stream ends.
type Source interface {
	Next() (*Transaction, error)
}

// JSONLSource reads one JSON transaction per line.
type JSONLSource struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

func OpenJSONL(path string) (*JSONLSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transactions file: %w", err)
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &JSONLSource{file: file, scanner: scanner}, nil
}

func (s *JSONLSource) Next() (*Transaction, error) {
	for s.scanner.Scan() {
		s.line++
		raw := s.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var tx Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("decode transaction at line %d: %w", s.line, err)
		}
		return &tx, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transactions file: %w", err)
	}
	return nil, io.EOF
}

func (s *JSONLSource) Close() error {
	return s.file.Close()
}

// SliceSource replays an in-memory transaction list, mainly for tests.
type SliceSource struct {
	txs []*Transaction
	pos int
}

func NewSliceSource(txs []*Transaction) *SliceSource {
	return &SliceSource{txs: txs}
}

func (s *SliceSource) Next() (*Transaction, error) {
	if s.pos >= len(s.txs) {
		return nil, io.EOF
	}
	tx := s.txs[s.pos]
	s.pos++
	return tx, nil
}
