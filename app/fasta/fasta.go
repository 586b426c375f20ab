// Package fasta validates user supplied sequences and writes boltz FASTA inputs
package fasta

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"
)

// entity types accepted by boltz
const (
	Protein = "protein"
	DNA     = "dna"
	RNA     = "rna"
	SMILES  = "smiles"
)

const chainLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// MaxSequences is the number of chains a single input can hold
const MaxSequences = len(chainLetters)

// ErrTooManySequences returned when sequences can't be mapped to chain letters
var ErrTooManySequences = errors.New("too many sequences provided")

var alphabets = map[string]string{
	Protein: "ACDEFGHIKLMNPQRSTVWY",
	DNA:     "ATCG",
	RNA:     "AUCG",
	SMILES:  `CNOHSPFeZnCaMgcnospi@[]\/()+-=#%:1234567890l`,
}

// Sequence is a single chain of the prediction input
type Sequence struct {
	Type string
	Data string
}

// ValidationError describes rejected input, safe to show to users
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Validate checks sequence data against the alphabet of its entity type.
// Whitespace is ignored; protein and nucleic acid sequences are case-insensitive, SMILES is not.
func Validate(seq Sequence) error {
	if strings.TrimSpace(seq.Data) == "" {
		return &ValidationError{msg: "Empty sequence provided"}
	}
	alphabet, ok := alphabets[seq.Type]
	if !ok {
		return &ValidationError{msg: fmt.Sprintf("Unknown entity type: %s", seq.Type)}
	}

	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, seq.Data)
	if seq.Type != SMILES {
		clean = strings.ToUpper(clean)
	}

	invalid := map[rune]bool{}
	for _, r := range clean {
		if !strings.ContainsRune(alphabet, r) {
			invalid[r] = true
		}
	}
	if len(invalid) == 0 {
		return nil
	}

	chars := make([]string, 0, len(invalid))
	for r := range invalid {
		chars = append(chars, string(r))
	}
	sort.Strings(chars)
	bad := strings.Join(chars, "")

	switch seq.Type {
	case Protein:
		return &ValidationError{msg: "Invalid protein sequence: contains unsupported characters: " + bad}
	case SMILES:
		return &ValidationError{msg: "Invalid SMILES string: contains unsupported characters: " + bad}
	default:
		return &ValidationError{msg: fmt.Sprintf("Invalid %s sequence: contains unsupported characters: %s", seq.Type, bad)}
	}
}

// Write writes sequences as FASTA records, one chain per sequence: >A|protein\nSEQ
func Write(w io.Writer, seqs []Sequence) error {
	if len(seqs) > len(chainLetters) {
		return fmt.Errorf("%w: %d, max %d supported", ErrTooManySequences, len(seqs), len(chainLetters))
	}
	bw := bufio.NewWriter(w)
	for i, seq := range seqs {
		if _, err := fmt.Fprintf(bw, ">%c|%s\n%s\n", chainLetters[i], seq.Type, strings.TrimSpace(seq.Data)); err != nil {
			return fmt.Errorf("failed to write chain %c: %w", chainLetters[i], err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush fasta: %w", err)
	}
	return nil
}

// WriteFile makes FASTA file at path
func WriteFile(path string, seqs []Sequence) (err error) {
	fh, err := os.Create(path) //nolint:gosec // path built from job layout
	if err != nil {
		return fmt.Errorf("failed to create fasta file: %w", err)
	}
	defer func() {
		if e := fh.Close(); e != nil && err == nil {
			err = fmt.Errorf("failed to close fasta file: %w", e)
		}
	}()
	return Write(fh, seqs)
}
