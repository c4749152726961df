package ast

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// codecSchemaVersion must be bumped whenever a serialized node changes shape.
const codecSchemaVersion uint16 = 1

const codecMagic = "KAST"

var ErrBadMagic = errors.New("ast: not a keel typed AST")

type header struct {
	Magic  string `msgpack:"magic"`
	Schema uint16 `msgpack:"schema"`
}

// Encode writes p as a msgpack stream prefixed by a schema header.
func Encode(w io.Writer, p *Program) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(header{Magic: codecMagic, Schema: codecSchemaVersion}); err != nil {
		return fmt.Errorf("ast: encode header: %w", err)
	}
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("ast: encode program: %w", err)
	}
	return nil
}

// Decode reads a Program written by Encode.
func Decode(r io.Reader) (*Program, error) {
	dec := msgpack.NewDecoder(r)
	var h header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("ast: decode header: %w", err)
	}
	if h.Magic != codecMagic {
		return nil, ErrBadMagic
	}
	if h.Schema != codecSchemaVersion {
		return nil, fmt.Errorf("ast: schema %d, want %d", h.Schema, codecSchemaVersion)
	}
	p := NewProgram()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("ast: decode program: %w", err)
	}
	return p, nil
}

// ReadFile decodes the typed AST stored at path.
func ReadFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(bufio.NewReader(f))
}

// WriteFile stores p at path.
func WriteFile(path string, p *Program) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err := Encode(w, p); err != nil {
		return err
	}
	return w.Flush()
}
