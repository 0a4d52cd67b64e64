package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// MarshalBinary encodes every parameter as its name followed by the gonum
// binary form of its value.
func (m *ERModel) MarshalBinary() ([]byte, error) {
	if m.state == StateUninitialized {
		return nil, ErrUninitialized
	}
	var buf bytes.Buffer
	params := m.Parameters()
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(params))); err != nil {
		return nil, err
	}
	for _, p := range params {
		blob, err := p.Value.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", p.Name, err)
		}
		if err := writeChunk(&buf, []byte(p.Name)); err != nil {
			return nil, err
		}
		if err := writeChunk(&buf, blob); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores parameters written by MarshalBinary. Shapes must
// match the model; values are restored bit for bit and no constraint is
// applied.
func (m *ERModel) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read parameter count: %w", err)
	}

	byName := make(map[string]*mat.Dense, n)
	for i := uint32(0); i < n; i++ {
		name, err := readChunk(r)
		if err != nil {
			return fmt.Errorf("read parameter name: %w", err)
		}
		blob, err := readChunk(r)
		if err != nil {
			return fmt.Errorf("read parameter %s: %w", name, err)
		}
		var d mat.Dense
		if err := d.UnmarshalBinary(blob); err != nil {
			return fmt.Errorf("decode parameter %s: %w", name, err)
		}
		byName[string(name)] = &d
	}

	params := m.Parameters()
	for _, p := range params {
		d, ok := byName[p.Name]
		if !ok {
			return fmt.Errorf("%w: missing parameter %s", ErrShapeMismatch, p.Name)
		}
		wr, wc := p.Value.Dims()
		if gr, gc := d.Dims(); gr != wr || gc != wc {
			return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrShapeMismatch, p.Name, gr, gc, wr, wc)
		}
	}
	for _, p := range params {
		p.Value.Copy(byName[p.Name])
		p.Grad.Zero()
	}
	m.resetScored()
	m.state = StateInitialized
	return nil
}

func writeChunk(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readChunk(r *bytes.Reader) ([]byte, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	_, err := io.ReadFull(r, b)
	return b, err
}
