package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/nugallery/pkg/dag"
)

// MarshalGraph converts a DAG to indented JSON bytes.
func MarshalGraph(g *dag.DAG) ([]byte, error) {
	data, err := json.MarshalIndent(FromDAG(g), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return data, nil
}

// WriteGraph writes a DAG as indented JSON to w.
func WriteGraph(g *dag.DAG, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(FromDAG(g)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteGraphFile writes a DAG to a JSON file, creating or truncating it.
func WriteGraphFile(g *dag.DAG, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteGraph(g, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadGraph decodes a JSON graph from r into a DAG.
func ReadGraph(r io.Reader) (*dag.DAG, error) {
	var data Graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return ToDAG(data)
}
