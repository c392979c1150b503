package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
)

// WriteNDJSON writes one JSON object per row, newline-delimited.
func WriteNDJSON(w io.Writer, ds *dataset.Dataset) error {
	enc := json.NewEncoder(w)
	for i := range ds.Rows {
		if err := enc.Encode(&ds.Rows[i]); err != nil {
			return fmt.Errorf("encoding row %d: %w", i, err)
		}
	}
	return nil
}

// WriteNDJSONSnappy writes the NDJSON payload compressed as a single snappy
// block. Decode with snappy.Decode over the whole file.
func WriteNDJSONSnappy(w io.Writer, ds *dataset.Dataset) error {
	var buf bytes.Buffer
	if err := WriteNDJSON(&buf, ds); err != nil {
		return err
	}
	compressed := snappy.Encode(nil, buf.Bytes())
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("write snappy payload: %w", err)
	}
	return nil
}

// NDJSONFile writes the dataset as NDJSON to Path, optionally
// snappy-compressed.
type NDJSONFile struct {
	Path     string
	Compress bool
}

func (s NDJSONFile) Write(ctx context.Context, ds *dataset.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("create ndjson file: %w", err)
	}

	writeFn := WriteNDJSON
	if s.Compress {
		writeFn = WriteNDJSONSnappy
	}
	if err := writeFn(f, ds); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
