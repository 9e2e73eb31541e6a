package store

import (
	"bytes"
	"cmp"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/xhad/kbase/internal/models"
	"github.com/xhad/kbase/internal/types"
)

// ErrCollectionNotFound is returned for operations on a collection that does
// not exist.
var ErrCollectionNotFound = errors.New("collection not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	// Path is the directory holding the sqlite database file.
	Path        string
	DatabaseURL string
	// VectorDim fixes the pgvector column width. Zero leaves it unconstrained.
	VectorDim int
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (types.VectorStore, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return NewSQLite(opts.Path)
	case DriverPostgres:
		return NewPGVector(ctx, PGVectorConfig{ConnString: opts.DatabaseURL, VectorDim: opts.VectorDim})
	case DriverMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}

// NormalizeMetadata reduces metadata to the scalar kinds every backend can
// round-trip: string, bool, int and float64. Anything else is stored as its
// printed form.
func NormalizeMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		switch v := v.(type) {
		case nil:
			continue
		case string, bool, int:
			out[k] = v
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				out[k] = fmt.Sprint(v)
			} else {
				out[k] = v
			}
		case int8:
			out[k] = int(v)
		case int16:
			out[k] = int(v)
		case int32:
			out[k] = int(v)
		case int64:
			out[k] = int(v)
		case uint:
			out[k] = unsigned(uint64(v))
		case uint8:
			out[k] = int(v)
		case uint16:
			out[k] = int(v)
		case uint32:
			out[k] = unsigned(uint64(v))
		case uint64:
			out[k] = unsigned(v)
		case float32:
			out[k] = float64(v)
		case json.Number:
			out[k] = number(v)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// unsigned keeps values that do not fit an int as their decimal string.
func unsigned(v uint64) any {
	if v > math.MaxInt {
		return strconv.FormatUint(v, 10)
	}
	return int(v)
}

// number decodes a JSON number. Only literals with a fraction or exponent
// are floats, so 2.0 and 2 read back as different kinds.
func number(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 0); err == nil {
			return int(i)
		}
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return s
}

func encodeMetadata(meta map[string]any) ([]byte, error) {
	norm := NormalizeMetadata(meta)
	for k, v := range norm {
		if f, ok := v.(float64); ok {
			norm[k] = floatLiteral(f)
		}
	}
	return json.Marshal(norm)
}

// floatLiteral renders f so that it always decodes as a float.
func floatLiteral(f float64) json.Number {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}

func decodeMetadata(data []byte) (map[string]any, error) {
	meta := map[string]any{}
	if len(data) == 0 {
		return meta, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return NormalizeMetadata(meta), nil
}

// encodeVector packs a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector of %d bytes", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}

func l2(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

func sourceOf(meta map[string]any) string {
	s, _ := meta["source"].(string)
	return s
}

// nearest orders hits by increasing distance, keeping insertion order for
// ties, and returns at most limit of them.
func nearest(hits []models.RetrievedChunk, limit int) []models.RetrievedChunk {
	slices.SortStableFunc(hits, func(a, b models.RetrievedChunk) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
