package store

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/nerrad567/gridlink-core/internal/resource"
)

// snapshotVersion is written into every snapshot and checked on restore.
const snapshotVersion = 1

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2), so an
// unchanged store always produces identical snapshot bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// record is one keyed element inside a snapshot.
type record struct {
	Key  int             `cbor:"k"`
	Data cbor.RawMessage `cbor:"d"`
}

// storeSnapshot is the encoded form of a Store.
type storeSnapshot struct {
	Version int           `cbor:"v"`
	Kind    resource.Kind `cbor:"kind"`
	Next    int           `cbor:"next"`
	Records []record      `cbor:"records"`
}

// listSnapshot is the encoded form of a ListStore.
type listSnapshot struct {
	Version int             `cbor:"v"`
	Lists   []listContainer `cbor:"lists"`
}

type listContainer struct {
	URI     string        `cbor:"uri"`
	Kind    resource.Kind `cbor:"kind"`
	Next    int           `cbor:"next"`
	Records []record      `cbor:"records"`
}

// indexSnapshot is the encoded form of an Index.
type indexSnapshot struct {
	Version int           `cbor:"v"`
	Entries []indexRecord `cbor:"entries"`
}

type indexRecord struct {
	Href string          `cbor:"href"`
	Kind resource.Kind   `cbor:"kind"`
	Data cbor.RawMessage `cbor:"d"`
}

func encodeResource(r resource.Resource) (cbor.RawMessage, error) {
	data, err := encMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding %s %q: %w", r.Kind(), r.GetHref(), err)
	}
	return data, nil
}

func decodeResource(kind resource.Kind, data []byte) (resource.Resource, error) {
	r, err := resource.New(kind)
	if err != nil {
		return nil, err
	}
	if err := decMode.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", kind, err)
	}
	return r, nil
}

func checkVersion(v int) error {
	if v != snapshotVersion {
		return fmt.Errorf("store: unsupported snapshot version %d", v)
	}
	return nil
}

// Clone returns a deep copy of r. Callers edit the copy and write it back
// with Put or Set so the store never observes a half-made change.
func Clone[T resource.Resource](r T) (T, error) {
	var zero T
	data, err := encodeResource(r)
	if err != nil {
		return zero, err
	}
	out, err := decodeResource(r.Kind(), data)
	if err != nil {
		return zero, err
	}
	return resource.As[T](out)
}
