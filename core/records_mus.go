package core

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// ErrMalformedRecord is returned when a serialized record declares a length
// that does not fit the remaining bytes.
var ErrMalformedRecord = errors.New("malformed record")

// Serializers for persisted domain types. Each has the mus-go
// Marshal/Unmarshal/Size method set. Timestamps are stored as Unix
// microseconds.
var (
	IDMUS           = idMUS{}
	EmbeddingMUS    = embeddingMUS{}
	ScoresMUS       = scoresMUS{}
	ContextBlockMUS = contextBlockMUS{}
	CheckpointMUS   = checkpointMUS{}
)

type idMUS struct{}

func (s idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (s idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (s idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

type embeddingMUS struct{}

func (s embeddingMUS) Marshal(v Embedding, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(v)), bs)
	for _, x := range v {
		n += raw.Float32.Marshal(x, bs[n:])
	}
	return n
}

func (s embeddingMUS) Unmarshal(bs []byte) (v Embedding, n int, err error) {
	length, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	// four bytes per element
	if length > uint64(len(bs)-n)/4 {
		return nil, n, ErrMalformedRecord
	}
	if length == 0 {
		return nil, n, nil
	}
	v = make(Embedding, length)
	for i := range v {
		x, m, err := raw.Float32.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
		v[i] = x
	}
	return v, n, nil
}

func (s embeddingMUS) Size(v Embedding) (size int) {
	return varint.Uint64.Size(uint64(len(v))) + len(v)*raw.Float32.Size(0)
}

type scoresMUS struct{}

func (s scoresMUS) Marshal(v *Scores, bs []byte) (n int) {
	n = ord.Bool.Marshal(v != nil, bs)
	if v == nil {
		return n
	}
	n += raw.Float64.Marshal(v.Relevance, bs[n:])
	n += raw.Float64.Marshal(v.Superfluous, bs[n:])
	n += raw.Float64.Marshal(v.Noise, bs[n:])
	return n
}

func (s scoresMUS) Unmarshal(bs []byte) (v *Scores, n int, err error) {
	present, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !present {
		return nil, n, err
	}
	var out Scores
	fields := []*float64{&out.Relevance, &out.Superfluous, &out.Noise}
	for _, f := range fields {
		x, m, err := raw.Float64.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
		*f = x
	}
	return &out, n, nil
}

func (s scoresMUS) Size(v *Scores) (size int) {
	size = ord.Bool.Size(v != nil)
	if v != nil {
		size += 3 * raw.Float64.Size(0)
	}
	return size
}

type contextBlockMUS struct{}

func (s contextBlockMUS) Marshal(v ContextBlock, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Contents, bs[n:])
	n += EmbeddingMUS.Marshal(v.Vector, bs[n:])
	n += marshalMetadata(v.Metadata, bs[n:])
	n += ScoresMUS.Marshal(v.Scores, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (s contextBlockMUS) Unmarshal(bs []byte) (v ContextBlock, n int, err error) {
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var m int
	v.Contents, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.Vector, m, err = EmbeddingMUS.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.Metadata, m, err = unmarshalMetadata(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.Scores, m, err = ScoresMUS.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.InsertedAt, m, err = unmarshalTime(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.UpdatedAt, m, err = unmarshalTime(bs[n:])
	n += m
	return
}

func (s contextBlockMUS) Size(v ContextBlock) (size int) {
	return IDMUS.Size(v.Id) +
		ord.String.Size(v.Contents) +
		EmbeddingMUS.Size(v.Vector) +
		sizeMetadata(v.Metadata) +
		ScoresMUS.Size(v.Scores) +
		sizeTime(v.InsertedAt) +
		sizeTime(v.UpdatedAt)
}

type checkpointMUS struct{}

func (s checkpointMUS) Marshal(v Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	n += varint.Uint64.Marshal(uint64(len(v.Data)), bs[n:])
	n += copy(bs[n:], v.Data)
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (s checkpointMUS) Unmarshal(bs []byte) (v Checkpoint, n int, err error) {
	v.Name, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	length, m, err := varint.Uint64.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	if length > uint64(len(bs)-n) {
		err = ErrMalformedRecord
		return
	}
	v.Data = make([]byte, length)
	n += copy(v.Data, bs[n:])
	v.UpdatedAt, m, err = unmarshalTime(bs[n:])
	n += m
	return
}

func (s checkpointMUS) Size(v Checkpoint) (size int) {
	return ord.String.Size(v.Name) +
		varint.Uint64.Size(uint64(len(v.Data))) + len(v.Data) +
		sizeTime(v.UpdatedAt)
}

// Metadata is written with sorted keys so equal maps encode identically.
func marshalMetadata(md map[string]string, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(len(md)), bs)
	for _, k := range slices.Sorted(maps.Keys(md)) {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(md[k], bs[n:])
	}
	return n
}

func unmarshalMetadata(bs []byte) (md map[string]string, n int, err error) {
	length, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	// each entry takes at least two bytes
	if length > uint64(len(bs)-n)/2 {
		return nil, n, ErrMalformedRecord
	}
	if length == 0 {
		return nil, n, nil
	}
	md = make(map[string]string, length)
	for i := uint64(0); i < length; i++ {
		k, m, err := ord.String.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
		val, m, err := ord.String.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
		md[k] = val
	}
	return md, n, nil
}

func sizeMetadata(md map[string]string) (size int) {
	size = varint.Uint64.Size(uint64(len(md)))
	for k, v := range md {
		size += ord.String.Size(k) + ord.String.Size(v)
	}
	return size
}

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}
