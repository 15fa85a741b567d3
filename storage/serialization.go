// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/litreview/core"
)

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, ChunkMUS.Size(*chunk))
	ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk: %w", ErrSerializationFailed, err)
	}
	return &chunk, nil
}

// MarshalAuditRecord serializes an AuditRecord to bytes.
func MarshalAuditRecord(record *core.AuditRecord) []byte {
	buf := make([]byte, AuditRecordMUS.Size(*record))
	AuditRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalAuditRecord deserializes an AuditRecord from bytes.
func UnmarshalAuditRecord(data []byte) (*core.AuditRecord, error) {
	record, _, err := AuditRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: audit record: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalString serializes an index value holding a chunk id.
func MarshalString(s string) []byte {
	buf := make([]byte, ord.String.Size(s))
	ord.String.Marshal(s, buf)
	return buf
}

// UnmarshalString deserializes an index value holding a chunk id.
func UnmarshalString(data []byte) (string, error) {
	s, _, err := ord.String.Unmarshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: string: %w", ErrSerializationFailed, err)
	}
	return s, nil
}

// ChunkMUS is the MUS serializer for core.Chunk.
var ChunkMUS = chunkMUS{}

type chunkMUS struct{}

func (chunkMUS) Marshal(v core.Chunk, bs []byte) (n int) {
	w := writer{bs: bs}
	w.str(v.ID)
	w.str(v.Text)
	w.metadata(v.Metadata)
	w.vector(v.Vector)
	w.uint64(uint64(v.Digest))
	w.uint64(v.Ordinal)
	w.time(v.InsertedAt)
	w.time(v.UpdatedAt)
	return w.n
}

func (chunkMUS) Unmarshal(bs []byte) (v core.Chunk, n int, err error) {
	r := reader{bs: bs}
	v.ID = r.str()
	v.Text = r.str()
	v.Metadata = r.metadata()
	v.Vector = r.vector()
	v.Digest = core.Digest(r.uint64())
	v.Ordinal = r.uint64()
	v.InsertedAt = r.time()
	v.UpdatedAt = r.time()
	return v, r.n, r.err
}

func (chunkMUS) Size(v core.Chunk) (size int) {
	var s sizer
	s.str(v.ID)
	s.str(v.Text)
	s.metadata(v.Metadata)
	s.vector(v.Vector)
	s.uint64(uint64(v.Digest))
	s.uint64(v.Ordinal)
	s.time(v.InsertedAt)
	s.time(v.UpdatedAt)
	return s.n
}

func (s chunkMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// AuditRecordMUS is the MUS serializer for core.AuditRecord.
var AuditRecordMUS = auditRecordMUS{}

type auditRecordMUS struct{}

func (auditRecordMUS) Marshal(v core.AuditRecord, bs []byte) (n int) {
	w := writer{bs: bs}
	w.str(v.RunID)
	w.str(v.Topic)
	w.int(v.Iteration)
	w.float(v.Score)
	w.boolean(v.Passed)
	w.boolean(v.Fallback)
	w.str(v.Feedback)
	w.str(string(v.Decision))
	w.int(v.ArtifactLength)
	w.str(v.Error)
	w.time(v.RecordedAt)
	return w.n
}

func (auditRecordMUS) Unmarshal(bs []byte) (v core.AuditRecord, n int, err error) {
	r := reader{bs: bs}
	v.RunID = r.str()
	v.Topic = r.str()
	v.Iteration = r.int()
	v.Score = r.float()
	v.Passed = r.boolean()
	v.Fallback = r.boolean()
	v.Feedback = r.str()
	v.Decision = core.Decision(r.str())
	v.ArtifactLength = r.int()
	v.Error = r.str()
	v.RecordedAt = r.time()
	return v, r.n, r.err
}

func (auditRecordMUS) Size(v core.AuditRecord) (size int) {
	var s sizer
	s.str(v.RunID)
	s.str(v.Topic)
	s.int(v.Iteration)
	s.float(v.Score)
	s.boolean(v.Passed)
	s.boolean(v.Fallback)
	s.str(v.Feedback)
	s.str(string(v.Decision))
	s.int(v.ArtifactLength)
	s.str(v.Error)
	s.time(v.RecordedAt)
	return s.n
}

func (s auditRecordMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// Field codecs shared by the record serializers. Floats use fixed-width
// little-endian encoding; times are Unix microseconds with 0 for the zero time.

const (
	float32Size = 4
	float64Size = 8
)

func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

type sizer struct {
	n int
}

func (s *sizer) str(v string)     { s.n += ord.String.Size(v) }
func (s *sizer) int(v int)        { s.n += varint.Int.Size(v) }
func (s *sizer) uint64(v uint64)  { s.n += varint.Uint64.Size(v) }
func (s *sizer) boolean(v bool)   { s.n += ord.Bool.Size(v) }
func (s *sizer) float(float64)    { s.n += float64Size }
func (s *sizer) time(v time.Time) { s.n += varint.Int64.Size(unixMicro(v)) }

func (s *sizer) vector(v []float32) {
	s.int(len(v))
	s.n += len(v) * float32Size
}

func (s *sizer) stringMap(m map[string]string) {
	s.int(len(m))
	for k, v := range m {
		s.str(k)
		s.str(v)
	}
}

func (s *sizer) metadata(m core.ChunkMetadata) {
	s.str(m.Title)
	s.str(m.Authors)
	s.int(m.Year)
	s.str(m.Source)
	s.str(m.BaseID)
	s.int(m.ChunkIndex)
	s.int(m.TotalChunks)
	s.str(m.Journal)
	s.str(m.DOI)
	s.str(m.ArxivID)
	s.stringMap(m.Extra)
}

type writer struct {
	bs []byte
	n  int
}

func (w *writer) str(v string)    { w.n += ord.String.Marshal(v, w.bs[w.n:]) }
func (w *writer) int(v int)       { w.n += varint.Int.Marshal(v, w.bs[w.n:]) }
func (w *writer) uint64(v uint64) { w.n += varint.Uint64.Marshal(v, w.bs[w.n:]) }
func (w *writer) boolean(v bool)  { w.n += ord.Bool.Marshal(v, w.bs[w.n:]) }

func (w *writer) float(v float64) {
	binary.LittleEndian.PutUint64(w.bs[w.n:], math.Float64bits(v))
	w.n += float64Size
}

func (w *writer) time(v time.Time) {
	w.n += varint.Int64.Marshal(unixMicro(v), w.bs[w.n:])
}

func (w *writer) vector(v []float32) {
	w.int(len(v))
	for _, f := range v {
		binary.LittleEndian.PutUint32(w.bs[w.n:], math.Float32bits(f))
		w.n += float32Size
	}
}

func (w *writer) stringMap(m map[string]string) {
	w.int(len(m))
	for k, v := range m {
		w.str(k)
		w.str(v)
	}
}

func (w *writer) metadata(m core.ChunkMetadata) {
	w.str(m.Title)
	w.str(m.Authors)
	w.int(m.Year)
	w.str(m.Source)
	w.str(m.BaseID)
	w.int(m.ChunkIndex)
	w.int(m.TotalChunks)
	w.str(m.Journal)
	w.str(m.DOI)
	w.str(m.ArxivID)
	w.stringMap(m.Extra)
}

// reader decodes fields in sequence. The first error sticks and turns
// every later read into a no-op.
type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) str() (v string) {
	if r.err != nil {
		return
	}
	var n int
	v, n, r.err = ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	return
}

func (r *reader) int() (v int) {
	if r.err != nil {
		return
	}
	var n int
	v, n, r.err = varint.Int.Unmarshal(r.bs[r.n:])
	r.n += n
	return
}

func (r *reader) uint64() (v uint64) {
	if r.err != nil {
		return
	}
	var n int
	v, n, r.err = varint.Uint64.Unmarshal(r.bs[r.n:])
	r.n += n
	return
}

func (r *reader) boolean() (v bool) {
	if r.err != nil {
		return
	}
	var n int
	v, n, r.err = ord.Bool.Unmarshal(r.bs[r.n:])
	r.n += n
	return
}

func (r *reader) float() float64 {
	if r.err != nil {
		return 0
	}
	if len(r.bs)-r.n < float64Size {
		r.err = ErrTruncatedData
		return 0
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.bs[r.n:]))
	r.n += float64Size
	return v
}

func (r *reader) time() time.Time {
	if r.err != nil {
		return time.Time{}
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	if err != nil || v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func (r *reader) vector() []float32 {
	length := r.int()
	if r.err != nil || length == 0 {
		return nil
	}
	if length < 0 || len(r.bs)-r.n < length*float32Size {
		r.err = ErrTruncatedData
		return nil
	}
	v := make([]float32, length)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(r.bs[r.n:]))
		r.n += float32Size
	}
	return v
}

func (r *reader) stringMap() map[string]string {
	length := r.int()
	if r.err != nil || length == 0 {
		return nil
	}
	if length < 0 || length > len(r.bs)-r.n {
		r.err = ErrTruncatedData
		return nil
	}
	m := make(map[string]string, length)
	for i := 0; i < length && r.err == nil; i++ {
		k := r.str()
		m[k] = r.str()
	}
	return m
}

func (r *reader) metadata() (m core.ChunkMetadata) {
	m.Title = r.str()
	m.Authors = r.str()
	m.Year = r.int()
	m.Source = r.str()
	m.BaseID = r.str()
	m.ChunkIndex = r.int()
	m.TotalChunks = r.int()
	m.Journal = r.str()
	m.DOI = r.str()
	m.ArxivID = r.str()
	m.Extra = r.stringMap()
	return m
}
