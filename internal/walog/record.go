package walog

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/juju/errors"
)

// OpKind tags one write-ahead op record, per spec.md's WAL record schema.
type OpKind byte

const (
	OpNewVertex OpKind = iota + 1
	OpPutVertex
	OpDelVertex
	OpPutEdge
	OpDelEdge
)

// Op is one op record within a transaction's WAL frame.
type Op interface {
	Kind() OpKind
}

// NewVertexOp records new_vertex(V).
type NewVertexOp struct {
	VertexID uint64
}

func (NewVertexOp) Kind() OpKind { return OpNewVertex }

// PutVertexOp records put_vertex(V, data).
type PutVertexOp struct {
	VertexID uint64
	Data     []byte
}

func (PutVertexOp) Kind() OpKind { return OpPutVertex }

// DelVertexOp records del_vertex(V, recycle).
type DelVertexOp struct {
	VertexID uint64
	Recycle  bool
}

func (DelVertexOp) Kind() OpKind { return OpDelVertex }

// PutEdgeOp records put_edge / put_edge_with_version. Version carries the
// caller-supplied version for the versioned form, or the unversioned
// sentinel (see txn.UnversionedEdgeVersion) otherwise.
type PutEdgeOp struct {
	Src         uint64
	Label       int32
	Dst         uint64
	ForceInsert bool
	Version     int64
	Data        []byte
}

func (PutEdgeOp) Kind() OpKind { return OpPutEdge }

// DelEdgeOp records del_edge(src, label, dst).
type DelEdgeOp struct {
	Src   uint64
	Label int32
	Dst   uint64
}

func (DelEdgeOp) Kind() OpKind { return OpDelEdge }

// EncodeTxn serializes one committed transaction's op log as an
// op-count-prefixed frame, ready to hand to WAL.Append.
func EncodeTxn(ops []Op) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(ops)))
	for _, op := range ops {
		buf.WriteByte(byte(op.Kind()))
		switch o := op.(type) {
		case NewVertexOp:
			writeUint64(&buf, o.VertexID)
		case PutVertexOp:
			writeUint64(&buf, o.VertexID)
			writeBytes(&buf, o.Data)
		case DelVertexOp:
			writeUint64(&buf, o.VertexID)
			writeBool(&buf, o.Recycle)
		case PutEdgeOp:
			writeUint64(&buf, o.Src)
			writeInt32(&buf, o.Label)
			writeUint64(&buf, o.Dst)
			writeBool(&buf, o.ForceInsert)
			writeInt64(&buf, o.Version)
			writeBytes(&buf, o.Data)
		case DelEdgeOp:
			writeUint64(&buf, o.Src)
			writeInt32(&buf, o.Label)
			writeUint64(&buf, o.Dst)
		default:
			panic("walog: unknown op type")
		}
	}
	return buf.Bytes()
}

// DecodeTxn parses a frame produced by EncodeTxn back into its op records,
// in original order.
func DecodeTxn(payload []byte) ([]Op, error) {
	r := bytes.NewReader(payload)
	count, err := readUint32(r)
	if err != nil {
		return nil, errors.Annotate(err, "walog: decode op count")
	}

	ops := make([]Op, 0, count)
	for i := uint32(0); i < count; i++ {
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, errors.Annotatef(err, "walog: decode op %d kind", i)
		}

		switch OpKind(kindByte) {
		case OpNewVertex:
			id, err := readUint64(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode NewVertex op %d", i)
			}
			ops = append(ops, NewVertexOp{VertexID: id})

		case OpPutVertex:
			id, err := readUint64(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode PutVertex op %d", i)
			}
			data, err := readBytes(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode PutVertex op %d data", i)
			}
			ops = append(ops, PutVertexOp{VertexID: id, Data: data})

		case OpDelVertex:
			id, err := readUint64(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode DelVertex op %d", i)
			}
			recycle, err := readBool(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode DelVertex op %d flag", i)
			}
			ops = append(ops, DelVertexOp{VertexID: id, Recycle: recycle})

		case OpPutEdge:
			src, err := readUint64(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode PutEdge op %d src", i)
			}
			label, err := readInt32(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode PutEdge op %d label", i)
			}
			dst, err := readUint64(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode PutEdge op %d dst", i)
			}
			force, err := readBool(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode PutEdge op %d flag", i)
			}
			version, err := readInt64(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode PutEdge op %d version", i)
			}
			data, err := readBytes(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode PutEdge op %d data", i)
			}
			ops = append(ops, PutEdgeOp{Src: src, Label: label, Dst: dst, ForceInsert: force, Version: version, Data: data})

		case OpDelEdge:
			src, err := readUint64(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode DelEdge op %d src", i)
			}
			label, err := readInt32(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode DelEdge op %d label", i)
			}
			dst, err := readUint64(r)
			if err != nil {
				return nil, errors.Annotatef(err, "walog: decode DelEdge op %d dst", i)
			}
			ops = append(ops, DelEdgeOp{Src: src, Label: label, Dst: dst})

		default:
			return nil, errors.Errorf("walog: unknown op kind %d at index %d", kindByte, i)
		}
	}
	return ops, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeInt32(buf *bytes.Buffer, v int32) { writeUint32(buf, uint32(v)) }
func writeInt64(buf *bytes.Buffer, v int64) { writeUint64(buf, uint64(v)) }

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func writeBytes(buf *bytes.Buffer, data []byte) {
	writeUint32(buf, uint32(len(data)))
	buf.Write(data)
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readInt32(r io.Reader) (int32, error) {
	v, err := readUint32(r)
	return int32(v), err
}

func readInt64(r io.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
