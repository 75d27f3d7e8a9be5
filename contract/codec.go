package contract

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pifp_protocol/sdk"
)

var errShortRead = errors.New("unexpected EOF")

type binWriter struct {
	buf bytes.Buffer
}

// newWriter spins up a fresh writer so we dont leak old bytes between encodes.
func newWriter() *binWriter { return &binWriter{} }

// bytes returns the accumulated buffer, tiny helper but keeps code tidy.
func (w *binWriter) bytes() []byte { return w.buf.Bytes() }

// writeUint64 writes big endian numbers so tooling can read them without guessing.
func (w *binWriter) writeUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// writeVarUint uses varints to keep counts and lens compact.
func (w *binWriter) writeVarUint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf.Write(tmp[:n])
}

// writeString prefixes its length then dumps UTF-8 directly.
func (w *binWriter) writeString(s string) {
	w.writeVarUint(uint64(len(s)))
	w.buf.WriteString(s)
}

func (w *binWriter) writeAddress(a sdk.Address) {
	w.writeString(a.String())
}

// writeAmount stores the minimal big endian form behind a length byte, zero is a single 0x00.
func (w *binWriter) writeAmount(v *uint256.Int) {
	if v == nil {
		w.buf.WriteByte(0)
		return
	}
	b := v.Bytes()
	w.buf.WriteByte(byte(len(b)))
	w.buf.Write(b)
}

func (w *binWriter) writeHash(h common.Hash) {
	w.buf.Write(h[:])
}

type binReader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *binReader {
	return &binReader{data: data}
}

func (r *binReader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errShortRead
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *binReader) readUint64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, errShortRead
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *binReader) readVarUint() (uint64, error) {
	val, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, errors.New("invalid varuint")
	}
	r.pos += n
	return val, nil
}

func (r *binReader) readString() (string, error) {
	l, err := r.readVarUint()
	if err != nil {
		return "", err
	}
	if l > uint64(len(r.data)-r.pos) {
		return "", errShortRead
	}
	s := string(r.data[r.pos : r.pos+int(l)])
	r.pos += int(l)
	return s, nil
}

func (r *binReader) readAddress() (sdk.Address, error) {
	s, err := r.readString()
	return sdk.Address(s), err
}

func (r *binReader) readAmount() (*uint256.Int, error) {
	l, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if l > 32 {
		return nil, errors.New("amount wider than 256 bits")
	}
	if r.pos+int(l) > len(r.data) {
		return nil, errShortRead
	}
	v := new(uint256.Int).SetBytes(r.data[r.pos : r.pos+int(l)])
	r.pos += int(l)
	return v, nil
}

func (r *binReader) readHash() (common.Hash, error) {
	var h common.Hash
	if r.pos+common.HashLength > len(r.data) {
		return h, errShortRead
	}
	copy(h[:], r.data[r.pos:r.pos+common.HashLength])
	r.pos += common.HashLength
	return h, nil
}

// done rejects trailing bytes so a wrong record type never decodes by accident.
func (r *binReader) done() error {
	if r.pos != len(r.data) {
		return errors.New("trailing bytes")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Records
// -----------------------------------------------------------------------------

// EncodeProjectConfig packs the immutable half of a project.
func EncodeProjectConfig(cfg *ProjectConfig) []byte {
	w := newWriter()
	w.writeUint64(cfg.ID)
	w.writeAddress(cfg.Creator)
	w.writeVarUint(uint64(len(cfg.AcceptedTokens)))
	for _, t := range cfg.AcceptedTokens {
		w.writeAddress(t)
	}
	w.writeAmount(cfg.Goal)
	w.writeHash(cfg.ProofHash)
	w.writeUint64(cfg.Deadline)
	return w.bytes()
}

func DecodeProjectConfig(data []byte) (*ProjectConfig, error) {
	r := newReader(data)
	var cfg ProjectConfig
	var err error
	if cfg.ID, err = r.readUint64(); err != nil {
		return nil, err
	}
	if cfg.Creator, err = r.readAddress(); err != nil {
		return nil, err
	}
	n, err := r.readVarUint()
	if err != nil {
		return nil, err
	}
	if n > MaxAcceptedTokens {
		return nil, errors.New("too many tokens in stored config")
	}
	cfg.AcceptedTokens = make([]sdk.Address, 0, n)
	for i := uint64(0); i < n; i++ {
		t, err := r.readAddress()
		if err != nil {
			return nil, err
		}
		cfg.AcceptedTokens = append(cfg.AcceptedTokens, t)
	}
	if cfg.Goal, err = r.readAmount(); err != nil {
		return nil, err
	}
	if cfg.ProofHash, err = r.readHash(); err != nil {
		return nil, err
	}
	if cfg.Deadline, err = r.readUint64(); err != nil {
		return nil, err
	}
	return &cfg, r.done()
}

// EncodeProjectState is two fields on purpose, it is rewritten on every deposit.
func EncodeProjectState(st *ProjectState) []byte {
	w := newWriter()
	w.buf.WriteByte(byte(st.Status))
	w.writeVarUint(uint64(st.DonationCount))
	return w.bytes()
}

func DecodeProjectState(data []byte) (*ProjectState, error) {
	r := newReader(data)
	status, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if status > byte(StatusExpired) {
		return nil, errors.New("unknown project status")
	}
	count, err := r.readVarUint()
	if err != nil {
		return nil, err
	}
	if count > uint64(^uint32(0)) {
		return nil, errors.New("donation count out of range")
	}
	return &ProjectState{Status: ProjectStatus(status), DonationCount: uint32(count)}, r.done()
}

func encodeAmount(v *uint256.Int) []byte {
	w := newWriter()
	w.writeAmount(v)
	return w.bytes()
}

func decodeAmount(data []byte) (*uint256.Int, error) {
	r := newReader(data)
	v, err := r.readAmount()
	if err != nil {
		return nil, err
	}
	return v, r.done()
}
