package saveprovider

import (
	"encoding/binary"
	"math"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

// byteReader est un curseur séquentiel sur un blob binaire de sauvegarde.
type byteReader struct {
	data []byte
	off  int
}

func newByteReader(data []byte) *byteReader {
	return &byteReader{data: data}
}

func (r *byteReader) remain() int { return len(r.data) - r.off }

func (r *byteReader) readU8() (uint8, error) {
	if r.remain() < 1 {
		return 0, apperr.New(apperr.KindDecrypt, "unexpected end of data")
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *byteReader) readU16LE() (uint16, error) {
	if r.remain() < 2 {
		return 0, apperr.New(apperr.KindDecrypt, "unexpected end of data")
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *byteReader) readU32LE() (uint32, error) {
	if r.remain() < 4 {
		return 0, apperr.New(apperr.KindDecrypt, "unexpected end of data")
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *byteReader) readF32LE() (float32, error) {
	v, err := r.readU32LE()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// readVarshort lit l'entier compact du format de sauvegarde: un octet si
// < 0x80, sinon deux octets avec le bit haut comme marqueur de continuation.
func (r *byteReader) readVarshort() (int, error) {
	b0, err := r.readU8()
	if err != nil {
		return 0, err
	}
	if b0 < 0x80 {
		return int(b0), nil
	}
	b1, err := r.readU8()
	if err != nil {
		return 0, err
	}
	return ((int(b0) & 0x7F) ^ (int(b1) << 7)) & 0xFFFF, nil
}

// readString lit une chaîne préfixée varshort; trim retire les octets de
// fin que certains encodages de clés traînent.
func (r *byteReader) readString(trim int) (string, error) {
	length, err := r.readVarshort()
	if err != nil {
		return "", err
	}
	if r.remain() < length || length < trim {
		return "", apperr.New(apperr.KindDecrypt, "unexpected end of string data")
	}
	s := string(r.data[r.off : r.off+length-trim])
	r.off += length
	return s, nil
}
