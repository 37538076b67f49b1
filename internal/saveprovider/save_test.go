package saveprovider

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

func TestReadVarshort(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int
	}{
		{"un octet", []byte{0x05}, 5},
		{"borne basse deux octets", []byte{0x80, 0x01}, 0x80},
		{"deux octets", []byte{0xAC, 0x02}, 0x12C},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newByteReader(tt.data)
			v, err := r.readVarshort()
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}

	r := newByteReader([]byte{0x80})
	_, err := r.readVarshort()
	require.Error(t, err)
	assert.Equal(t, apperr.KindDecrypt, apperr.From(err).Kind)
}

func TestReadString(t *testing.T) {
	data := append([]byte{0x06}, []byte("song.A")...)
	r := newByteReader(data)
	s, err := r.readString(0)
	require.NoError(t, err)
	assert.Equal(t, "song.A", s)
	assert.Zero(t, r.remain())

	// trim retire les octets de fin sans décaler le curseur
	data = append([]byte{0x07}, []byte("song.A\x00")...)
	r = newByteReader(data)
	s, err = r.readString(1)
	require.NoError(t, err)
	assert.Equal(t, "song.A", s)
	assert.Zero(t, r.remain())

	r = newByteReader([]byte{0x10, 'a'})
	_, err = r.readString(0)
	require.Error(t, err)
}

func TestReadFixedWidth(t *testing.T) {
	buf := make([]byte, 11)
	buf[0] = 7
	binary.LittleEndian.PutUint16(buf[1:], 513)
	binary.LittleEndian.PutUint32(buf[3:], 1000000)
	binary.LittleEndian.PutUint32(buf[7:], math.Float32bits(99.5))

	r := newByteReader(buf)
	u8, err := r.readU8()
	require.NoError(t, err)
	assert.EqualValues(t, 7, u8)

	u16, err := r.readU16LE()
	require.NoError(t, err)
	assert.EqualValues(t, 513, u16)

	u32, err := r.readU32LE()
	require.NoError(t, err)
	assert.EqualValues(t, 1000000, u32)

	f32, err := r.readF32LE()
	require.NoError(t, err)
	assert.InDelta(t, 99.5, f32, 1e-6)

	_, err = r.readU32LE()
	require.Error(t, err)
}

var (
	testKey = []byte("0123456789abcdef")
	testIV  = []byte("fedcba9876543210")
)

func encryptEntry(t *testing.T, plaintext []byte, prefix byte) []byte {
	t.Helper()
	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(append([]byte{}, plaintext...), bytes.Repeat([]byte{byte(pad)}, pad)...)
	block, err := aes.NewCipher(testKey)
	require.NoError(t, err)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, testIV).CryptBlocks(ct, padded)
	return append([]byte{prefix}, ct...)
}

func TestDecryptEntryRoundTrip(t *testing.T) {
	plaintext := []byte("contenu de sauvegarde")
	entry := encryptEntry(t, plaintext, 0x03)

	out, err := DecryptEntry(entry, testKey, testIV)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.EqualValues(t, 0x03, out[0])
	assert.Equal(t, plaintext, out[1:])
}

func TestDecryptEntryErrors(t *testing.T) {
	t.Run("entree vide", func(t *testing.T) {
		_, err := DecryptEntry(nil, testKey, testIV)
		require.Error(t, err)
		assert.Equal(t, apperr.KindInvalidHeader, apperr.From(err).Kind)
	})

	t.Run("longueur non alignee", func(t *testing.T) {
		_, err := DecryptEntry([]byte{0x01, 0xAA, 0xBB}, testKey, testIV)
		require.Error(t, err)
		assert.Equal(t, apperr.KindDecrypt, apperr.From(err).Kind)
	})

	t.Run("bourrage incoherent", func(t *testing.T) {
		// Le dernier octet annonce un bourrage de 2 mais l'avant-dernier vaut 9
		padded := append([]byte("0123456789abcd"), 9, 2)
		block, err := aes.NewCipher(testKey)
		require.NoError(t, err)
		ct := make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, testIV).CryptBlocks(ct, padded)

		_, err = DecryptEntry(append([]byte{0x01}, ct...), testKey, testIV)
		require.Error(t, err)
		assert.Equal(t, apperr.KindInvalidPadding, apperr.From(err).Kind)
	})
}

func TestStripPKCS7(t *testing.T) {
	out, err := stripPKCS7([]byte{'a', 'b', 2, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b'}, out)

	_, err = stripPKCS7([]byte{'a', 'b', 0})
	require.Error(t, err)

	_, err = stripPKCS7([]byte{'a', 2, 3})
	require.Error(t, err)

	_, err = stripPKCS7([]byte{17})
	require.Error(t, err)
}

func varshort(v int) []byte {
	if v < 0x80 {
		return []byte{byte(v)}
	}
	return []byte{byte(v&0x7F | 0x80), byte(v >> 7)}
}

func songEntry(id string, payload []byte) []byte {
	out := varshort(len(id))
	out = append(out, id...)
	out = append(out, varshort(len(payload))...)
	return append(out, payload...)
}

func recordPayload(bitmap byte, records ...[3]interface{}) []byte {
	out := []byte{bitmap}
	for _, r := range records {
		buf := make([]byte, 9)
		binary.LittleEndian.PutUint32(buf, r[0].(uint32))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(r[1].(float32)))
		buf[8] = r[2].(byte)
		out = append(out, buf...)
	}
	return out
}

func TestParseGameRecord(t *testing.T) {
	// IN seul, full combo + phi
	payloadA := recordPayload(1<<models.DifficultyIN,
		[3]interface{}{uint32(1000000), float32(100.0), byte(flagFullCombo | flagPhi)})
	// EZ et HD
	payloadB := recordPayload(1<<models.DifficultyEZ|1<<models.DifficultyHD,
		[3]interface{}{uint32(950000), float32(97.25), byte(0)},
		[3]interface{}{uint32(980000), float32(98.5), byte(flagFullCombo)})

	data := []byte{0x01}
	data = append(data, songEntry("song.A.0", payloadA)...)
	data = append(data, songEntry("song.B.0", payloadB)...)

	out, err := ParseGameRecord(data)
	require.NoError(t, err)
	require.Len(t, out, 2)

	a := out["song.A.0"]
	require.NotNil(t, a[models.DifficultyIN])
	assert.InDelta(t, 100.0, a[models.DifficultyIN].Accuracy, 1e-6)
	assert.InDelta(t, 1000000, a[models.DifficultyIN].Score, 1e-9)
	assert.True(t, a[models.DifficultyIN].IsFullCombo)
	assert.True(t, a[models.DifficultyIN].IsPhi)
	assert.Nil(t, a[models.DifficultyEZ])

	b := out["song.B.0"]
	require.NotNil(t, b[models.DifficultyEZ])
	assert.InDelta(t, 97.25, b[models.DifficultyEZ].Accuracy, 1e-6)
	assert.False(t, b[models.DifficultyEZ].IsPhi)
	require.NotNil(t, b[models.DifficultyHD])
	assert.True(t, b[models.DifficultyHD].IsFullCombo)
}

func TestParseGameRecordTolerance(t *testing.T) {
	t.Run("vide", func(t *testing.T) {
		out, err := ParseGameRecord(nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("payload invalide ignore le morceau", func(t *testing.T) {
		// Le bitmap annonce un record mais le payload s'arrête là
		bad := songEntry("song.casse", []byte{1 << models.DifficultyIN})
		good := songEntry("song.ok", recordPayload(1<<models.DifficultyEZ,
			[3]interface{}{uint32(900000), float32(95.0), byte(0)}))

		data := append([]byte{0x01}, bad...)
		data = append(data, good...)

		out, err := ParseGameRecord(data)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Contains(t, out, "song.ok")
	})

	t.Run("troncature arrete sans erreur", func(t *testing.T) {
		entry := songEntry("song.A", recordPayload(1<<models.DifficultyEZ,
			[3]interface{}{uint32(900000), float32(95.0), byte(0)}))
		data := append([]byte{0x01}, entry...)
		data = data[:len(data)-3]

		out, err := ParseGameRecord(data)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}
