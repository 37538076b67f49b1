package saveprovider

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

// DecryptEntry déchiffre une entrée de sauvegarde en AES-128-CBC PKCS#7.
// Le premier octet est un préfixe de version qui ne participe pas au
// chiffrement: il est conservé en tête du résultat pour les parseurs.
func DecryptEntry(data, key, iv []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindInvalidHeader, "empty entry")
	}
	prefix := data[0]
	ciphertext := data[1:]

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, apperr.Newf(apperr.KindDecrypt, "ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDecrypt, "init cipher", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = stripPKCS7(plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+len(plaintext))
	out = append(out, prefix)
	out = append(out, plaintext...)
	return out, nil
}

func stripPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindInvalidPadding, "empty plaintext")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(data) {
		return nil, apperr.Newf(apperr.KindInvalidPadding, "invalid padding length %d", pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, apperr.New(apperr.KindInvalidPadding, "inconsistent padding bytes")
		}
	}
	return data[:len(data)-pad], nil
}
