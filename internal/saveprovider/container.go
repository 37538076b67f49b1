package saveprovider

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

// Noms d'entrées reconnus dans l'archive de sauvegarde.
var knownEntries = map[string]bool{
	"gameKey":      true,
	"gameProgress": true,
	"gameRecord":   true,
	"user":         true,
	"settings":     true,
}

const maxZipEntries = 5

// Unwrap retire une éventuelle couche de compression (zlib brut ou gzip,
// détectée par nombre magique) et retourne les octets du conteneur ZIP.
// Tout échec de décompression retombe sur les octets bruts.
func Unwrap(data []byte) []byte {
	if len(data) >= 2 {
		// zlib: 0x78 suivi d'un octet de flags valide
		if data[0] == 0x78 {
			if out, err := inflate(zlib.NewReader, data); err == nil {
				return out
			}
		}
		// gzip: 0x1f 0x8b
		if data[0] == 0x1f && data[1] == 0x8b {
			if out, err := inflate(func(r io.Reader) (io.ReadCloser, error) {
				return gzip.NewReader(r)
			}, data); err == nil {
				return out
			}
		}
	}
	return data
}

func inflate(open func(io.Reader) (io.ReadCloser, error), data []byte) ([]byte, error) {
	rc, err := open(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ExtractEntries ouvre le conteneur ZIP et retourne les entrées connues,
// encore chiffrées. Les entrées inconnues sont ignorées.
func ExtractEntries(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindZip, "open save archive", err)
	}
	if len(zr.File) > maxZipEntries {
		return nil, apperr.Newf(apperr.KindZip, "save archive has %d entries, expected at most %d", len(zr.File), maxZipEntries)
	}

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		if !knownEntries[f.Name] {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindZip, "open entry "+f.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindIo, "read entry "+f.Name, err)
		}
		entries[f.Name] = raw
	}
	return entries, nil
}
