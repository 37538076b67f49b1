package saveprovider

import (
	"encoding/base64"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

// nodeType décrit le type d'un champ du format de sauvegarde du jeu.
type nodeType int

const (
	nodeBool nodeType = iota
	nodeU8
	nodeU16
	nodeFloat
	nodeStr
	nodeVarshort5
)

type leafNode struct {
	typ  nodeType
	name string
}

// Tables de champs par version de structure. L'ordre est celui du format
// binaire du jeu et ne doit pas changer.
var gameKeyGroups = [][]leafNode{
	{{nodeU8, "lanotaReadKeys"}},
	{{nodeBool, "camelliaReadKey"}},
}

var gameProgressGroups = [][]leafNode{
	{
		{nodeBool, "isFirstRun"},
		{nodeBool, "legacyChapterFinished"},
		{nodeBool, "alreadyShowCollectionTip"},
		{nodeBool, "alreadyShowAutoUnlockINTip"},
		{nodeStr, "completed"},
		{nodeU8, "songUpdateInfo"},
		{nodeU16, "challengeModeRank"},
		{nodeVarshort5, "money"},
		{nodeU8, "unlockFlagOfSpasmodic"},
		{nodeU8, "unlockFlagOfIgallta"},
		{nodeU8, "unlockFlagOfRrharil"},
		{nodeU8, "flagOfSongRecordKey"},
	},
	{{nodeU8, "randomVersionUnlocked"}},
	{
		{nodeBool, "chapter8UnlockBegin"},
		{nodeBool, "chapter8UnlockSecondPhase"},
		{nodeBool, "chapter8Passed"},
		{nodeU8, "chapter8SongUnlocked"},
	},
}

var userNodes = []leafNode{
	{nodeBool, "showPlayerId"},
	{nodeStr, "selfIntro"},
	{nodeStr, "avatar"},
	{nodeStr, "background"},
}

var settingsNodes = []leafNode{
	{nodeBool, "chordSupport"},
	{nodeBool, "fcAPIndicator"},
	{nodeBool, "enableHitSound"},
	{nodeBool, "lowResolutionMode"},
	{nodeStr, "deviceName"},
	{nodeFloat, "bright"},
	{nodeFloat, "musicVolume"},
	{nodeFloat, "effectVolume"},
	{nodeFloat, "hitSoundVolume"},
	{nodeFloat, "soundOffset"},
	{nodeFloat, "noteScale"},
}

// parseObject lit une suite de champs typés. Les booléens sont empaquetés
// par groupes de huit dans un même octet.
func parseObject(r *byteReader, nodes []leafNode) (map[string]interface{}, error) {
	obj := make(map[string]interface{}, len(nodes))
	var bit uint
	boolBytePos := r.off

	flushBools := func() {
		if bit != 0 {
			r.off = boolBytePos + 1
			bit = 0
		}
	}

	for _, nd := range nodes {
		if nd.typ == nodeBool {
			if bit == 0 {
				boolBytePos = r.off
				if r.remain() < 1 {
					return nil, apperr.New(apperr.KindDecrypt, "unexpected end of bool data")
				}
			}
			b := r.data[boolBytePos]
			obj[nd.name] = (b>>bit)&1 != 0
			bit++
			if bit == 8 {
				bit = 0
				r.off = boolBytePos + 1
			}
			continue
		}

		flushBools()
		switch nd.typ {
		case nodeU8:
			v, err := r.readU8()
			if err != nil {
				return nil, err
			}
			obj[nd.name] = int64(v)
		case nodeU16:
			v, err := r.readU16LE()
			if err != nil {
				return nil, err
			}
			obj[nd.name] = int64(v)
		case nodeFloat:
			v, err := r.readF32LE()
			if err != nil {
				return nil, err
			}
			obj[nd.name] = float64(v)
		case nodeStr:
			s, err := r.readString(0)
			if err != nil {
				return nil, err
			}
			obj[nd.name] = s
		case nodeVarshort5:
			arr := make([]int64, 0, 5)
			for i := 0; i < 5; i++ {
				v, err := r.readVarshort()
				if err != nil {
					return nil, err
				}
				arr = append(arr, int64(v))
			}
			obj[nd.name] = arr
		}
	}
	flushBools()
	return obj, nil
}

// parseVersionedGroups lit les groupes de champs jusqu'à la version portée
// par la structure.
func parseVersionedGroups(obj map[string]interface{}, r *byteReader, groups [][]leafNode) error {
	version, _ := obj["version"].(int64)
	n := int(version)
	if n > len(groups) {
		n = len(groups)
	}
	for i := 0; i < n; i++ {
		sub, err := parseObject(r, groups[i])
		if err != nil {
			return err
		}
		for k, v := range sub {
			obj[k] = v
		}
	}
	return nil
}

// parseKeyMap lit la table clé -> drapeaux de gameKey (cinq octets
// optionnels par entrée selon un bitmap).
func parseKeyMap(r *byteReader) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	count, err := r.readVarshort()
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		key, err := r.readString(0)
		if err != nil {
			return nil, err
		}
		if r.remain() < 1 {
			return nil, apperr.New(apperr.KindDecrypt, "unexpected end of key map")
		}
		blockLen := int(r.data[r.off])
		next := r.off + 1 + blockLen
		r.off++

		bitmap, err := r.readU8()
		if err != nil {
			return nil, err
		}
		flags := make([]int64, 5)
		for b := 0; b < 5; b++ {
			if (bitmap>>b)&1 != 0 {
				v, err := r.readU8()
				if err != nil {
					return nil, err
				}
				flags[b] = int64(v)
			}
		}
		out[key] = flags
		if next > len(r.data) {
			return nil, apperr.New(apperr.KindDecrypt, "unexpected end of key map block")
		}
		r.off = next
	}
	return out, nil
}

// ParseGameKey décode l'entrée gameKey (version, table de clés, champs
// versionnés, reliquat base64 le cas échéant).
func ParseGameKey(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindDecrypt, "gameKey entry too short")
	}
	r := newByteReader(data)
	version, err := r.readU8()
	if err != nil {
		return nil, err
	}
	obj := map[string]interface{}{"version": int64(version)}
	keyMap, err := parseKeyMap(r)
	if err != nil {
		return nil, err
	}
	obj["map"] = keyMap
	if err := parseVersionedGroups(obj, r, gameKeyGroups); err != nil {
		return nil, err
	}
	if r.remain() > 0 {
		obj["overflow"] = base64.StdEncoding.EncodeToString(r.data[r.off:])
	}
	return obj, nil
}

// ParseGameProgress décode l'entrée gameProgress.
func ParseGameProgress(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindDecrypt, "gameProgress entry too short")
	}
	r := newByteReader(data)
	version, err := r.readU8()
	if err != nil {
		return nil, err
	}
	obj := map[string]interface{}{"version": int64(version)}
	if err := parseVersionedGroups(obj, r, gameProgressGroups); err != nil {
		return nil, err
	}
	if r.remain() > 0 {
		obj["overflow"] = base64.StdEncoding.EncodeToString(r.data[r.off:])
	}
	return obj, nil
}

// ParseUser décode l'entrée user (préfixe de version ignoré).
func ParseUser(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindDecrypt, "user entry too short")
	}
	return parseObject(newByteReader(data[1:]), userNodes)
}

// ParseSettings décode l'entrée settings (préfixe de version ignoré).
func ParseSettings(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindDecrypt, "settings entry too short")
	}
	return parseObject(newByteReader(data[1:]), settingsNodes)
}
