package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrNotCanonical marks a parameter set that cannot be serialized
// deterministically. This is a programming error in the calling tool,
// not a cache condition, so it is surfaced instead of skipped.
var ErrNotCanonical = errors.New("parameters are not canonicalizable")

// CanonicalHash hashes a parameter set over a deterministic
// serialization: object keys sorted, numbers in the exact form the
// encoder produced. Two logically identical parameter sets always hash
// to the same value regardless of construction order.
func CanonicalHash(params map[string]interface{}) (string, error) {
	data, err := canonicalBytes(params)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalBytes(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCanonical, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var norm interface{}
	if err := dec.Decode(&norm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCanonical, err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, norm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case string:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotCanonical, err)
		}
		buf.Write(data)
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrNotCanonical, err)
			}
			buf.Write(data)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrNotCanonical, v)
	}
	return nil
}
