// Package cache - Result cache addressed by image content and detection
// settings.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/FTsune/kape/config"
	"github.com/FTsune/kape/images"
	"github.com/pkg/errors"
)

// Fingerprint identifies an (image, settings) pair.
//
// Arguments:
//   - data: The encoded image bytes.
//   - s: The detection settings.
//
// Returns:
//   - string: The fingerprint, "<md5 of image>_<md5 of settings>".
//   - error: A *config.MalformedConfigurationError for invalid settings.
func Fingerprint(data []byte, s config.Settings) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	return FingerprintMapping(data, s.Mapping())
}

// FingerprintMapping identifies an image and a settings mapping. Every
// recognized key must be present, no other key is allowed and thresholds
// must lie in [0, 1]. The
// mapping is serialized with sorted keys, so key order never matters.
func FingerprintMapping(data []byte, mapping map[string]any) (string, error) {
	for _, key := range config.RecognizedKeys {
		if _, ok := mapping[key]; !ok {
			return "", &config.MalformedConfigurationError{Field: key, Reason: "missing"}
		}
	}
	if len(mapping) != len(config.RecognizedKeys) {
		keys := make([]string, 0, len(mapping))
		for key := range mapping {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if !slices.Contains(config.RecognizedKeys, key) {
				return "", &config.MalformedConfigurationError{Field: key, Reason: "unrecognized key"}
			}
		}
	}
	for _, key := range []string{config.KeyConfidenceFloor, config.KeyIoUThreshold} {
		v, ok := toFloat(mapping[key])
		if !ok {
			return "", &config.MalformedConfigurationError{Field: key, Reason: fmt.Sprintf("not a number: %v", mapping[key])}
		}
		if err := config.ValidateThreshold(key, v); err != nil {
			return "", err
		}
	}

	// encoding/json writes map keys in sorted order.
	canonical, err := json.Marshal(mapping)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize configuration")
	}
	sum := md5.Sum(canonical)

	return images.ComputeChecksum(data) + "_" + hex.EncodeToString(sum[:]), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
