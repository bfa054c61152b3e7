// Package dedup suppresses repeated alerts. Candidates are fingerprinted
// over their stable content and suppressed while an alert with the same
// fingerprint exists inside the alert type's dedup window.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/halcyon-security/framewatch/pkg/messages"
)

// messageMaxLen caps the normalized message contribution so verbose
// detector text cannot defeat fingerprint matching.
const messageMaxLen = 80

var (
	frameNumberRe = regexp.MustCompile(`(?i)\bframe[ _#:]*\d+\b`)
	confidenceRe  = regexp.MustCompile(`\(?\d+(\.\d+)?\s*%\s*(confidence)?\)?`)
	methodNoteRe  = regexp.MustCompile(`\((?:via|method|model)[^)]*\)`)
	digitsRe      = regexp.MustCompile(`\d+(\.\d+)?`)
	spacesRe      = regexp.MustCompile(`\s+`)
)

// normalizeMessage strips the volatile parts of an alert message (frame
// numbers, confidence percentages, method annotations, remaining numerics)
// so two reports of the same event hash identically.
func normalizeMessage(msg string) string {
	s := strings.ToLower(msg)
	s = frameNumberRe.ReplaceAllString(s, "")
	s = confidenceRe.ReplaceAllString(s, "")
	s = methodNoteRe.ReplaceAllString(s, "")
	s = digitsRe.ReplaceAllString(s, "")
	s = spacesRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > messageMaxLen {
		s = s[:messageMaxLen]
	}
	return s
}

// quantizeBox snaps bounding box coordinates to a grid so that jitter of a
// few pixels between frames does not change the fingerprint.
func quantizeBox(coords []float64, cell float64) string {
	if len(coords) == 0 || cell <= 0 {
		return ""
	}
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = fmt.Sprintf("%d", int(c/cell))
	}
	return strings.Join(parts, ",")
}

// boxCoords pulls a coordinate slice out of candidate metadata. Both the
// in-process []float64 form and the JSON-decoded []any form are accepted.
func boxCoords(v any) []float64 {
	switch b := v.(type) {
	case []float64:
		return b
	case []any:
		out := make([]float64, 0, len(b))
		for _, e := range b {
			f, ok := e.(float64)
			if !ok {
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	return nil
}

// signatureFields selects the metadata fields that identify the underlying
// event for each alert type. Coarser grids are used where the event is
// inherently spatial rather than identity based.
func signatureFields(cand messages.AlertCandidate) map[string]string {
	fields := map[string]string{}
	meta := cand.Metadata

	strField := func(key string) {
		if v, ok := meta[key]; ok {
			fields[key] = fmt.Sprintf("%v", v)
		}
	}

	switch cand.Type {
	case messages.TypeWeaponDetected:
		strField("weapon_type")
		if box := boxCoords(meta["bbox"]); box != nil {
			fields["bbox"] = quantizeBox(box, 20)
		}
	case messages.TypeRedZoneEntry:
		strField("person_id")
		strField("zone_name")
		if box := boxCoords(meta["bbox"]); box != nil {
			fields["bbox"] = quantizeBox(box, 10)
		}
	case messages.TypeSuspiciousActivity:
		strField("activity_type")
		if v, ok := meta["motion_level"].(float64); ok {
			fields["motion_level"] = fmt.Sprintf("%d", int(v/500))
		}
	case messages.TypePersonLoitering,
		messages.TypePersonRunning,
		messages.TypeSuddenDirectionChange,
		messages.TypeCrawlingDucking:
		strField("person_id")
	case messages.TypeRapidApproachSensitiveArea:
		strField("person_id")
		strField("area_name")
	case messages.TypeMultipleZoneViolations:
		// Aggregate alert: camera and type alone identify it.
	case messages.TypeUnknownObjectLeftBehind:
		strField("count")
	default:
		strField("person_id")
		if box := boxCoords(meta["bbox"]); box != nil {
			fields["bbox"] = quantizeBox(box, 10)
		}
	}

	return fields
}

// Fingerprint computes the stable dedup key for a candidate: a SHA-256 hex
// digest over camera id, alert type, the normalized message and the type's
// signature fields in sorted key order.
func Fingerprint(cand messages.AlertCandidate) string {
	h := sha256.New()
	h.Write([]byte(cand.CameraID))
	h.Write([]byte{'|'})
	h.Write([]byte(cand.Type))
	h.Write([]byte{'|'})
	h.Write([]byte(normalizeMessage(cand.Message)))

	fields := signatureFields(cand)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte{'|'})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(fields[k]))
	}

	return hex.EncodeToString(h.Sum(nil))
}
