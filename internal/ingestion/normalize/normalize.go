// Package normalize turns one CVE JSON 5 document into a storable CVERecord.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/cvetrack-backend/internal/domain/cve"
	cveerrors "github.com/yungbote/cvetrack-backend/internal/pkg/errors"
)

// RawDocument is one undecoded vulnerability document as read from the source repo.
type RawDocument = json.RawMessage

// TimestampLayouts are tried in order; the first that parses wins. Zone-less values
// are taken as UTC.
var TimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

const problemTypeSeparator = ", "

// InvalidRecordError explains why a document was rejected. It matches
// errors.ErrInvalidRecord under errors.Is.
type InvalidRecordError struct {
	CVEID  string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	if e.CVEID == "" {
		return "invalid record: " + e.Reason
	}
	return fmt.Sprintf("invalid record %s: %s", e.CVEID, e.Reason)
}

func (e *InvalidRecordError) Unwrap() error { return cveerrors.ErrInvalidRecord }

type document struct {
	CVEMetadata struct {
		CVEID         string `json:"cveId"`
		DatePublished string `json:"datePublished"`
		DateUpdated   string `json:"dateUpdated"`
	} `json:"cveMetadata"`
	Containers struct {
		CNA struct {
			Descriptions []struct {
				Value *string `json:"value"`
			} `json:"descriptions"`
			ProblemTypes []struct {
				Descriptions []struct {
					Description string `json:"description"`
				} `json:"descriptions"`
			} `json:"problemTypes"`
		} `json:"cna"`
	} `json:"containers"`
}

// ParseTimestamp parses s against TimestampLayouts.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range TimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("time data %q does not match any known format", s)
}

// Normalize decodes raw and returns the canonical record, or an *InvalidRecordError.
func Normalize(raw RawDocument) (*cve.CVERecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &InvalidRecordError{Reason: "document is not a JSON object"}
	}
	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, &InvalidRecordError{Reason: "malformed document: " + err.Error()}
	}

	meta := doc.CVEMetadata
	id := strings.TrimSpace(meta.CVEID)
	if id == "" {
		return nil, &InvalidRecordError{Reason: "missing cveMetadata.cveId"}
	}
	if strings.TrimSpace(meta.DatePublished) == "" {
		return nil, &InvalidRecordError{CVEID: id, Reason: "missing cveMetadata.datePublished"}
	}
	if strings.TrimSpace(meta.DateUpdated) == "" {
		return nil, &InvalidRecordError{CVEID: id, Reason: "missing cveMetadata.dateUpdated"}
	}
	published, err := ParseTimestamp(meta.DatePublished)
	if err != nil {
		return nil, &InvalidRecordError{CVEID: id, Reason: err.Error()}
	}
	updated, err := ParseTimestamp(meta.DateUpdated)
	if err != nil {
		return nil, &InvalidRecordError{CVEID: id, Reason: err.Error()}
	}

	cna := doc.Containers.CNA
	// Title and description intentionally share the first description value.
	title, description := cve.DefaultTitle, cve.DefaultDescription
	if len(cna.Descriptions) > 0 && cna.Descriptions[0].Value != nil {
		title = *cna.Descriptions[0].Value
		description = *cna.Descriptions[0].Value
	}

	return &cve.CVERecord{
		CVEID:            id,
		PublishedDate:    published,
		LastModifiedDate: updated,
		Title:            title,
		Description:      description,
		ProblemTypes:     joinProblemTypes(doc),
	}, nil
}

func joinProblemTypes(doc document) *string {
	pts := doc.Containers.CNA.ProblemTypes
	if len(pts) == 0 {
		return nil
	}
	parts := make([]string, 0, len(pts))
	for _, pt := range pts {
		desc := ""
		if len(pt.Descriptions) > 0 {
			desc = pt.Descriptions[0].Description
		}
		parts = append(parts, desc)
	}
	joined := strings.Join(parts, problemTypeSeparator)
	return &joined
}
