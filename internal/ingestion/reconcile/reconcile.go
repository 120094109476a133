// Package reconcile splits a batch of raw CVE documents into records to insert and
// records to update, relative to a snapshot of what is already stored.
package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/yungbote/cvetrack-backend/internal/domain/cve"
	"github.com/yungbote/cvetrack-backend/internal/ingestion/normalize"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

// Plan is the outcome of one reconciliation. Records are owned copies; mutating them
// does not touch the index they were derived from.
type Plan struct {
	ToInsert []*cve.CVERecord
	ToUpdate []*cve.CVERecord
	Invalid  int
}

func (p *Plan) Empty() bool {
	return p == nil || (len(p.ToInsert) == 0 && len(p.ToUpdate) == 0)
}

// Flatten expands top-level JSON arrays by exactly one level. Anything nested deeper
// is passed through unchanged and will be rejected by the normalizer.
func Flatten(raw []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(raw))
	for _, item := range raw {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '[' {
			out = append(out, item)
			continue
		}
		var inner []json.RawMessage
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			out = append(out, item)
			continue
		}
		out = append(out, inner...)
	}
	return out
}

type entry struct {
	record *cve.CVERecord
	update bool
}

// Reconcile normalizes every document in raw and classifies it against index.
// A nil log is allowed.
func Reconcile(log *logger.Logger, raw []json.RawMessage, index map[string]*cve.CVERecord) *Plan {
	plan := &Plan{}
	order := make([]string, 0, len(raw))
	byID := make(map[string]*entry, len(raw))

	for _, doc := range Flatten(raw) {
		rec, err := normalize.Normalize(doc)
		if err != nil {
			plan.Invalid++
			if log != nil {
				var ire *normalize.InvalidRecordError
				if errors.As(err, &ire) {
					log.Warn("Skipping CVE record", "cve_id", ire.CVEID, "reason", ire.Reason)
				} else {
					log.Warn("Skipping CVE record", "error", err)
				}
			}
			continue
		}

		if e, seen := byID[rec.CVEID]; seen {
			// Last write wins for an identifier observed twice in one batch.
			e.record.MergeFrom(rec)
			continue
		}

		e := &entry{record: rec}
		if existing, ok := index[rec.CVEID]; ok && existing != nil {
			cp := existing.Clone()
			cp.MergeFrom(rec)
			e.record = cp
			e.update = true
		}
		byID[rec.CVEID] = e
		order = append(order, rec.CVEID)
	}

	for _, id := range order {
		e := byID[id]
		if e.update {
			plan.ToUpdate = append(plan.ToUpdate, e.record)
		} else {
			plan.ToInsert = append(plan.ToInsert, e.record)
		}
	}
	if log != nil {
		log.Debug("Reconciled CVE batch",
			"documents", len(raw),
			"to_insert", len(plan.ToInsert),
			"to_update", len(plan.ToUpdate),
			"invalid", plan.Invalid,
		)
	}
	return plan
}
