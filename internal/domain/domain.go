package domain

import "github.com/yungbote/cvetrack-backend/internal/domain/cve"

const (
	DefaultCVETitle       = cve.DefaultTitle
	DefaultCVEDescription = cve.DefaultDescription
)

type CVERecord = cve.CVERecord
type CVERecordPatch = cve.CVERecordPatch
