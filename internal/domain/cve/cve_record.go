package cve

import "time"

const (
	DefaultTitle       = "Unknown Title"
	DefaultDescription = "No description available"
)

// CVERecord is one stored vulnerability. CVEID is the logical key; ID only exists
// for storage convenience.
type CVERecord struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CVEID            string    `gorm:"column:cve_id;type:varchar(64);not null;uniqueIndex" json:"cve_id"`
	PublishedDate    time.Time `gorm:"column:published_date;not null;index" json:"published_date"`
	LastModifiedDate time.Time `gorm:"column:last_modified_date;not null" json:"last_modified_date"`
	Title            string    `gorm:"column:title;type:text;not null" json:"title"`
	Description      string    `gorm:"column:description;type:text;not null" json:"description"`
	ProblemTypes     *string   `gorm:"column:problem_types;type:text" json:"problem_types"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}

func (CVERecord) TableName() string { return "cve_record" }

// Clone returns an owned copy, including a fresh ProblemTypes pointer.
func (r *CVERecord) Clone() *CVERecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.ProblemTypes != nil {
		pt := *r.ProblemTypes
		out.ProblemTypes = &pt
	}
	return &out
}

// MergeFrom overwrites the fields a re-observed document is allowed to change.
func (r *CVERecord) MergeFrom(src *CVERecord) {
	r.PublishedDate = src.PublishedDate
	r.LastModifiedDate = src.LastModifiedDate
	r.Title = src.Title
	r.Description = src.Description
	if src.ProblemTypes != nil {
		pt := *src.ProblemTypes
		r.ProblemTypes = &pt
	} else {
		r.ProblemTypes = nil
	}
}

// CVERecordPatch is a partial update. Nil fields are left untouched.
type CVERecordPatch struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	ProblemTypes *string `json:"problem_types"`
}

func (p CVERecordPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.ProblemTypes == nil
}

// Columns returns the column -> value map for the supplied fields.
func (p CVERecordPatch) Columns() map[string]interface{} {
	out := map[string]interface{}{}
	if p.Title != nil {
		out["title"] = *p.Title
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.ProblemTypes != nil {
		out["problem_types"] = *p.ProblemTypes
	}
	return out
}
