package models

import (
	"encoding/json"
	"time"
)

// Alert status values as moderated by the backend.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusRejected = "rejected"
)

// IncidentTypes is the filter vocabulary.
var IncidentTypes = []string{"Scam", "Theft", "Crime", "Weather", "Public Disorder"}

// PostIncidentTypes is the submission vocabulary; "Other" carries a free text type.
var PostIncidentTypes = append(append([]string{}, IncidentTypes...), IncidentOther)

const IncidentOther = "Other"

type Media struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// Alert 后端返回的警报投影，只读
type Alert struct {
	ID           string    `json:"_id"`
	IncidentType string    `json:"incidentType"`
	OtherType    string    `json:"otherType,omitempty"`
	Header       string    `json:"header,omitempty"`
	Description  string    `json:"description"`
	Action       string    `json:"action,omitempty"`
	Location     string    `json:"location"`
	City         string    `json:"city,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Status       string    `json:"status,omitempty"`
	Likes        int       `json:"likes"`
	LikedBy      []string  `json:"likedBy,omitempty"`
	FlaggedBy    []string  `json:"flaggedBy,omitempty"`
	SharedBy     []string  `json:"sharedBy,omitempty"`
	Shares       int       `json:"shares"`
	Media        []Media   `json:"media,omitempty"`
	UserID       string    `json:"userId,omitempty"`
}

// UnmarshalJSON accepts both the Mongo style "_id" and a plain "id".
func (a *Alert) UnmarshalJSON(b []byte) error {
	type plain Alert
	aux := struct {
		*plain
		AltID string `json:"id"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = aux.AltID
	}
	return nil
}

// Visible reports approved alerts; a missing status counts as approved for legacy records.
func (a *Alert) Visible() bool {
	return a.Status == "" || a.Status == StatusApproved
}

// HasCoords treats a zero coordinate as missing, matching how the backend stores unset points.
func (a *Alert) HasCoords() bool {
	return a.Latitude != nil && a.Longitude != nil && *a.Latitude != 0 && *a.Longitude != 0
}

func (a *Alert) DisplayType() string {
	if a.IncidentType == IncidentOther && a.OtherType != "" {
		return a.OtherType
	}
	return a.IncidentType
}

func (a *Alert) LikedByUser(userID string) bool   { return contains(a.LikedBy, userID) }
func (a *Alert) FlaggedByUser(userID string) bool { return contains(a.FlaggedBy, userID) }
func (a *Alert) SharedByUser(userID string) bool  { return contains(a.SharedBy, userID) }

// AlertPage 列表接口归一化后的结果
type AlertPage struct {
	Alerts      []Alert
	CurrentPage int
	TotalPages  int
	TotalCount  int
	// Envelope is false when the backend returned a bare array.
	Envelope bool
}

// ActionResponse is the body of like/share/flag. Only the fields present are applied.
type ActionResponse struct {
	Likes   *int   `json:"likes,omitempty"`
	Liked   *bool  `json:"liked,omitempty"`
	Flagged *bool  `json:"flagged,omitempty"`
	Shares  *int   `json:"shares,omitempty"`
	Shared  *bool  `json:"shared,omitempty"`
	Alert   *Alert `json:"alert,omitempty"`
}

// Apply patches the alert with exactly what the backend returned for userID.
func (r *ActionResponse) Apply(a *Alert, userID string) {
	if r.Alert != nil {
		id := a.ID
		*a = *r.Alert
		if a.ID == "" {
			a.ID = id
		}
		return
	}
	if r.Likes != nil {
		a.Likes = *r.Likes
	}
	if r.Liked != nil {
		a.LikedBy = setMember(a.LikedBy, userID, *r.Liked)
	}
	if r.Flagged != nil {
		a.FlaggedBy = setMember(a.FlaggedBy, userID, *r.Flagged)
	}
	if r.Shares != nil {
		a.Shares = *r.Shares
	}
	if r.Shared != nil {
		a.SharedBy = setMember(a.SharedBy, userID, *r.Shared)
	}
}

func contains(set []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func setMember(set []string, v string, in bool) []string {
	if v == "" {
		return set
	}
	out := make([]string, 0, len(set)+1)
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	if in {
		out = append(out, v)
	}
	return out
}
