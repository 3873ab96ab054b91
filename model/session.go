package model

import "encoding/json"

// Quality check values stored in the session document.
const (
	QualityNotTested  = "not_tested"
	QualityPass       = "pass"
	QualityFail       = "fail"
	QualityBorderline = "borderline"
)

// SessionDocument is the per-student JSON record living next to the
// uploaded video. It is the source of truth for a student's progress
// through the pipeline. Documents written by older builds can carry
// extra keys; those are preserved round-trip in Extras.
type SessionDocument struct {
	SessionID   string `json:"sessionId"`
	RegNo       string `json:"regNo"`
	Name        string `json:"name"`
	Year        string `json:"year"`
	YearDisplay string `json:"year_display,omitempty"`
	Dept        string `json:"dept"`
	DeptID      string `json:"dept_id"`
	Batch       string `json:"batch"`
	StartTime   string `json:"startTime"`
	UploadTime  string `json:"uploadTime,omitempty"`

	VideoUploaded  bool   `json:"videoUploaded"`
	FacesExtracted bool   `json:"facesExtracted"`
	FacesOrganized bool   `json:"facesOrganized"`
	FacesCount     int    `json:"facesCount"`
	VideoPath      string `json:"videoPath"`

	QualityCheck    string             `json:"qualityCheck,omitempty"`
	QualityCategory string             `json:"qualityCategory,omitempty"`
	QualityIssues   []string           `json:"qualityIssues,omitempty"`
	CriticalIssues  []string           `json:"criticalIssues,omitempty"`
	MajorIssues     []string           `json:"majorIssues,omitempty"`
	MinorIssues     []string           `json:"minorIssues,omitempty"`
	QualityDetails  map[string]float64 `json:"qualityDetails,omitempty"`

	Extras map[string]json.RawMessage `json:"-"`
}

// knownSessionKeys lists every key the struct owns, so UnmarshalJSON can
// tell which ones belong in Extras.
var knownSessionKeys = map[string]bool{
	"sessionId": true, "regNo": true, "name": true, "year": true,
	"year_display": true, "dept": true, "dept_id": true, "batch": true,
	"startTime": true, "uploadTime": true, "videoUploaded": true,
	"facesExtracted": true, "facesOrganized": true, "facesCount": true,
	"videoPath": true, "qualityCheck": true, "qualityCategory": true,
	"qualityIssues": true, "criticalIssues": true, "majorIssues": true,
	"minorIssues": true, "qualityDetails": true,
}

type sessionDocumentAlias SessionDocument

func (d *SessionDocument) UnmarshalJSON(data []byte) error {
	var alias sessionDocumentAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if knownSessionKeys[k] {
			delete(raw, k)
		}
	}
	if len(raw) > 0 {
		alias.Extras = raw
	}

	*d = SessionDocument(alias)
	return nil
}

func (d SessionDocument) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(sessionDocumentAlias(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extras) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range d.Extras {
		if _, owned := merged[k]; !owned {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// ApplyDefaults fills the fields older documents may be missing, the
// same way the collection app repaired them on read.
func (d *SessionDocument) ApplyDefaults(regNo, deptCode, year string) {
	if d.RegNo == "" {
		d.RegNo = regNo
	}
	if d.Name == "" {
		d.Name = "Student " + regNo
	}
	if d.SessionID == "" {
		d.SessionID = "session_" + regNo
	}
	if d.Year == "" {
		d.Year = year
	}
	if d.Dept == "" {
		d.Dept = deptCode
	}
	if d.DeptID == "" {
		d.DeptID = deptCode
	}
	if d.Batch == "" {
		d.Batch = deptCode + "_" + year
	}
	if d.QualityCheck == "" {
		d.QualityCheck = QualityNotTested
	}
}
