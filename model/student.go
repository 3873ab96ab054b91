package model

// Student is the persistent identity record, keyed by registration
// number. DOB is only consulted by the collection front-end for login
// verification.
type Student struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	RegisterNo   string `gorm:"type:varchar(20);uniqueIndex" json:"register_no"`
	Name         string `gorm:"type:varchar(100)" json:"name"`
	DOB          string `gorm:"column:dob;type:varchar(10)" json:"dob,omitempty"`
	DepartmentID string `gorm:"type:varchar(10);index" json:"department_id"`
	Department   string `gorm:"type:varchar(100)" json:"department"`
	Batch        string `gorm:"type:varchar(20)" json:"batch"`
	Regulation   string `gorm:"type:varchar(20)" json:"regulation,omitempty"`
	Semester     string `gorm:"type:varchar(10)" json:"semester,omitempty"`
	Section      string `gorm:"type:varchar(10)" json:"section,omitempty"`
}
