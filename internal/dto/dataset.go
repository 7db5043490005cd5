package dto

// DatasetImportResponse echoes the collections parsed from uploaded CSV files
// so a client can feed them straight into the generate endpoint.
type DatasetImportResponse struct {
	Teachers  []TeacherInput  `json:"teachers"`
	Rooms     []RoomInput     `json:"rooms"`
	Subjects  []SubjectInput  `json:"subjects"`
	Sections  []SectionInput  `json:"sections"`
	TimeSlots []TimeSlotInput `json:"timeSlots"`
	Skipped   int             `json:"skipped"`
}
