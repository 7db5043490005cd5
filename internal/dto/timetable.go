package dto

// TeacherInput is one instructor with the free-text subject labels they teach.
type TeacherInput struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Subjects []string `json:"subjects"`
}

// RoomInput is one schedulable room.
type RoomInput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SubjectInput is one subject; the name is the qualification matching key.
type SubjectInput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SectionInput is one student group to be scheduled.
type SectionInput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimeSlotInput is one daily period, rendered as the label "<start> - <end>".
type TimeSlotInput struct {
	ID    string `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// GenerateTimetableRequest carries the five input collections for one run.
// Entry-level cleanup (blank names, teachers without subjects, slots missing
// start or end) happens downstream; validation here only guards presence.
type GenerateTimetableRequest struct {
	Teachers  []TeacherInput  `json:"teachers" validate:"required,min=1"`
	Rooms     []RoomInput     `json:"rooms" validate:"required,min=1"`
	Subjects  []SubjectInput  `json:"subjects" validate:"required,min=1"`
	Sections  []SectionInput  `json:"sections" validate:"required,min=1"`
	TimeSlots []TimeSlotInput `json:"timeSlots" validate:"required,min=1"`
	// Seed pins the randomness source; identical input plus identical seed
	// reproduces the grid byte for byte. Omitted means time-seeded.
	Seed *int64 `json:"seed,omitempty"`
}

// TimetableEntry is one filled grid cell.
type TimetableEntry struct {
	Subject string `json:"subject"`
	Teacher string `json:"teacher"`
	Room    string `json:"room"`
	Section string `json:"section"`
}

// TimetableGrid maps day -> time-slot label -> entry. A nil entry is a free
// slot and serialises as JSON null.
type TimetableGrid map[string]map[string]*TimetableEntry

// GenerateTimetableResponse is the legacy wire contract of the generate
// endpoint: a success flag, the grid, and the ordered slot labels.
type GenerateTimetableResponse struct {
	Success   bool          `json:"success"`
	Timetable TimetableGrid `json:"timetable"`
	TimeSlots []string      `json:"timeSlots"`
	Fitness   float64       `json:"fitness"`
}

// SaveTimetableRequest persists a generated grid for the authenticated user.
type SaveTimetableRequest struct {
	Name      string        `json:"name"`
	Timetable TimetableGrid `json:"timetable" validate:"required"`
	TimeSlots []string      `json:"timeSlots" validate:"required,min=1"`
	Fitness   float64       `json:"fitness"`
}

// ExportTimetableRequest asks for a background render of a stored grid.
type ExportTimetableRequest struct {
	TimetableID string `json:"timetable_id" validate:"required"`
	Format      string `json:"format" validate:"required,oneof=csv pdf"`
}
