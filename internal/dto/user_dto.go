package dto

type CreateUserRequest struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email"`
	UserType             string `json:"userType" validate:"required,oneof=mentor mentee coordinator"`
	StudentID            string `json:"student_id" validate:"max=64"`
	Department           string `json:"department" validate:"max=255"`
	YearMajor            string `json:"year_major" validate:"max=255"`
	AcknowledgmentSigned string `json:"acknowledgment_signed" validate:"omitempty,oneof=yes no not_applicable"`
}

// UpdateUserRequest is a partial update; nil fields are left alone.
type UpdateUserRequest struct {
	Name                 *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email                *string `json:"email" validate:"omitempty,email"`
	UserType             *string `json:"userType" validate:"omitempty,oneof=mentor mentee coordinator"`
	StudentID            *string `json:"student_id" validate:"omitempty,max=64"`
	Department           *string `json:"department" validate:"omitempty,max=255"`
	YearMajor            *string `json:"year_major" validate:"omitempty,max=255"`
	AcknowledgmentSigned *string `json:"acknowledgment_signed" validate:"omitempty,oneof=yes no not_applicable"`
}

type ListUsersRequest struct {
	UserType string `query:"userType" validate:"omitempty,oneof=mentor mentee coordinator super_admin developer"`
}

type AssignMentorRequest struct {
	MentorID string `json:"mentorId" validate:"required"`
	MenteeID string `json:"menteeId" validate:"required"`
}

type BulkCreateUsersRequest struct {
	Users []CreateUserRequest `json:"users" validate:"required,min=1"`
}

type BulkAssignMentorsRequest struct {
	Assignments []AssignMentorRequest `json:"assignments" validate:"required,min=1"`
}

type BulkItemResult struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type BulkReport struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []BulkItemResult `json:"results"`
}

type ValidateNameRequest struct {
	Name           string `json:"name" validate:"required"`
	UniversityPath string `json:"university_path"`
}

type ValidateNameResponse struct {
	Valid bool `json:"valid"`
}

type AcknowledgmentStatus struct {
	NeedsAcknowledgment bool   `json:"needsAcknowledgment"`
	Status              string `json:"status,omitempty"`
}

type SubmitAcknowledgmentRequest struct {
	FullName string `json:"fullName" validate:"required"`
}

type AcknowledgmentResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ClaimsSet bool   `json:"claimsSet"`
}
