package model

// LoginRequest is the examiner login payload.
type LoginRequest struct {
	Password string `json:"password" binding:"required,max=128"`
}

// StatusRequest changes the room status.
type StatusRequest struct {
	Status SessionStatus `json:"status" binding:"required,oneof=WAITING ACTIVE FINISHED"`
}

// DurationRequest changes the exam length. Values below one are raised to one.
type DurationRequest struct {
	Minutes *int `json:"minutes" binding:"required,max=1440"`
}

// ToggleRequest flips a boolean room setting.
type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// Part1KeyRequest sets the correct letter of a single-choice question.
type Part1KeyRequest struct {
	Answer string `json:"answer" binding:"required,oneof=A B C D a b c d"`
}

// Part2KeyRequest sets one statement of a true/false block.
type Part2KeyRequest struct {
	Sub   SubQuestion `json:"sub" binding:"required,oneof=a b c d"`
	Value *bool       `json:"value" binding:"required"`
}

// Part3KeyRequest sets the accepted forms of a short answer, separated by ';'.
type Part3KeyRequest struct {
	Answer string `json:"answer" binding:"required,notblank,max=200"`
}
