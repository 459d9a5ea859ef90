package teacher

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vocsite/chuo/core"
)

// Teacher is one row of the staff roster. Ids and timestamps are assigned by
// the gateway at insert time.
type Teacher struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	NIP        string    `json:"nip"` // government employee number
	Title      string    `json:"title,omitempty"`
	Subjects   []string  `json:"subjects,omitempty"`
	Programs   []string  `json:"programs,omitempty"`
	PhotoPath  string    `json:"photo_path,omitempty"`
	Registered bool      `json:"registered"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

func (t Teacher) RecordID() string           { return t.ID }
func (t Teacher) RecordCreatedAt() time.Time { return t.CreatedAt }

// NewTeacher holds the attributes of a roster insert; everything the gateway
// assigns (id, timestamps) is absent.
type NewTeacher struct {
	Name       string   `json:"name" validate:"required"`
	NIP        string   `json:"nip" validate:"required,nip"`
	Title      string   `json:"title"`
	Subjects   []string `json:"subjects"`
	Programs   []string `json:"programs"`
	Registered bool     `json:"registered"`
}

func (nt *NewTeacher) Clean() {
	nt.Name = core.CleanString(nt.Name)
	nt.NIP = core.CleanString(nt.NIP)
	nt.Title = core.CleanString(nt.Title)
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Clean()
	return validate.Struct(nt)
}

// UpdateTeacher is a targeted field patch; zero-valued fields are left
// untouched, pointers distinguish "clear" from "unchanged".
type UpdateTeacher struct {
	Name       string   `json:"name"`
	NIP        string   `json:"nip" validate:"omitempty,nip"`
	Title      *string  `json:"title"`
	Subjects   []string `json:"subjects"`
	Programs   []string `json:"programs"`
	PhotoPath  *string  `json:"-"`
	Registered *bool    `json:"registered"`
}

func (ut *UpdateTeacher) Clean() {
	ut.Name = core.CleanString(ut.Name)
	ut.NIP = core.CleanString(ut.NIP)
}

func (ut *UpdateTeacher) Validate(validate *validator.Validate) error {
	ut.Clean()
	return validate.Struct(ut)
}
