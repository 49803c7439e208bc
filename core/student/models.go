package student

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-admin/core"
)

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Creator struct {
	ID   core.ID `json:"id"`
	Name string  `json:"name"`
}

type Student struct {
	ID          core.ID   `json:"id"`
	Username    string    `json:"username"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Gender      Gender    `json:"gender"`
	DateOfBirth core.Date `json:"dateOfBirth"`
	RoleIDs     []int     `json:"roleIds,omitempty"`
	CourseIDs   []int     `json:"courseIds,omitempty"`
	GroupIDs    []int     `json:"groupIds,omitempty"`
	CardID      *string   `json:"cardId,omitempty"`
	Status      Status    `json:"status"`
	CreatedDate core.Date `json:"createdDate"`
	CreatedBy   Creator   `json:"createdBy"`
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

func (s Student) IsActive() bool { return s.Status == StatusActive }

func (s Student) Card() string {
	if s.CardID == nil {
		return ""
	}
	return *s.CardID
}

// Matches does a case-insensitive match of `search` on the student's names, username, email, phone
// and card ID. An empty search matches everyone.
func (s Student) Matches(search string) bool {
	search = core.CleanString(search)
	if search == "" {
		return true
	}
	return core.ContainsFold(search, s.FirstName, s.LastName, s.Username, s.Email, s.Phone, s.Card())
}

// Filter returns the students matching `search`, in their original order.
func Filter(students []Student, search string) []Student {
	filtered := make([]Student, 0, len(students))
	for _, s := range students {
		if s.Matches(search) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// Counts returns the number of active and inactive students.
func Counts(students []Student) (active, inactive int) {
	for _, s := range students {
		if s.IsActive() {
			active++
		} else {
			inactive++
		}
	}
	return active, inactive
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Username    string `json:"username" form:"username" validate:"required,min=3,alphanum_"`
	Password    string `json:"password" form:"password" validate:"required,min=6"`
	FirstName   string `json:"firstName" form:"firstName" validate:"required,notblank"`
	LastName    string `json:"lastName" form:"lastName" validate:"required,notblank"`
	Email       string `json:"email" form:"email" validate:"required,email"`
	Phone       string `json:"phone" form:"phone" validate:"required,phone"`
	Gender      Gender `json:"gender" form:"gender" validate:"required,oneof=MALE FEMALE"`
	DateOfBirth string `json:"dateOfBirth" form:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	CardID      string `json:"cardId,omitempty" form:"cardId" validate:"omitempty,alphanum_"`
	Status      Status `json:"status" form:"status" validate:"omitempty,oneof=active inactive"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	ns.DateOfBirth = core.CleanString(ns.DateOfBirth)
	ns.CardID = core.CleanString(ns.CardID)
	ns.Gender = Gender(core.CleanString(strings.ToUpper(string(ns.Gender))))
	if ns.Status == "" {
		ns.Status = StatusActive
	}
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Empty fields keep their current value.
type UpdateStudent struct {
	Username    string `json:"username" form:"username" validate:"omitempty,min=3,alphanum_"`
	FirstName   string `json:"firstName" form:"firstName"`
	LastName    string `json:"lastName" form:"lastName"`
	Email       string `json:"email" form:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" form:"phone" validate:"omitempty,phone"`
	Gender      Gender `json:"gender" form:"gender" validate:"omitempty,oneof=MALE FEMALE"`
	DateOfBirth string `json:"dateOfBirth" form:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	CardID      string `json:"cardId" form:"cardId" validate:"omitempty,alphanum_"`
	Status      Status `json:"status" form:"status" validate:"omitempty,oneof=active inactive"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.Username = core.CleanString(us.Username, true /* lower */)
	us.FirstName = core.CleanString(us.FirstName)
	us.LastName = core.CleanString(us.LastName)
	us.Email = core.CleanString(us.Email, true /* lower */)
	us.Phone = core.CleanString(us.Phone)
	us.DateOfBirth = core.CleanString(us.DateOfBirth)
	us.CardID = core.CleanString(us.CardID)
	us.Gender = Gender(core.CleanString(strings.ToUpper(string(us.Gender))))
	return validate.Struct(us)
}

// Apply returns a copy of `orig` with the set fields of us applied. The whole record is sent back to
// the API on update.
func (us UpdateStudent) Apply(orig Student) (Student, error) {
	upd := orig
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setStr(&upd.Username, us.Username)
	setStr(&upd.FirstName, us.FirstName)
	setStr(&upd.LastName, us.LastName)
	setStr(&upd.Email, us.Email)
	setStr(&upd.Phone, us.Phone)
	if us.Gender != "" {
		upd.Gender = us.Gender
	}
	if us.Status != "" {
		upd.Status = us.Status
	}
	if us.CardID != "" {
		card := us.CardID
		upd.CardID = &card
	}
	if us.DateOfBirth != "" {
		dob, err := core.ParseDate(us.DateOfBirth)
		if err != nil {
			return Student{}, err
		}
		upd.DateOfBirth = dob
	}
	return upd, nil
}
