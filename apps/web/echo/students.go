package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/student"
	"github.com/trezcool/masomo-admin/services/apiclient"
)

type (
	studentListData struct {
		Search   string
		Students []student.Student
		Total    int
		Active   int
		Inactive int
		Form     newStudentForm
		Notice   string
	}

	newStudentForm struct {
		Values student.NewStudent
		Errors map[string]string
	}

	studentDetailData struct {
		Student student.Student
		Errors  map[string]string
	}
)

func (s *Server) studentList(c echo.Context) error {
	api, err := s.apiFor(c)
	if err != nil {
		return err
	}
	data := studentListData{Search: core.CleanString(c.QueryParam("search"))}

	list, err := s.Students.Refresh(c.Request().Context(), student.NewService(api).List)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			return err
		}
		s.Logger.Warn("listing students", err)
		data.Notice = noticeFor(err, "Could not load students")
	}
	s.fillStudentList(&data, list.Items)
	return s.render(c, http.StatusOK, "students", "Students", data)
}

func (s *Server) fillStudentList(data *studentListData, items []student.Student) {
	data.Total = len(items)
	data.Active, data.Inactive = student.Counts(items)
	data.Students = student.Filter(items, data.Search)
}

func (s *Server) studentCreate(c echo.Context) error {
	api, err := s.apiFor(c)
	if err != nil {
		return err
	}

	var ns student.NewStudent
	if err = c.Bind(&ns); err != nil {
		return err
	}
	if err = ns.Validate(s.Validate); err != nil {
		ns.Password = ""
		data := studentListData{Form: newStudentForm{Values: ns, Errors: s.fieldErrors(err)}}
		s.fillStudentList(&data, s.Students.Snapshot().Items)
		return s.render(c, http.StatusBadRequest, "students", "Students", data)
	}

	created, err := student.NewService(api).Create(c.Request().Context(), ns)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			return err
		}
		s.Logger.Warn("creating student", err)
		s.flashes.error(c, noticeFor(err, "Could not create student"))
		return c.Redirect(http.StatusSeeOther, "/students")
	}

	s.Students.Changed()
	s.flashes.success(c, "Student "+studentName(created, ns.FirstName+" "+ns.LastName)+" created successfully.")
	return c.Redirect(http.StatusSeeOther, "/students")
}

func (s *Server) studentDetail(c echo.Context) error {
	api, err := s.apiFor(c)
	if err != nil {
		return err
	}
	std, err := student.NewService(api).Get(c.Request().Context(), core.ID(c.Param("id")))
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, "student", std.FullName(), studentDetailData{Student: std})
}

func (s *Server) studentUpdate(c echo.Context) error {
	api, err := s.apiFor(c)
	if err != nil {
		return err
	}
	svc := student.NewService(api)
	ctx := c.Request().Context()
	id := core.ID(c.Param("id"))

	var us student.UpdateStudent
	if err = c.Bind(&us); err != nil {
		return err
	}

	orig, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if err = us.Validate(s.Validate); err != nil {
		return s.render(c, http.StatusBadRequest, "student", orig.FullName(), studentDetailData{Student: orig, Errors: s.fieldErrors(err)})
	}
	upd, err := us.Apply(orig)
	if err != nil {
		errs := map[string]string{"dateOfBirth": err.Error()}
		return s.render(c, http.StatusBadRequest, "student", orig.FullName(), studentDetailData{Student: orig, Errors: errs})
	}

	path := "/students/" + id.String()
	if _, err = svc.Update(ctx, id, upd); err != nil {
		if apiclient.IsUnauthorized(err) {
			return err
		}
		s.Logger.Warn("updating student", err)
		s.flashes.error(c, noticeFor(err, "Could not update student"))
		return c.Redirect(http.StatusSeeOther, path)
	}

	s.Students.Changed()
	s.flashes.success(c, "Student updated successfully.")
	return c.Redirect(http.StatusSeeOther, path)
}

func (s *Server) studentDelete(c echo.Context) error {
	api, err := s.apiFor(c)
	if err != nil {
		return err
	}

	if err = student.NewService(api).Delete(c.Request().Context(), core.ID(c.Param("id"))); err != nil {
		switch {
		case apiclient.IsUnauthorized(err):
			return err
		case apiclient.IsNotFound(err):
			s.flashes.error(c, "Student not found.")
		default:
			s.Logger.Warn("deleting student", err)
			s.flashes.error(c, noticeFor(err, "Could not delete student"))
		}
		return c.Redirect(http.StatusSeeOther, "/students")
	}

	s.Students.Changed()
	s.flashes.success(c, "Student deleted successfully.")
	return c.Redirect(http.StatusSeeOther, "/students")
}

func (s *Server) fieldErrors(err error) map[string]string {
	var vErr *core.ValidationError
	if errors.As(core.ValidationErrorFrom(err, s.Translator), &vErr) {
		return vErr.FieldMap()
	}
	return map[string]string{"": err.Error()}
}

func studentName(s student.Student, fallback string) string {
	if name := s.FullName(); name != "" {
		return name
	}
	return core.CleanString(fallback)
}
